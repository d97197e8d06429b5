// Package stages holds the content-transformation stage adapters. Each stage
// has a capable LLM-driven variant and a simplified deterministic variant
// behind the Backend interface.
package stages

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anatolykoptev/go_book/internal/book"
)

var (
	// ErrParse marks a response that could not be turned into the stage's result.
	ErrParse = errors.New("stage: unparsable response")
	// ErrNotConfigured is returned when the capable backend is requested without credentials.
	ErrNotConfigured = errors.New("stage: capable backend not configured")
)

// Stage names, used in logs and error records.
const (
	StageOutline        = "outline"
	StageChapters       = "chapters"
	StageGlossary       = "glossary"
	StageFurtherReading = "further_reading"
	StageTakeaways      = "takeaways"
	StageClassify       = "classify"
)

// Input is the per-video context every stage reads.
type Input struct {
	Title           string
	Channel         string
	Description     string
	DurationSeconds int
	Transcript      string
}

// ChunkInput is one chunk plus the outline entries relevant to it.
type ChunkInput struct {
	Chunk   book.TranscriptChunk
	Total   int
	Outline []string
}

// Backend implements every stage.
type Backend interface {
	Name() string
	Outline(ctx context.Context, in Input) (book.Outline, error)
	Chapters(ctx context.Context, in Input, ch ChunkInput) ([]book.Fragment, error)
	Glossary(ctx context.Context, in Input, o book.Outline) (map[string]string, error)
	FurtherReading(ctx context.Context, in Input, o book.Outline) ([]book.ReadingItem, error)
	Takeaways(ctx context.Context, in Input, o book.Outline) ([]string, error)
	Classify(ctx context.Context, in Input, o book.Outline) (book.Classification, error)
}

// Result is the outcome of one stage call.
type Result[T any] struct {
	Stage   string
	Value   T
	Err     error
	Elapsed time.Duration
}

// Failed reports whether the stage produced no usable value.
func (r Result[T]) Failed() bool { return r.Err != nil }

// Or returns the value, or def when the stage failed.
func (r Result[T]) Or(def T) T {
	if r.Err != nil {
		return def
	}
	return r.Value
}

// Run calls fn under a per-stage timeout and captures the outcome. A panic
// inside fn is reported as a failed result.
func Run[T any](ctx context.Context, stage string, timeout time.Duration, fn func(context.Context) (T, error)) (res Result[T]) {
	res.Stage = stage
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	start := time.Now()
	defer func() {
		res.Elapsed = time.Since(start)
		if p := recover(); p != nil {
			var zero T
			res.Value = zero
			res.Err = fmt.Errorf("stage %s panicked: %v", stage, p)
		}
	}()
	v, err := fn(ctx)
	if err != nil {
		res.Err = fmt.Errorf("%s: %w", stage, err)
		return res
	}
	res.Value = v
	return res
}
