// Package toolutil provides helpers shared by the MCP tools and the REST API:
// argument checks, search query construction and error classification.
package toolutil

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anatolykoptev/go_book/internal/book"
	"github.com/anatolykoptev/go_book/internal/pipeline"
	"github.com/anatolykoptev/go_book/internal/store"
)

// ErrInvalid marks a request rejected before reaching the pipeline.
var ErrInvalid = errors.New("invalid request")

// Kind is the caller-facing class of an error.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalid
	KindNotFound
)

// Classify maps an error from the pipeline or store onto a Kind.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrInvalid), pipeline.IsIdentification(err):
		return KindInvalid
	case errors.Is(err, store.ErrNotFound):
		return KindNotFound
	}
	return KindInternal
}

// Message returns the text shown to callers for err. Not-found errors name
// the missing id instead of leaking the store's wording.
func Message(err error, id string) string {
	if Classify(err) == KindNotFound && id != "" {
		return fmt.Sprintf("book %s not found", id)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "processing timed out: " + err.Error()
	}
	return err.Error()
}

// Required rejects an empty argument.
func Required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalid, field)
	}
	return nil
}

// SearchQuery builds a normalized book query. Negative skip is rejected
// rather than clamped so callers see their mistake.
func SearchQuery(text, difficulty string, skip, limit int) (book.Query, error) {
	if skip < 0 {
		return book.Query{}, fmt.Errorf("%w: skip must be >= 0", ErrInvalid)
	}
	q := book.Query{
		Text:       strings.TrimSpace(text),
		Difficulty: strings.TrimSpace(difficulty),
		Skip:       skip,
		Limit:      limit,
	}
	return q.Normalize(), nil
}

// ErrorLimit clamps the error-record listing size.
func ErrorLimit(limit int) int {
	switch {
	case limit <= 0:
		return 20
	case limit > book.MaxLimit:
		return book.MaxLimit
	}
	return limit
}
