// Package pipeline turns a YouTube URL into a stored book: idempotency gate,
// source fetch, outline, per-chunk chapter extraction and merge, the
// secondary stages, assembly and a single insert.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/anatolykoptev/go_book/internal/book"
	"github.com/anatolykoptev/go_book/internal/engine"
	"github.com/anatolykoptev/go_book/internal/stages"
	"github.com/anatolykoptev/go_book/internal/store"
)

// MetadataSource returns video metadata. sources.YouTube implements it.
type MetadataSource interface {
	Metadata(ctx context.Context, videoID string) (book.SourceVideo, error)
}

// TranscriptSource returns transcript text. transcribe.Resolver implements it.
type TranscriptSource interface {
	Transcribe(ctx context.Context, videoID string) (string, error)
}

// Deps are the collaborators of a Processor. Counter, Language, Log and
// Metrics may be nil.
type Deps struct {
	Store       store.Store
	Backend     stages.Backend
	Metadata    MetadataSource
	Transcripts TranscriptSource
	Counter     book.TokenCounter
	Language    LanguageDetector
	Log         *slog.Logger
	Metrics     *engine.Metrics
}

// Processor runs the book pipeline. It holds no per-run state and is safe
// for concurrent use.
type Processor struct {
	store       store.Store
	backend     stages.Backend
	metadata    MetadataSource
	transcripts TranscriptSource
	counter     book.TokenCounter
	language    LanguageDetector
	maxTokens   int
	concurrency int
	timeout     time.Duration
	metrics     *engine.Metrics
	log         *slog.Logger
	now         func() time.Time
}

// New builds a Processor.
func New(cfg engine.Config, d Deps) *Processor {
	p := &Processor{
		store:       d.Store,
		backend:     d.Backend,
		metadata:    d.Metadata,
		transcripts: d.Transcripts,
		counter:     d.Counter,
		language:    d.Language,
		maxTokens:   cfg.ChunkMaxTokens,
		concurrency: max(cfg.ChunkConcurrency, 1),
		timeout:     cfg.StageTimeout,
		metrics:     engine.OrNew(d.Metrics),
		log:         engine.OrDefault(d.Log).With("component", "pipeline"),
		now:         func() time.Time { return time.Now().UTC() },
	}
	if p.counter == nil {
		p.counter = book.HeuristicCounter
	}
	if p.language == nil {
		p.language = NewLingua()
	}
	return p
}

// Backend names the content backend in use.
func (p *Processor) Backend() string { return p.backend.Name() }

// Process returns the book for videoURL, building and storing it unless a
// book for the same video already exists. A URL naming no video fails
// before any work with an error for which IsIdentification is true. Any
// later failure is recorded and returned as a *ProcessingError.
func (p *Processor) Process(ctx context.Context, videoURL string) (*book.Document, error) {
	videoID, err := book.ExtractVideoID(videoURL)
	if err != nil {
		return nil, err
	}
	log := p.log.With(slog.String("video_id", videoID))

	existing, err := p.store.FindBySourceVideoID(ctx, videoID)
	switch {
	case err == nil:
		p.metrics.BooksDeduplicated.Add(1)
		log.Info("book already exists", slog.String("id", existing.ID))
		return existing, nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("idempotency check: %w", err)
	}

	var doc *book.Document
	err = engine.TrackOperation(ctx, log, "process:"+videoID, func(ctx context.Context) error {
		var stage string
		var runErr error
		doc, stage, runErr = p.run(ctx, log, videoID)
		if runErr != nil {
			return p.fail(ctx, log, videoURL, videoID, stage, runErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	id, err := p.store.Insert(ctx, doc)
	if errors.Is(err, store.ErrDuplicate) {
		winner, findErr := p.store.FindBySourceVideoID(ctx, videoID)
		if findErr == nil {
			p.metrics.DuplicateRaces.Add(1)
			log.Info("concurrent run stored the book first", slog.String("id", winner.ID))
			return winner, nil
		}
		err = errors.Join(err, findErr)
	}
	if err != nil {
		return nil, p.fail(ctx, log, videoURL, videoID, StagePersist, err)
	}

	p.metrics.BooksProcessed.Add(1)
	log.Info("book stored",
		slog.String("id", id),
		slog.String("backend", doc.Backend),
		slog.Int("chapters", len(doc.Chapters)))
	return doc, nil
}

// fail stores the error record and wraps err. A record that cannot be
// written is logged; the run error still reaches the caller.
func (p *Processor) fail(ctx context.Context, log *slog.Logger, videoURL, videoID, stage string, err error) error {
	p.metrics.BooksFailed.Add(1)
	log.Error("processing failed", slog.String("stage", stage), slog.Any("error", err))

	rec := &book.ErrorRecord{
		VideoURL:  videoURL,
		VideoID:   videoID,
		Stage:     stage,
		Error:     err.Error(),
		Status:    book.StatusFailed,
		CreatedAt: p.now(),
	}
	// The run context may be the reason for the failure.
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	recID, recErr := p.store.InsertError(recCtx, rec)
	if recErr != nil {
		log.Error("error record not stored", slog.Any("error", recErr))
	}
	return &ProcessingError{VideoURL: videoURL, VideoID: videoID, Stage: stage, RecordID: recID, Err: err}
}

// run executes every stage up to assembly. It returns the failing stage
// name with any error.
func (p *Processor) run(ctx context.Context, log *slog.Logger, videoID string) (*book.Document, string, error) {
	video, err := p.metadata.Metadata(ctx, videoID)
	if err != nil {
		return nil, StageMetadata, err
	}
	transcript, err := p.transcripts.Transcribe(ctx, videoID)
	if err != nil {
		return nil, StageTranscript, err
	}
	if strings.TrimSpace(transcript) == "" {
		return nil, StageTranscript, ErrEmptyTranscript
	}

	in := stages.Input{
		Title:           video.Title,
		Channel:         video.ChannelName,
		Description:     video.Description,
		DurationSeconds: video.DurationSeconds,
		Transcript:      transcript,
	}

	outline := stages.Run(ctx, stages.StageOutline, p.timeout, func(ctx context.Context) (book.Outline, error) {
		return p.backend.Outline(ctx, in)
	})
	if outline.Failed() {
		return nil, stages.StageOutline, outline.Err
	}
	o := outline.Value

	chunks := book.Chunk(transcript, p.maxTokens, p.counter)
	log.Info("outline ready",
		slog.Int("outline", len(o.ChapterOutline)),
		slog.Int("chunks", len(chunks)),
		slog.Duration("elapsed", outline.Elapsed))

	chapters := book.MergeChapters(p.chapterLoop(ctx, log, in, o, chunks))
	if err := ctx.Err(); err != nil {
		return nil, stages.StageChapters, err
	}
	if len(chapters) == 0 {
		log.Warn("no chapters extracted")
	}

	glossary := secondary(ctx, p, log, stages.StageGlossary, map[string]string{}, func(ctx context.Context) (map[string]string, error) {
		return p.backend.Glossary(ctx, in, o)
	})
	reading := secondary(ctx, p, log, stages.StageFurtherReading, []book.ReadingItem{}, func(ctx context.Context) ([]book.ReadingItem, error) {
		return p.backend.FurtherReading(ctx, in, o)
	})
	takeaways := secondary(ctx, p, log, stages.StageTakeaways, []string{}, func(ctx context.Context) ([]string, error) {
		return p.backend.Takeaways(ctx, in, o)
	})
	defaultClass, _ := stages.SimplifiedBackend{}.Classify(ctx, in, o)
	class := secondary(ctx, p, log, stages.StageClassify, defaultClass, func(ctx context.Context) (book.Classification, error) {
		return p.backend.Classify(ctx, in, o)
	})

	if glossary == nil {
		glossary = map[string]string{}
	}
	if reading == nil {
		reading = []book.ReadingItem{}
	}

	now := p.now()
	video.ID = videoID
	if video.URL == "" {
		video.URL = book.CanonicalURL(videoID)
	}
	doc := &book.Document{
		Title:                video.Title,
		Slug:                 book.Slugify(video.Title),
		Author:               video.ChannelName,
		Summary:              o.Summary,
		Chapters:             chapters,
		Glossary:             glossary,
		FurtherReading:       reading,
		KeyTakeaways:         takeaways,
		KeyThemes:            nonNil(o.KeyThemes),
		TargetAudience:       o.TargetAudience,
		DifficultyLevel:      book.NormalizeDifficulty(o.DifficultyLevel),
		PrimaryCategory:      class.PrimaryCategory,
		Categories:           nonNil(class.Categories),
		Tags:                 nonNil(class.Tags),
		EstimatedReadingTime: class.EstimatedReadingTime,
		Language:             p.language.Detect(transcript),
		Backend:              p.backend.Name(),
		SourceVideo:          video,
		Status:               book.StatusCompleted,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	return doc, "", nil
}

// chapterLoop extracts fragments for every chunk. Results are indexed by
// chunk so the merge sees chunk order whatever the concurrency. A failed
// chunk leaves a nil entry.
func (p *Processor) chapterLoop(ctx context.Context, log *slog.Logger, in stages.Input, o book.Outline, chunks []book.TranscriptChunk) [][]book.Fragment {
	out := make([][]book.Fragment, len(chunks))
	extract := func(ctx context.Context, i int) {
		ch := stages.ChunkInput{
			Chunk:   chunks[i],
			Total:   len(chunks),
			Outline: book.SelectOutline(o.ChapterOutline, i, len(chunks)),
		}
		res := stages.Run(ctx, stages.StageChapters, p.timeout, func(ctx context.Context) ([]book.Fragment, error) {
			return p.backend.Chapters(ctx, in, ch)
		})
		p.metrics.ChunksProcessed.Add(1)
		if res.Failed() {
			p.metrics.StageFailures.Add(1)
			log.Warn("chunk skipped",
				slog.Int("chunk", i),
				slog.Int("tokens", chunks[i].Tokens),
				slog.Any("error", res.Err))
			return
		}
		out[i] = res.Value
	}

	if p.concurrency <= 1 || len(chunks) <= 1 {
		for i := range chunks {
			if ctx.Err() != nil {
				break
			}
			extract(ctx, i)
		}
		return out
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i := range chunks {
		g.Go(func() error {
			extract(gctx, i)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// secondary runs a non-fatal stage and substitutes def on failure.
func secondary[T any](ctx context.Context, p *Processor, log *slog.Logger, stage string, def T, fn func(context.Context) (T, error)) T {
	res := stages.Run(ctx, stage, p.timeout, fn)
	if res.Failed() {
		p.metrics.StageFailures.Add(1)
		log.Warn("stage failed, using default", slog.String("stage", stage), slog.Any("error", res.Err))
	}
	return res.Or(def)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Get returns the book with the given id.
func (p *Processor) Get(ctx context.Context, id string) (*book.Document, error) {
	return p.store.FindByID(ctx, id)
}

// Search lists books matching q.
func (p *Processor) Search(ctx context.Context, q book.Query) ([]book.Summary, error) {
	return p.store.Search(ctx, q.Normalize())
}

// Update applies a patch. An empty patch returns the book unchanged.
func (p *Processor) Update(ctx context.Context, id string, patch book.Patch) (*book.Document, error) {
	if patch.Empty() {
		return p.store.FindByID(ctx, id)
	}
	return p.store.Update(ctx, id, patch, p.now())
}

// Delete removes a book.
func (p *Processor) Delete(ctx context.Context, id string) error {
	return p.store.Delete(ctx, id)
}

// Errors lists stored processing errors, newest first.
func (p *Processor) Errors(ctx context.Context, videoURL string, limit int) ([]book.ErrorRecord, error) {
	return p.store.ListErrors(ctx, videoURL, limit)
}

// Markdown renders a stored book as markdown.
func (p *Processor) Markdown(ctx context.Context, id string) (string, error) {
	doc, err := p.store.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	return book.Markdown(doc), nil
}
