package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// Metrics tracks operational counters. Constructors that accept a *Metrics
// substitute a fresh one for nil, so counters are always addressable.
type Metrics struct {
	BooksProcessed         atomic.Int64
	BooksDeduplicated      atomic.Int64
	BooksFailed            atomic.Int64
	DuplicateRaces         atomic.Int64
	LLMCalls               atomic.Int64
	LLMErrors              atomic.Int64
	StageFailures          atomic.Int64
	ChunksProcessed        atomic.Int64
	CaptionsFetched        atomic.Int64
	AudioTranscriptions    atomic.Int64
	TranscriptionFallbacks atomic.Int64
	CacheHits              atomic.Int64
	CacheMisses            atomic.Int64
}

// NewMetrics returns a zeroed counter set.
func NewMetrics() *Metrics { return &Metrics{} }

// OrNew returns m, or a fresh Metrics when m is nil.
func OrNew(m *Metrics) *Metrics {
	if m == nil {
		return NewMetrics()
	}
	return m
}

// metricKeys fixes the exposition order.
var metricKeys = []string{
	"books_processed", "books_deduplicated", "books_failed", "duplicate_races",
	"llm_calls", "llm_errors", "stage_failures", "chunks_processed",
	"captions_fetched", "audio_transcriptions", "transcription_fallbacks",
	"cache_hits", "cache_misses",
}

// Snapshot returns the current counter values.
func (m *Metrics) Snapshot() map[string]int64 {
	if m == nil {
		return map[string]int64{}
	}
	return map[string]int64{
		"books_processed":         m.BooksProcessed.Load(),
		"books_deduplicated":      m.BooksDeduplicated.Load(),
		"books_failed":            m.BooksFailed.Load(),
		"duplicate_races":         m.DuplicateRaces.Load(),
		"llm_calls":               m.LLMCalls.Load(),
		"llm_errors":              m.LLMErrors.Load(),
		"stage_failures":          m.StageFailures.Load(),
		"chunks_processed":        m.ChunksProcessed.Load(),
		"captions_fetched":        m.CaptionsFetched.Load(),
		"audio_transcriptions":    m.AudioTranscriptions.Load(),
		"transcription_fallbacks": m.TranscriptionFallbacks.Load(),
		"cache_hits":              m.CacheHits.Load(),
		"cache_misses":            m.CacheMisses.Load(),
	}
}

// Format returns metrics as a simple text format for the HTTP endpoint.
func (m *Metrics) Format() string {
	snap := m.Snapshot()
	var sb strings.Builder
	for _, k := range metricKeys {
		fmt.Fprintf(&sb, "%s %d\n", k, snap[k])
	}
	return sb.String()
}

// slowOperation is the threshold above which TrackOperation warns.
const slowOperation = 5 * time.Second

// TrackOperation logs a warning if an operation takes longer than slowOperation.
func TrackOperation(ctx context.Context, log *slog.Logger, name string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	if elapsed > slowOperation {
		OrDefault(log).Warn("slow operation", slog.String("op", name), slog.Duration("elapsed", elapsed))
	}
	return err
}
