package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestMetricsFormat(t *testing.T) {
	m := NewMetrics()
	m.BooksProcessed.Add(2)
	m.LLMCalls.Add(7)

	out := m.Format()
	for _, want := range []string{"books_processed 2\n", "llm_calls 7\n", "cache_misses 0\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("Format() missing %q in:\n%s", want, out)
		}
	}
	if lines := strings.Count(out, "\n"); lines != len(metricKeys) {
		t.Errorf("expected %d lines, got %d", len(metricKeys), lines)
	}
}

func TestMetricsNilSnapshot(t *testing.T) {
	var m *Metrics
	if len(m.Snapshot()) != 0 {
		t.Error("nil metrics snapshot should be empty")
	}
	if OrNew(m) == nil {
		t.Error("OrNew must never return nil")
	}
}

func TestTrackOperationPassesError(t *testing.T) {
	sentinel := errors.New("boom")
	err := TrackOperation(context.Background(), nil, "op", func(context.Context) error { return sentinel })
	if !errors.Is(err, sentinel) {
		t.Errorf("expected sentinel, got %v", err)
	}
}
