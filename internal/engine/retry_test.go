package engine

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBackoffSucceedsAfterTransientErrors(t *testing.T) {
	calls := 0
	got, err := Backoff(context.Background(), 5, 10*time.Second, func() (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" {
		t.Errorf("got %q, want ok", got)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestBackoffStopsOnPermanent(t *testing.T) {
	calls := 0
	sentinel := errors.New("bad request")
	_, err := Backoff(context.Background(), 5, 10*time.Second, func() (int, error) {
		calls++
		return 0, Permanent(sentinel)
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestBackoffRespectsMaxTries(t *testing.T) {
	calls := 0
	_, err := Backoff(context.Background(), 2, 10*time.Second, func() (int, error) {
		calls++
		return 0, errors.New("always")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}
