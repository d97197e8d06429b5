package engine

import (
	"context"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	stealth "github.com/anatolykoptev/go-stealth"
)

// Re-export stealth types and functions for engine consumers.
type (
	BrowserClient = stealth.BrowserClient
	RetryConfig   = stealth.RetryConfig
)

var DefaultRetryConfig = stealth.DefaultRetryConfig

func ChromeHeaders() map[string]string { return stealth.ChromeHeaders() }
func RandomUserAgent() string          { return stealth.RandomUserAgent() }
func IsRetryableStatus(code int) bool  { return stealth.IsRetryableStatus(code) }

func RetryDo[T any](ctx context.Context, rc RetryConfig, fn func() (T, error)) (T, error) {
	return stealth.RetryDo(ctx, rc, fn)
}

func RetryHTTP(ctx context.Context, rc RetryConfig, fn func() (*http.Response, error)) (*http.Response, error) {
	return stealth.RetryHTTP(ctx, rc, fn)
}

// Permanent marks err as not worth retrying inside Backoff.
func Permanent(err error) error { return backoff.Permanent(err) }

// Backoff retries op with exponential backoff for non-HTTP work such as
// store connects and speech operations. Wrap an error with Permanent to stop early.
func Backoff[T any](ctx context.Context, tries uint, maxElapsed time.Duration, op func() (T, error)) (T, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 10 * time.Second
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(tries),
		backoff.WithMaxElapsedTime(maxElapsed),
	)
}
