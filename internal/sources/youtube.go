// Package sources fetches YouTube video metadata and caption transcripts.
//
// Responsibilities are split across files:
//
//	youtube.go    client construction, shared HTTP helpers
//	innertube.go  Innertube request/response types and the WEB POST primitive
//	metadata.go   Data API v3 lookup with watch-page fallback
//	transcript.go caption transcripts (watch page, engagement panel, ANDROID player)
//	srt.go        SRT caption cleanup
package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/anatolykoptev/go_book/internal/engine"
)

var (
	// ErrVideoNotFound is returned when no source knows the video id.
	ErrVideoNotFound = errors.New("sources: video not found")
	// ErrNoCaptions is returned when every caption path failed.
	ErrNoCaptions = errors.New("sources: no captions available")
)

// Endpoints are the upstream base URLs. Tests point them at httptest servers.
type Endpoints struct {
	DataAPI   string
	Watch     string
	Innertube string
}

// DefaultEndpoints are the production YouTube hosts.
var DefaultEndpoints = Endpoints{
	DataAPI:   "https://www.googleapis.com/youtube/v3",
	Watch:     "https://www.youtube.com",
	Innertube: "https://www.youtube.com/youtubei/v1",
}

// YouTube fetches metadata and caption transcripts for single videos.
type YouTube struct {
	http      *http.Client
	browser   *engine.BrowserClient
	cache     *engine.Cache
	metrics   *engine.Metrics
	log       *slog.Logger
	apiKeys   []string
	langs     []string
	retry     engine.RetryConfig
	endpoints Endpoints
}

// Option customizes a YouTube client.
type Option func(*YouTube)

// WithEndpoints overrides the upstream base URLs.
func WithEndpoints(e Endpoints) Option { return func(y *YouTube) { y.endpoints = e } }

// WithHTTPClient replaces the plain HTTP client.
func WithHTTPClient(c *http.Client) Option { return func(y *YouTube) { y.http = c } }

// WithBrowser routes watch-page requests through a stealth browser client.
func WithBrowser(b *engine.BrowserClient) Option { return func(y *YouTube) { y.browser = b } }

// WithCache enables per-video caching of metadata and transcripts.
func WithCache(c *engine.Cache) Option { return func(y *YouTube) { y.cache = c } }

// WithRetry overrides the HTTP retry policy.
func WithRetry(rc engine.RetryConfig) Option { return func(y *YouTube) { y.retry = rc } }

// NewYouTube builds a client from config.
func NewYouTube(cfg engine.Config, log *slog.Logger, m *engine.Metrics, opts ...Option) *YouTube {
	y := &YouTube{
		http:      engine.NewHTTPClient(cfg),
		metrics:   engine.OrNew(m),
		log:       engine.OrDefault(log).With("component", "youtube"),
		langs:     cfg.CaptionLangs,
		retry:     engine.DefaultRetryConfig,
		endpoints: DefaultEndpoints,
	}
	for _, k := range []string{cfg.YouTubeAPIKey, cfg.YouTubeAPIKeyFallback} {
		if k != "" {
			y.apiKeys = append(y.apiKeys, k)
		}
	}
	if len(y.langs) == 0 {
		y.langs = []string{"en"}
	}
	for _, o := range opts {
		o(y)
	}
	return y
}

// getPage GETs an HTML page. The stealth client is preferred when present;
// a browser failure falls through to the plain client.
func (y *YouTube) getPage(ctx context.Context, pageURL string) ([]byte, error) {
	if y.browser != nil {
		headers := engine.ChromeHeaders()
		headers["Accept-Language"] = "en-US,en;q=0.9"
		data, err := engine.RetryDo(ctx, y.retry, func() ([]byte, error) {
			data, _, status, err := y.browser.Do(http.MethodGet, pageURL, headers, nil)
			if err != nil {
				return nil, err
			}
			if status != http.StatusOK {
				return nil, fmt.Errorf("HTTP %d", status)
			}
			return data, nil
		})
		if err == nil {
			return data, nil
		}
		y.log.Debug("browser fetch failed, using plain client", slog.String("url", pageURL), slog.Any("error", err))
	}

	resp, err := engine.RetryHTTP(ctx, y.retry, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", engine.RandomUserAgent())
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		return y.http.Do(req)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrVideoNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 6*1024*1024))
}

// playerResponseMarker marks the start of the player response JSON in watch page HTML.
const playerResponseMarker = "ytInitialPlayerResponse = "

// extractPlayerResponse cuts the ytInitialPlayerResponse object out of a watch page.
func extractPlayerResponse(page []byte) ([]byte, error) {
	idx := strings.Index(string(page), playerResponseMarker)
	if idx < 0 {
		return nil, errors.New("ytInitialPlayerResponse not found in watch page")
	}
	data := engine.ExtractJSON(page[idx+len(playerResponseMarker):])
	if data == nil {
		return nil, errors.New("failed to extract ytInitialPlayerResponse JSON")
	}
	return data, nil
}
