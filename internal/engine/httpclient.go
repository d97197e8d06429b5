package engine

import (
	"log/slog"
	"net/http"
	"time"

	stealth "github.com/anatolykoptev/go-stealth"
	"github.com/anatolykoptev/go-stealth/proxypool"
)

// NewHTTPClient returns the shared client used for YouTube API calls.
func NewHTTPClient(c Config) *http.Client {
	timeout := c.FetchTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     60 * time.Second,
		},
	}
}

// NewBrowserClient builds the stealth client used for watch-page scraping,
// routed through the Webshare proxy pool when a key is configured.
// Returns nil when the client cannot be created; callers fall back to plain HTTP.
func NewBrowserClient(c Config, log *slog.Logger) *BrowserClient {
	log = OrDefault(log)
	opts := []stealth.ClientOption{stealth.WithTimeout(15)}

	if c.WebshareAPIKey != "" {
		pool, err := proxypool.NewWebshare(c.WebshareAPIKey)
		if err != nil {
			log.Warn("proxy pool init failed, running without proxy", slog.Any("error", err))
		} else {
			opts = append(opts, stealth.WithProxyPool(pool))
			log.Info("proxy pool initialized", slog.Int("proxies", pool.Len()))
		}
	}

	bc, err := stealth.NewClient(opts...)
	if err != nil {
		log.Warn("stealth client init failed", slog.Any("error", err))
		return nil
	}
	return bc
}
