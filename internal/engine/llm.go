package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anatolykoptev/go-kit/llm"
	"golang.org/x/time/rate"
)

// ErrMalformedJSON is returned when an LLM response carries no decodable JSON.
var ErrMalformedJSON = errors.New("llm: malformed JSON response")

// Completer is the chat-completion surface the stage backends depend on.
type Completer interface {
	Complete(ctx context.Context, system, prompt string, temperature float64, maxTokens int) (string, error)
}

// LLM wraps the go-kit client with a request rate limit and call counters.
type LLM struct {
	client  *llm.Client
	limiter *rate.Limiter
	metrics *Metrics
}

// NewLLM builds the client from config. Call only when c.CapableLLM() is true.
func NewLLM(c Config, m *Metrics) *LLM {
	client := llm.NewClient(c.LLMAPIBase, c.LLMAPIKey, c.LLMModel,
		llm.WithFallbackKeys(c.LLMAPIKeyFallbacks),
		llm.WithMaxTokens(c.LLMMaxTokens),
		llm.WithTemperature(c.LLMTemperature),
		llm.WithHTTPClient(&http.Client{Timeout: 180 * time.Second}),
	)
	limit := rate.Inf
	if c.LLMRPS > 0 {
		limit = rate.Limit(c.LLMRPS)
	}
	return &LLM{client: client, limiter: rate.NewLimiter(limit, 1), metrics: OrNew(m)}
}

// Complete sends one chat completion. maxTokens <= 0 keeps the client default.
func (l *LLM) Complete(ctx context.Context, system, prompt string, temperature float64, maxTokens int) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", err
	}
	l.metrics.LLMCalls.Add(1)

	var (
		raw string
		err error
	)
	if maxTokens > 0 {
		raw, err = l.client.Complete(ctx, system, prompt,
			llm.WithChatTemperature(temperature),
			llm.WithChatMaxTokens(maxTokens),
		)
	} else {
		raw, err = l.client.Complete(ctx, system, prompt, llm.WithChatTemperature(temperature))
	}
	if err != nil {
		l.metrics.LLMErrors.Add(1)
		return "", err
	}
	return raw, nil
}

// StripFences removes markdown code fences from LLM output.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// DecodeJSON decodes an LLM response into T. Fences and prose around the
// first JSON value are tolerated; anything else is ErrMalformedJSON.
func DecodeJSON[T any](raw string) (T, error) {
	var out T
	s := StripFences(raw)
	if err := json.Unmarshal([]byte(s), &out); err == nil {
		return out, nil
	}
	block := ExtractJSON([]byte(s))
	if block == nil {
		return out, fmt.Errorf("%w: no JSON value in %q", ErrMalformedJSON, TruncateRunes(s, 120, "..."))
	}
	if err := json.Unmarshal(block, &out); err != nil {
		return out, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}
	return out, nil
}

// ExtractJSON returns the first balanced JSON object or array in b, or nil.
func ExtractJSON(b []byte) []byte {
	start := -1
	for i, c := range b {
		if c == '{' || c == '[' {
			start = i
			break
		}
	}
	if start < 0 {
		return nil
	}
	depth := 0
	inStr := false
	escaped := false
	for i := start; i < len(b); i++ {
		c := b[i]
		if inStr {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return b[start : i+1]
			}
		}
	}
	return nil
}
