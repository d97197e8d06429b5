package book

import (
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// TranscriptChunk is one bounded slice of a transcript.
type TranscriptChunk struct {
	Index  int
	Text   string
	Tokens int
}

// TokenCounter estimates how many model tokens a string costs.
type TokenCounter interface {
	Count(s string) int
}

// CounterFunc adapts a plain function to TokenCounter.
type CounterFunc func(string) int

func (f CounterFunc) Count(s string) int { return f(s) }

// HeuristicCounter approximates tokens as one per four characters.
var HeuristicCounter = CounterFunc(func(s string) int {
	n := utf8.RuneCountInString(s)
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
})

var loaderOnce sync.Once

// TiktokenCounter counts with the BPE encoding of a given model.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenCounter loads the encoding for model from the embedded BPE
// ranks, so no network access is needed.
func NewTiktokenCounter(model string) (*TiktokenCounter, error) {
	loaderOnce.Do(func() { tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader()) })
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return nil, err
	}
	return &TiktokenCounter{enc: enc}, nil
}

func (c *TiktokenCounter) Count(s string) int {
	return len(c.enc.EncodeOrdinary(s))
}

// NewTokenCounter returns the tiktoken counter for model, or HeuristicCounter
// when the encoding is unknown.
func NewTokenCounter(model string, log *slog.Logger) TokenCounter {
	c, err := NewTiktokenCounter(model)
	if err != nil {
		if log == nil {
			log = slog.Default()
		}
		log.Warn("tokenizer unavailable, using heuristic counter", slog.String("model", model), slog.Any("error", err))
		return HeuristicCounter
	}
	return c
}

// Chunk splits text into chunks of at most maxTokens tokens without breaking
// words. Text that fits is returned whole. Empty or whitespace-only text
// yields no chunks. A single word larger than the budget becomes its own chunk.
func Chunk(text string, maxTokens int, counter TokenCounter) []TranscriptChunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if counter == nil {
		counter = HeuristicCounter
	}
	if total := counter.Count(text); total <= maxTokens {
		return []TranscriptChunk{{Index: 0, Text: text, Tokens: total}}
	}

	var (
		chunks  []TranscriptChunk
		current []string
		tokens  int
	)
	flush := func() {
		chunks = append(chunks, TranscriptChunk{
			Index:  len(chunks),
			Text:   strings.Join(current, " "),
			Tokens: tokens,
		})
		current = current[:0]
		tokens = 0
	}
	for _, word := range strings.Fields(text) {
		n := counter.Count(word + " ")
		if tokens+n > maxTokens && len(current) > 0 {
			flush()
		}
		current = append(current, word)
		tokens += n
	}
	if len(current) > 0 {
		flush()
	}
	return chunks
}

// Texts returns the text of each chunk.
func Texts(chunks []TranscriptChunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}
