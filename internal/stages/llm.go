package stages

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anatolykoptev/go_book/internal/book"
	"github.com/anatolykoptev/go_book/internal/engine"
)

const (
	excerptSize        = 3000
	takeawayExcerpt    = 1500
	classifyExcerpt    = 3000
	descriptionExcerpt = 1000

	outlineTemperature = 0.3
	chapterTemperature = 0.3
	readingTemperature = 0.4

	classifyMaxTokens = 800
	takeawayMaxTokens = 500
)

// LLMBackend drives every stage through a chat-completion model.
type LLMBackend struct {
	llm engine.Completer
}

// NewLLMBackend returns the capable backend.
func NewLLMBackend(c engine.Completer) *LLMBackend {
	return &LLMBackend{llm: c}
}

func (b *LLMBackend) Name() string { return "llm" }

func (b *LLMBackend) Outline(ctx context.Context, in Input) (book.Outline, error) {
	ex := book.TranscriptExcerpts(in.Transcript, excerptSize)
	prompt := fmt.Sprintf(outlinePrompt, in.Title, in.Channel, in.DurationSeconds, ex.Head, ex.Middle, ex.Tail)
	raw, err := b.llm.Complete(ctx, editorSystem, prompt, outlineTemperature, 0)
	if err != nil {
		return book.Outline{}, err
	}
	return parseOutline(raw)
}

func (b *LLMBackend) Chapters(ctx context.Context, in Input, ch ChunkInput) ([]book.Fragment, error) {
	titles, err := json.Marshal(ch.Outline)
	if err != nil {
		return nil, err
	}
	prompt := fmt.Sprintf(chapterPrompt, in.Title, titles, ch.Chunk.Index+1, ch.Total, ch.Chunk.Text)
	raw, err := b.llm.Complete(ctx, editorSystem, prompt, chapterTemperature, 0)
	if err != nil {
		return nil, err
	}
	return parseChapters(raw)
}

func (b *LLMBackend) Glossary(ctx context.Context, in Input, o book.Outline) (map[string]string, error) {
	prompt := fmt.Sprintf(glossaryPrompt, in.Title, o.Summary, jsonList(o.KeyThemes))
	raw, err := b.llm.Complete(ctx, glossarySystem, prompt, outlineTemperature, 0)
	if err != nil {
		return nil, err
	}
	return parseGlossary(raw)
}

func (b *LLMBackend) FurtherReading(ctx context.Context, in Input, o book.Outline) ([]book.ReadingItem, error) {
	prompt := fmt.Sprintf(readingPrompt, in.Title, in.Channel, o.Summary, jsonList(o.KeyThemes))
	raw, err := b.llm.Complete(ctx, readingSystem, prompt, readingTemperature, 0)
	if err != nil {
		return nil, err
	}
	return parseReading(raw)
}

func (b *LLMBackend) Takeaways(ctx context.Context, in Input, o book.Outline) ([]string, error) {
	tail := ""
	if len([]rune(in.Transcript)) > takeawayExcerpt {
		tail = book.Tail(in.Transcript, takeawayExcerpt)
	}
	prompt := fmt.Sprintf(takeawayPrompt, o.Summary, book.Head(in.Transcript, takeawayExcerpt), tail)
	raw, err := b.llm.Complete(ctx, takeawaySystem, prompt, outlineTemperature, takeawayMaxTokens)
	if err != nil {
		return nil, err
	}
	return parseTakeaways(raw)
}

func (b *LLMBackend) Classify(ctx context.Context, in Input, o book.Outline) (book.Classification, error) {
	prompt := fmt.Sprintf(classifyPrompt, in.Title, in.Channel,
		engine.TruncateRunes(in.Description, descriptionExcerpt, "..."),
		book.Head(in.Transcript, classifyExcerpt))
	raw, err := b.llm.Complete(ctx, classifySystem, prompt, outlineTemperature, classifyMaxTokens)
	if err != nil {
		return book.Classification{}, err
	}
	return parseClassification(raw)
}

func jsonList(items []string) string {
	if items == nil {
		items = []string{}
	}
	b, _ := json.Marshal(items)
	return string(b)
}
