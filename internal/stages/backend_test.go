package stages

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_book/internal/book"
	"github.com/anatolykoptev/go_book/internal/engine"
)

type call struct {
	system, prompt string
	temperature    float64
}

// fakeCompleter answers by matching a substring of the prompt.
type fakeCompleter struct {
	mu      sync.Mutex
	replies map[string]string
	err     error
	calls   []call
}

func (f *fakeCompleter) Complete(_ context.Context, system, prompt string, temperature float64, _ int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{system, prompt, temperature})
	if f.err != nil {
		return "", f.err
	}
	for marker, reply := range f.replies {
		if strings.Contains(prompt, marker) {
			return reply, nil
		}
	}
	return "{}", nil
}

func TestLLMBackendOutlinePrompt(t *testing.T) {
	fc := &fakeCompleter{replies: map[string]string{
		"chapter titles": `{"summary": "S", "chapter_outline": ["A"]}`,
	}}
	b := NewLLMBackend(fc)
	transcript := strings.Repeat("x", 2000) + strings.Repeat("y", 2000)

	o, err := b.Outline(context.Background(), Input{Title: "Go Talk", Channel: "Gophers", DurationSeconds: 600, Transcript: transcript})
	require.NoError(t, err)
	assert.Equal(t, "S", o.Summary)

	require.Len(t, fc.calls, 1)
	c := fc.calls[0]
	assert.Equal(t, editorSystem, c.system)
	assert.Equal(t, outlineTemperature, c.temperature)
	assert.Contains(t, c.prompt, "Title: Go Talk")
	assert.Contains(t, c.prompt, "Duration: 600 seconds")
	assert.NotContains(t, c.prompt, strings.Repeat("x", 3001), "head excerpt is capped")
}

func TestLLMBackendChapters(t *testing.T) {
	fc := &fakeCompleter{replies: map[string]string{
		"chunk 2 of 3": `{"B": {"content": "b"}, "A": {"content": "a"}}`,
	}}
	b := NewLLMBackend(fc)

	frags, err := b.Chapters(context.Background(), Input{Title: "T"}, ChunkInput{
		Chunk:   book.TranscriptChunk{Index: 1, Text: "chunk body"},
		Total:   3,
		Outline: []string{"A", "B"},
	})
	require.NoError(t, err)
	require.Len(t, frags, 2)
	assert.Equal(t, "B", frags[0].Title)
	assert.Contains(t, fc.calls[0].prompt, `["A","B"]`)
	assert.Contains(t, fc.calls[0].prompt, "chunk body")
}

func TestLLMBackendPropagatesErrors(t *testing.T) {
	boom := errors.New("upstream 503")
	b := NewLLMBackend(&fakeCompleter{err: boom})
	_, err := b.Glossary(context.Background(), Input{}, book.Outline{})
	assert.ErrorIs(t, err, boom)

	b = NewLLMBackend(&fakeCompleter{replies: map[string]string{"Further Reading": "no json"}})
	_, err = b.FurtherReading(context.Background(), Input{}, book.Outline{})
	assert.ErrorIs(t, err, ErrParse)
}

func TestLLMBackendReadingTemperature(t *testing.T) {
	fc := &fakeCompleter{replies: map[string]string{"Further Reading": `[]`}}
	_, err := NewLLMBackend(fc).FurtherReading(context.Background(), Input{}, book.Outline{KeyThemes: nil})
	require.NoError(t, err)
	assert.Equal(t, readingTemperature, fc.calls[0].temperature)
	assert.Contains(t, fc.calls[0].prompt, "Key Themes: []")
}

func TestSimplifiedBackend(t *testing.T) {
	ctx := context.Background()
	b := NewSimplifiedBackend()

	t.Run("short transcript", func(t *testing.T) {
		in := Input{Transcript: "short talk"}
		o, err := b.Outline(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, "short talk", o.Summary)
		assert.Equal(t, []string{"Introduction"}, o.ChapterOutline)

		frags, err := b.Chapters(ctx, in, ChunkInput{Chunk: book.TranscriptChunk{Index: 0}, Total: 1})
		require.NoError(t, err)
		require.Len(t, frags, 1)
		assert.Equal(t, "short talk", frags[0].Content)
	})

	t.Run("long transcript", func(t *testing.T) {
		transcript := strings.Repeat("a", 3000) + strings.Repeat("b", 3000)
		in := Input{Transcript: transcript}

		o, _ := b.Outline(ctx, in)
		assert.Len(t, o.Summary, 503)
		assert.True(t, strings.HasSuffix(o.Summary, "..."))
		assert.Equal(t, []string{"Introduction", "Main Content", "Conclusion"}, o.ChapterOutline)

		frags, _ := b.Chapters(ctx, in, ChunkInput{Chunk: book.TranscriptChunk{Index: 0}, Total: 2})
		require.Len(t, frags, 3)
		assert.Equal(t, strings.Repeat("a", 1000)+"...", frags[0].Content)
		assert.Equal(t, strings.Repeat("b", 1000)+"...", frags[1].Content, "main content starts at min(len/2, 3000)")
		assert.Equal(t, strings.Repeat("b", 1000), frags[2].Content)
		assert.Equal(t, []string{"Summary and conclusions"}, frags[2].KeyPoints)

		later, _ := b.Chapters(ctx, in, ChunkInput{Chunk: book.TranscriptChunk{Index: 1}, Total: 2})
		assert.Empty(t, later)

		c, _ := b.Classify(ctx, in, o)
		assert.Equal(t, 6, c.EstimatedReadingTime)
		assert.Equal(t, "Education", c.PrimaryCategory)
	})

	t.Run("fixed extras", func(t *testing.T) {
		g, _ := b.Glossary(ctx, Input{}, book.Outline{})
		assert.Equal(t, "Definition for Topic 2", g["Topic 2"])
		tk, _ := b.Takeaways(ctx, Input{}, book.Outline{})
		assert.Len(t, tk, 2)
	})
}

func TestSelect(t *testing.T) {
	cfg := engine.DefaultConfig()
	assert.Equal(t, "simplified", Select(cfg, &fakeCompleter{}, nil).Name())

	cfg.LLMAPIKey = "key"
	assert.Equal(t, "llm", Select(cfg, &fakeCompleter{}, nil).Name())
	assert.Equal(t, "simplified", Select(cfg, nil, nil).Name())
}

func TestRunResult(t *testing.T) {
	ctx := context.Background()

	ok := Run(ctx, StageGlossary, time.Second, func(context.Context) (int, error) { return 7, nil })
	assert.False(t, ok.Failed())
	assert.Equal(t, 7, ok.Or(0))

	failed := Run(ctx, StageGlossary, time.Second, func(context.Context) (int, error) { return 1, errors.New("bad") })
	assert.True(t, failed.Failed())
	assert.Equal(t, -1, failed.Or(-1))
	assert.Contains(t, failed.Err.Error(), "glossary")

	timedOut := Run(ctx, StageOutline, 10*time.Millisecond, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	assert.ErrorIs(t, timedOut.Err, context.DeadlineExceeded)

	panicked := Run(ctx, StageChapters, 0, func(context.Context) ([]string, error) { panic("nil map") })
	assert.True(t, panicked.Failed())
	assert.Nil(t, panicked.Value)
}
