package book

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var wordCounter = CounterFunc(func(s string) int { return len(strings.Fields(s)) })

var runeCounter = CounterFunc(func(s string) int { return len([]rune(s)) })

func TestChunkFitsWhole(t *testing.T) {
	text := "  keep   the original spacing "
	chunks := Chunk(text, 10, wordCounter)
	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0].Text)
	assert.Equal(t, 4, chunks[0].Tokens)
}

func TestChunkEmpty(t *testing.T) {
	for _, in := range []string{"", "   ", "\n\t"} {
		if got := Chunk(in, 10, wordCounter); len(got) != 0 {
			t.Errorf("Chunk(%q) = %v, want no chunks", in, got)
		}
	}
}

func TestChunkGreedy(t *testing.T) {
	chunks := Chunk("a b c d e f g", 3, wordCounter)
	assert.Equal(t, []string{"a b c", "d e f", "g"}, Texts(chunks))
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.LessOrEqual(t, c.Tokens, 3)
	}
}

func TestChunkOversizedWord(t *testing.T) {
	chunks := Chunk("hi extraordinary ok", 5, runeCounter)
	assert.Equal(t, []string{"hi", "extraordinary", "ok"}, Texts(chunks))
	for _, c := range chunks {
		assert.NotEmpty(t, c.Text)
	}
}

func TestChunkLossless(t *testing.T) {
	text := strings.Repeat("the quick  brown fox\njumps over the lazy dog.\t", 40)
	for _, budget := range []int{7, 20, 55, 130} {
		chunks := Chunk(text, budget, HeuristicCounter)
		joined := strings.Join(Texts(chunks), " ")
		if strings.Join(strings.Fields(joined), " ") != strings.Join(strings.Fields(text), " ") {
			t.Fatalf("budget %d: chunks do not reconstruct the transcript", budget)
		}
		for _, c := range chunks {
			if c.Tokens > budget && len(strings.Fields(c.Text)) > 1 {
				t.Errorf("budget %d: chunk %d has %d tokens", budget, c.Index, c.Tokens)
			}
		}
	}
}

func TestChunkDeterministic(t *testing.T) {
	text := strings.Repeat("lorem ipsum dolor sit amet ", 100)
	a := Texts(Chunk(text, 25, HeuristicCounter))
	b := Texts(Chunk(text, 25, HeuristicCounter))
	assert.Equal(t, a, b)
}

func TestTiktokenCounter(t *testing.T) {
	c, err := NewTiktokenCounter("gpt-4")
	require.NoError(t, err)
	assert.Positive(t, c.Count("hello world"))
	assert.Zero(t, c.Count(""))
}

func TestNewTokenCounterFallback(t *testing.T) {
	c := NewTokenCounter("no-such-model-xyz", nil)
	assert.Equal(t, 1, c.Count("abcd"))
}
