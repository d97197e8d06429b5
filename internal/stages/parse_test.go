package stages

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_book/internal/book"
)

func TestParseOutline(t *testing.T) {
	t.Run("full", func(t *testing.T) {
		o, err := parseOutline("```json\n" + `{"summary":"S","chapter_outline":["A","B"],"key_themes":["k"],"target_audience":"devs","difficulty_level":"advanced"}` + "\n```")
		require.NoError(t, err)
		assert.Equal(t, "S", o.Summary)
		assert.Equal(t, []string{"A", "B"}, o.ChapterOutline)
		assert.Equal(t, "devs", o.TargetAudience)
		assert.Equal(t, book.DifficultyAdvanced, o.DifficultyLevel)
	})

	t.Run("missing keys default", func(t *testing.T) {
		o, err := parseOutline(`{"summary": "only"}`)
		require.NoError(t, err)
		assert.Empty(t, o.ChapterOutline)
		assert.Empty(t, o.KeyThemes)
		assert.Equal(t, book.DifficultyIntermediate, o.DifficultyLevel)
	})

	t.Run("object outline entries", func(t *testing.T) {
		o, err := parseOutline(`{"chapter_outline":[{"title":"One","description":"x"},"Two",""],"summary":["p1","p2"]}`)
		require.NoError(t, err)
		assert.Equal(t, []string{"One", "Two"}, o.ChapterOutline)
		assert.Equal(t, "p1\n\np2", o.Summary)
	})

	t.Run("garbage is a parse error", func(t *testing.T) {
		_, err := parseOutline("Sorry, I can't do that.")
		assert.True(t, errors.Is(err, ErrParse))
	})

	t.Run("array is a parse error", func(t *testing.T) {
		_, err := parseOutline(`["A","B"]`)
		assert.True(t, errors.Is(err, ErrParse))
	})
}

func TestParseChaptersKeepsKeyOrder(t *testing.T) {
	raw := `{
	  "Zeta": {"content": "z", "key_points": ["z1"]},
	  "Alpha": {"content": "a", "examples": "single example", "quotes": []},
	  "Mid": "plain text body"
	}`
	frags, err := parseChapters(raw)
	require.NoError(t, err)
	require.Len(t, frags, 3)
	assert.Equal(t, "Zeta", frags[0].Title)
	assert.Equal(t, []string{"z1"}, frags[0].KeyPoints)
	assert.Equal(t, "Alpha", frags[1].Title)
	assert.Equal(t, []string{"single example"}, frags[1].Examples)
	assert.Equal(t, "Mid", frags[2].Title)
	assert.Equal(t, "plain text body", frags[2].Content)
}

func TestParseChaptersShapes(t *testing.T) {
	wrapped, err := parseChapters(`{"chapters": {"Intro": {"content": "hi"}}}`)
	require.NoError(t, err)
	require.Len(t, wrapped, 1)
	assert.Equal(t, "Intro", wrapped[0].Title)

	list, err := parseChapters(`Here: [{"title": "Intro", "content": "hi"}, {"content": "untitled"}]`)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "hi", list[0].Content)

	empty, err := parseChapters(`{}`)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = parseChapters(`not json`)
	assert.ErrorIs(t, err, ErrParse)
}

func TestParseGlossary(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want map[string]string
	}{
		{"flat", `{"Goroutine": "lightweight thread", "Channel": "typed pipe"}`, map[string]string{"Goroutine": "lightweight thread", "Channel": "typed pipe"}},
		{"wrapped list", `{"glossary": [{"term": "CSP", "definition": "communicating sequential processes"}]}`, map[string]string{"CSP": "communicating sequential processes"}},
		{"wrapped map", `{"glossary": {"GC": "garbage collector"}}`, map[string]string{"GC": "garbage collector"}},
		{"nested definition", `{"GC": {"definition": "garbage collector"}}`, map[string]string{"GC": "garbage collector"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseGlossary(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseReading(t *testing.T) {
	bare, err := parseReading(`[{"title": "Book", "author": "A", "description": "D"}, {"author": "no title"}]`)
	require.NoError(t, err)
	assert.Equal(t, []book.ReadingItem{{Title: "Book", Author: "A", Description: "D"}}, bare)

	wrapped, err := parseReading(`{"further_reading": [{"title": "Course", "source": "Coursera"}]}`)
	require.NoError(t, err)
	require.Len(t, wrapped, 1)
	assert.Equal(t, "Coursera", wrapped[0].Author)

	none, err := parseReading(`{"note": "nothing"}`)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestParseTakeawaysAndClassification(t *testing.T) {
	tk, err := parseTakeaways(`{"key_takeaways": ["one", "two"]}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, tk)

	tk, err = parseTakeaways(`["solo"]`)
	require.NoError(t, err)
	assert.Equal(t, []string{"solo"}, tk)

	c, err := parseClassification(`{"categories": ["Programming", "Go"], "tags": "go", "estimated_reading_time": "12 minutes"}`)
	require.NoError(t, err)
	assert.Equal(t, "Programming", c.PrimaryCategory)
	assert.Equal(t, []string{"go"}, c.Tags)
	assert.Equal(t, 12, c.EstimatedReadingTime)

	c, err = parseClassification(`{"primary_category": "Science", "estimated_reading_time": 7.5}`)
	require.NoError(t, err)
	assert.Equal(t, "Science", c.PrimaryCategory)
	assert.Equal(t, 7, c.EstimatedReadingTime)
}
