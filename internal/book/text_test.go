package book

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Hello, World! Go 101", "hello-world-go-101"},
		{"  Kubernetes   in  Action ", "kubernetes-in-action"},
		{"Pre-built snake_case", "pre-built-snake_case"},
		{"Café déjà vu", "café-déjà-vu"},
	}
	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeDifficulty(t *testing.T) {
	tests := []struct{ in, want string }{
		{"beginner to intermediate", DifficultyBeginner},
		{"ADVANCED", DifficultyAdvanced},
		{"Expert-level", DifficultyExpert},
		{"", DifficultyIntermediate},
		{"hard", DifficultyIntermediate},
	}
	for _, tt := range tests {
		if got := NormalizeDifficulty(tt.in); got != tt.want {
			t.Errorf("NormalizeDifficulty(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTranscriptExcerpts(t *testing.T) {
	short := TranscriptExcerpts("only a little", 3000)
	assert.Equal(t, "only a little", short.Head)
	assert.Empty(t, short.Middle)
	assert.Empty(t, short.Tail)

	long := strings.Repeat("a", 2000) + strings.Repeat("b", 2000)
	ex := TranscriptExcerpts(long, 3000)
	assert.Len(t, ex.Head, 3000)
	assert.Len(t, ex.Middle, 3000)
	assert.Len(t, ex.Tail, 3000)
	assert.True(t, strings.HasPrefix(ex.Middle, strings.Repeat("a", 1500)))
	assert.True(t, strings.HasSuffix(ex.Tail, "b"))
}

func TestHeadTail(t *testing.T) {
	assert.Equal(t, "héll", Head("héllo", 4))
	assert.Equal(t, "llo", Tail("héllo", 3))
	assert.Equal(t, "hi", Tail("hi", 5))
}

func TestQueryNormalize(t *testing.T) {
	q := Query{Skip: -4, Limit: 0, Difficulty: "advanced"}.Normalize()
	assert.Equal(t, 0, q.Skip)
	assert.Equal(t, DefaultLimit, q.Limit)
	assert.Equal(t, DifficultyAdvanced, q.Difficulty)

	assert.Equal(t, MaxLimit, Query{Limit: 1000}.Normalize().Limit)
	assert.Equal(t, 7, Query{Limit: 7}.Normalize().Limit)
}

func TestDocumentApply(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d := &Document{
		Title:       "Old",
		Slug:        "old",
		SourceVideo: SourceVideo{ID: "dQw4w9WgXcQ"},
		CreatedAt:   created,
		UpdatedAt:   created,
	}
	title, level := "New Title!", "beginner"
	tags := []string{"go"}
	now := created.Add(time.Hour)

	p := Patch{Title: &title, DifficultyLevel: &level, Tags: &tags}
	assert.False(t, p.Empty())
	d.Apply(p, now)

	assert.Equal(t, "New Title!", d.Title)
	assert.Equal(t, "new-title", d.Slug)
	assert.Equal(t, DifficultyBeginner, d.DifficultyLevel)
	assert.Equal(t, []string{"go"}, d.Tags)
	assert.Equal(t, "dQw4w9WgXcQ", d.SourceVideo.ID)
	assert.Equal(t, created, d.CreatedAt)
	assert.Equal(t, now, d.UpdatedAt)
	assert.True(t, Patch{}.Empty())
}

func TestMarkdown(t *testing.T) {
	d := &Document{
		Title:   "Go Concurrency",
		Author:  "Gopher Channel",
		Summary: "All about goroutines.",
		Chapters: []Chapter{
			{Title: "Goroutines", Content: "Lightweight threads.", KeyPoints: []string{"cheap"}, Quotes: []string{"Don't communicate by sharing memory"}},
		},
		Glossary:       map[string]string{"channel": "typed conduit", "Mutex": "lock"},
		FurtherReading: []ReadingItem{{Title: "The Go Programming Language", Author: "Donovan", Description: "classic"}},
		SourceVideo:    SourceVideo{URL: "https://www.youtube.com/watch?v=dQw4w9WgXcQ"},
	}
	md := Markdown(d)

	assert.True(t, strings.HasPrefix(md, "# Go Concurrency\n"))
	assert.Contains(t, md, "*by Gopher Channel*")
	assert.Contains(t, md, "## 1. Goroutines")
	assert.Contains(t, md, "- cheap")
	assert.Contains(t, md, "> Don't communicate by sharing memory")
	assert.Contains(t, md, "- *The Go Programming Language* by Donovan: classic")
	assert.Less(t, strings.Index(md, "**Mutex**"), strings.Index(md, "**channel**"), "glossary sorted by term")
}
