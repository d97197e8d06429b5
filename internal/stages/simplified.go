package stages

import (
	"context"

	"github.com/anatolykoptev/go_book/internal/book"
)

// Simplified output shape, measured in runes of transcript.
const (
	simpleSummaryLen    = 500
	simpleChapterLen    = 1000
	simpleMidCap        = 3000
	simpleConclusionMin = 4000
)

// SimplifiedBackend derives every stage from transcript offsets with no
// external calls. It never fails.
type SimplifiedBackend struct{}

// NewSimplifiedBackend returns the deterministic fallback backend.
func NewSimplifiedBackend() *SimplifiedBackend { return &SimplifiedBackend{} }

func (SimplifiedBackend) Name() string { return "simplified" }

func (SimplifiedBackend) Outline(_ context.Context, in Input) (book.Outline, error) {
	chapters := simpleChapters(in.Transcript)
	titles := make([]string, len(chapters))
	for i, c := range chapters {
		titles[i] = c.Title
	}
	return book.Outline{
		Summary:         clip(in.Transcript, 0, simpleSummaryLen),
		ChapterOutline:  titles,
		KeyThemes:       []string{},
		DifficultyLevel: book.DifficultyIntermediate,
	}, nil
}

// Chapters splits the whole transcript once, on the first chunk; later
// chunks contribute nothing.
func (SimplifiedBackend) Chapters(_ context.Context, in Input, ch ChunkInput) ([]book.Fragment, error) {
	if ch.Chunk.Index != 0 {
		return nil, nil
	}
	return simpleChapters(in.Transcript), nil
}

func (SimplifiedBackend) Glossary(context.Context, Input, book.Outline) (map[string]string, error) {
	return map[string]string{
		"Topic 1": "Definition for Topic 1",
		"Topic 2": "Definition for Topic 2",
	}, nil
}

func (SimplifiedBackend) FurtherReading(context.Context, Input, book.Outline) ([]book.ReadingItem, error) {
	return []book.ReadingItem{}, nil
}

func (SimplifiedBackend) Takeaways(context.Context, Input, book.Outline) ([]string, error) {
	return []string{"Key point from the video", "Another important concept covered"}, nil
}

func (SimplifiedBackend) Classify(_ context.Context, in Input, _ book.Outline) (book.Classification, error) {
	return book.Classification{
		PrimaryCategory:      "Education",
		Categories:           []string{"Education", "Technology"},
		Tags:                 []string{"learning", "tutorial"},
		EstimatedReadingTime: len([]rune(in.Transcript)) / 1000,
	}, nil
}

func simpleChapters(transcript string) []book.Fragment {
	n := len([]rune(transcript))
	out := []book.Fragment{{
		Title:     "Introduction",
		Content:   clip(transcript, 0, simpleChapterLen),
		KeyPoints: []string{"Introduction to the content"},
	}}
	if n > simpleChapterLen {
		mid := min(n/2, simpleMidCap)
		out = append(out, book.Fragment{
			Title:     "Main Content",
			Content:   clip(transcript, mid, simpleChapterLen),
			KeyPoints: []string{"Main discussion points"},
		})
	}
	if n > simpleConclusionMin {
		out = append(out, book.Fragment{
			Title:     "Conclusion",
			Content:   book.Tail(transcript, simpleChapterLen),
			KeyPoints: []string{"Summary and conclusions"},
		})
	}
	return out
}

// clip returns size runes of s starting at from, with "..." when more follows.
func clip(s string, from, size int) string {
	r := []rune(s)
	if from >= len(r) {
		return ""
	}
	end := min(from+size, len(r))
	out := string(r[from:end])
	if end < len(r) {
		out += "..."
	}
	return out
}
