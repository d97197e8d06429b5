package book

// Merger folds chapter fragments into chapters keyed by exact title.
// Chapters keep first-seen order. A Merger is not safe for concurrent use;
// feed it fragments in chunk order.
type Merger struct {
	chapters []Chapter
	index    map[string]int
}

// NewMerger returns an empty Merger.
func NewMerger() *Merger {
	return &Merger{index: make(map[string]int)}
}

// Add merges one chunk's fragments, in the order given.
func (m *Merger) Add(fragments ...Fragment) {
	for _, f := range fragments {
		if i, ok := m.index[f.Title]; ok {
			ch := &m.chapters[i]
			ch.Content += "\n\n" + f.Content
			ch.KeyPoints = append(ch.KeyPoints, f.KeyPoints...)
			ch.Examples = append(ch.Examples, f.Examples...)
			ch.Quotes = append(ch.Quotes, f.Quotes...)
			continue
		}
		m.index[f.Title] = len(m.chapters)
		m.chapters = append(m.chapters, Chapter{
			Title:     f.Title,
			Content:   f.Content,
			KeyPoints: append([]string{}, f.KeyPoints...),
			Examples:  append([]string{}, f.Examples...),
			Quotes:    append([]string{}, f.Quotes...),
		})
	}
}

// Len returns the number of distinct chapters seen.
func (m *Merger) Len() int { return len(m.chapters) }

// Chapters returns the merged chapters.
func (m *Merger) Chapters() []Chapter {
	out := make([]Chapter, len(m.chapters))
	copy(out, m.chapters)
	return out
}

// MergeChapters merges per-chunk fragment lists in order.
func MergeChapters(perChunk [][]Fragment) []Chapter {
	m := NewMerger()
	for _, frags := range perChunk {
		m.Add(frags...)
	}
	return m.Chapters()
}
