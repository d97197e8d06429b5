package store

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/anatolykoptev/go_book/internal/book"
)

// Memory is an in-process Store for tests and single-shot CLI runs.
type Memory struct {
	mu      sync.RWMutex
	docs    map[string]*book.Document
	byVideo map[string]string
	errs    []book.ErrorRecord
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		docs:    make(map[string]*book.Document),
		byVideo: make(map[string]string),
	}
}

func (m *Memory) Insert(_ context.Context, doc *book.Document) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byVideo[doc.SourceVideo.ID]; ok {
		return "", ErrDuplicate
	}
	doc.ID = newID()
	m.docs[doc.ID] = clone(doc)
	m.byVideo[doc.SourceVideo.ID] = doc.ID
	return doc.ID, nil
}

func (m *Memory) FindByID(_ context.Context, id string) (*book.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(d), nil
}

func (m *Memory) FindBySourceVideoID(ctx context.Context, videoID string) (*book.Document, error) {
	m.mu.RLock()
	id, ok := m.byVideo[videoID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return m.FindByID(ctx, id)
}

func (m *Memory) Search(_ context.Context, q book.Query) ([]book.Summary, error) {
	q = q.Normalize()
	terms := searchTerms(q.Text)

	m.mu.RLock()
	hits := make([]book.Summary, 0, len(m.docs))
	for _, d := range m.docs {
		if q.Difficulty != "" && d.DifficultyLevel != q.Difficulty {
			continue
		}
		s := d.Summarize()
		if len(terms) > 0 {
			s.Score = relevance(d, terms)
			if s.Score == 0 {
				continue
			}
		}
		hits = append(hits, s)
	}
	m.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if !hits[i].CreatedAt.Equal(hits[j].CreatedAt) {
			return hits[i].CreatedAt.After(hits[j].CreatedAt)
		}
		return hits[i].ID > hits[j].ID
	})
	return page(hits, q.Skip, q.Limit), nil
}

// relevance weights term occurrences: title 3, summary 2, everything else 1.
func relevance(d *book.Document, terms []string) float64 {
	title := strings.ToLower(d.Title)
	summary := strings.ToLower(d.Summary)
	body := strings.ToLower(searchBody(d))
	var score float64
	for _, t := range terms {
		score += 3*float64(strings.Count(title, t)) +
			2*float64(strings.Count(summary, t)) +
			float64(strings.Count(body, t))
	}
	return score
}

func (m *Memory) Update(_ context.Context, id string, p book.Patch, now time.Time) (*book.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	d.Apply(p, now)
	return clone(d), nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return ErrNotFound
	}
	delete(m.byVideo, d.SourceVideo.ID)
	delete(m.docs, id)
	return nil
}

func (m *Memory) InsertError(_ context.Context, rec *book.ErrorRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.ID = newID()
	m.errs = append(m.errs, *rec)
	return rec.ID, nil
}

func (m *Memory) ListErrors(_ context.Context, videoURL string, limit int) ([]book.ErrorRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	limit = errorLimit(limit)
	out := make([]book.ErrorRecord, 0, min(limit, len(m.errs)))
	for i := len(m.errs) - 1; i >= 0 && len(out) < limit; i-- {
		if videoURL == "" || m.errs[i].VideoURL == videoURL {
			out = append(out, m.errs[i])
		}
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }

func page[T any](items []T, skip, limit int) []T {
	if skip >= len(items) {
		return []T{}
	}
	end := min(skip+limit, len(items))
	return items[skip:end]
}

// clone deep-copies d so callers never share slices with the store.
func clone(d *book.Document) *book.Document {
	data, err := json.Marshal(d)
	if err != nil {
		cp := *d
		return &cp
	}
	var out book.Document
	if err := json.Unmarshal(data, &out); err != nil {
		cp := *d
		return &cp
	}
	return &out
}
