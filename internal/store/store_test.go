package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_book/internal/book"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newDoc(videoID, title, summary, difficulty string, created time.Time) *book.Document {
	return &book.Document{
		Title:           title,
		Slug:            book.Slugify(title),
		Author:          "Channel",
		Summary:         summary,
		DifficultyLevel: difficulty,
		Chapters:        []book.Chapter{{Title: "Intro", Content: "welcome"}},
		Glossary:        map[string]string{},
		SourceVideo:     book.SourceVideo{ID: videoID, URL: book.CanonicalURL(videoID)},
		Status:          book.StatusCompleted,
		CreatedAt:       created,
		UpdatedAt:       created,
	}
}

func ids(sums []book.Summary) []string {
	out := make([]string, len(sums))
	for i, s := range sums {
		out[i] = s.SourceVideoID
	}
	return out
}

// testStore runs the behaviour every Store implementation must share.
func testStore(t *testing.T, open func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("insert and find", func(t *testing.T) {
		s := open(t)
		d := newDoc("aaaaaaaaaaa", "Go Basics", "intro to go", book.DifficultyBeginner, t0)
		id, err := s.Insert(ctx, d)
		require.NoError(t, err)
		require.NotEmpty(t, id)
		assert.Equal(t, id, d.ID)

		got, err := s.FindByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "Go Basics", got.Title)
		assert.Equal(t, "welcome", got.Chapters[0].Content)
		assert.True(t, got.CreatedAt.Equal(t0))

		byVideo, err := s.FindBySourceVideoID(ctx, "aaaaaaaaaaa")
		require.NoError(t, err)
		assert.Equal(t, id, byVideo.ID)

		_, err = s.FindByID(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.FindBySourceVideoID(ctx, "bbbbbbbbbbb")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("duplicate source video", func(t *testing.T) {
		s := open(t)
		_, err := s.Insert(ctx, newDoc("ccccccccccc", "First", "", "", t0))
		require.NoError(t, err)

		dup := newDoc("ccccccccccc", "Second", "", "", t0)
		_, err = s.Insert(ctx, dup)
		assert.ErrorIs(t, err, ErrDuplicate)
		assert.Empty(t, dup.ID)

		got, err := s.FindBySourceVideoID(ctx, "ccccccccccc")
		require.NoError(t, err)
		assert.Equal(t, "First", got.Title)
	})

	t.Run("search newest first with paging", func(t *testing.T) {
		s := open(t)
		for i, v := range []string{"v1111111111", "v2222222222", "v3333333333"} {
			_, err := s.Insert(ctx, newDoc(v, "Talk "+v, "", book.DifficultyIntermediate, t0.Add(time.Duration(i)*time.Minute)))
			require.NoError(t, err)
		}
		all, err := s.Search(ctx, book.Query{})
		require.NoError(t, err)
		assert.Equal(t, []string{"v3333333333", "v2222222222", "v1111111111"}, ids(all))

		page, err := s.Search(ctx, book.Query{Skip: 1, Limit: 1})
		require.NoError(t, err)
		assert.Equal(t, []string{"v2222222222"}, ids(page))
	})

	t.Run("search ranks by relevance", func(t *testing.T) {
		s := open(t)
		strong := newDoc("k1111111111", "Kubernetes Deep Dive", "Everything about kubernetes operators", book.DifficultyAdvanced, t0)
		weak := newDoc("k2222222222", "Cloud Careers", "Working in the cloud", book.DifficultyBeginner, t0.Add(time.Hour))
		weak.Chapters = []book.Chapter{{Title: "Tools", Content: "We briefly mention kubernetes here."}}
		other := newDoc("k3333333333", "Baking Bread", "Sourdough at home", book.DifficultyBeginner, t0.Add(2*time.Hour))
		for _, d := range []*book.Document{strong, weak, other} {
			_, err := s.Insert(ctx, d)
			require.NoError(t, err)
		}

		hits, err := s.Search(ctx, book.Query{Text: "kubernetes"})
		require.NoError(t, err)
		assert.Equal(t, []string{"k1111111111", "k2222222222"}, ids(hits))
		assert.Greater(t, hits[0].Score, hits[1].Score)

		filtered, err := s.Search(ctx, book.Query{Text: "kubernetes", Difficulty: "beginner"})
		require.NoError(t, err)
		assert.Equal(t, []string{"k2222222222"}, ids(filtered))

		none, err := s.Search(ctx, book.Query{Text: "quantum"})
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("update and delete", func(t *testing.T) {
		s := open(t)
		id, err := s.Insert(ctx, newDoc("u1111111111", "Old Name", "", "", t0))
		require.NoError(t, err)

		title := "Rust Ownership"
		later := t0.Add(time.Hour)
		updated, err := s.Update(ctx, id, book.Patch{Title: &title}, later)
		require.NoError(t, err)
		assert.Equal(t, "rust-ownership", updated.Slug)
		assert.True(t, updated.UpdatedAt.Equal(later))
		assert.Equal(t, "u1111111111", updated.SourceVideo.ID)

		got, err := s.FindByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "Rust Ownership", got.Title)

		hits, err := s.Search(ctx, book.Query{Text: "ownership"})
		require.NoError(t, err)
		assert.Equal(t, []string{"u1111111111"}, ids(hits))

		_, err = s.Update(ctx, "missing", book.Patch{Title: &title}, later)
		assert.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, s.Delete(ctx, id))
		_, err = s.FindByID(ctx, id)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, id), ErrNotFound)

		_, err = s.Insert(ctx, newDoc("u1111111111", "Again", "", "", t0))
		assert.NoError(t, err, "source video id is free again after delete")
	})

	t.Run("error records", func(t *testing.T) {
		s := open(t)
		for i, u := range []string{"https://youtu.be/a", "https://youtu.be/b", "https://youtu.be/a"} {
			rec := &book.ErrorRecord{VideoURL: u, Error: fmt.Sprintf("boom %d", i), Status: book.StatusFailed, CreatedAt: t0.Add(time.Duration(i) * time.Second)}
			id, err := s.InsertError(ctx, rec)
			require.NoError(t, err)
			assert.Equal(t, id, rec.ID)
		}

		all, err := s.ListErrors(ctx, "", 0)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "boom 2", all[0].Error)
		assert.Equal(t, book.StatusFailed, all[0].Status)

		onlyA, err := s.ListErrors(ctx, "https://youtu.be/a", 1)
		require.NoError(t, err)
		require.Len(t, onlyA, 1)
		assert.Equal(t, "boom 2", onlyA[0].Error)
	})
}

func TestMemoryStore(t *testing.T) {
	testStore(t, func(t *testing.T) Store { return NewMemory() })
}

func TestSQLiteStore(t *testing.T) {
	testStore(t, func(t *testing.T) Store {
		s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "books.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	testStore(t, func(t *testing.T) Store {
		ctx := context.Background()
		s, err := OpenPostgres(ctx, url, nil)
		require.NoError(t, err)
		_, err = s.pool.Exec(ctx, "TRUNCATE books, processing_errors")
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}
	n := 0
	testStore(t, func(t *testing.T) Store {
		ctx := context.Background()
		n++
		dbName := fmt.Sprintf("go_book_test_%d_%d", time.Now().UnixNano(), n)
		s, err := OpenMongo(ctx, uri, dbName, nil)
		require.NoError(t, err)
		t.Cleanup(func() {
			_ = s.client.Database(dbName).Drop(ctx)
			_ = s.Close()
		})
		return s
	})
}

func TestSearchTerms(t *testing.T) {
	assert.Equal(t, []string{"go", "channels"}, searchTerms(`  Go "channels" `))
	assert.Empty(t, searchTerms(`""`))
	assert.Equal(t, `"a" OR "b"`, ftsQuery([]string{"a", "b"}))
}

func TestNewIDMonotonic(t *testing.T) {
	prev := newID()
	for i := 0; i < 100; i++ {
		next := newID()
		if next <= prev {
			t.Fatalf("ids not increasing: %s then %s", prev, next)
		}
		prev = next
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), testConfig("dynamo"), nil)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}
