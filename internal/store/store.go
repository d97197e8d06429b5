// Package store persists book documents and processing error records.
package store

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/anatolykoptev/go_book/internal/book"
	"github.com/anatolykoptev/go_book/internal/engine"
)

var (
	// ErrNotFound is returned when no document matches.
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicate is returned when a document for the same source video already exists.
	ErrDuplicate = errors.New("store: duplicate source video")
)

// Store is the document store the pipeline writes to. Implementations
// enforce uniqueness of SourceVideo.ID.
type Store interface {
	// Insert assigns doc.ID and stores doc.
	Insert(ctx context.Context, doc *book.Document) (string, error)
	FindByID(ctx context.Context, id string) (*book.Document, error)
	FindBySourceVideoID(ctx context.Context, videoID string) (*book.Document, error)
	// Search ranks by text relevance when q.Text is set, newest first otherwise.
	Search(ctx context.Context, q book.Query) ([]book.Summary, error)
	Update(ctx context.Context, id string, p book.Patch, now time.Time) (*book.Document, error)
	Delete(ctx context.Context, id string) error
	InsertError(ctx context.Context, rec *book.ErrorRecord) (string, error)
	// ListErrors returns newest records first, optionally only for videoURL.
	ListErrors(ctx context.Context, videoURL string, limit int) ([]book.ErrorRecord, error)
	Close() error
}

// Open connects the store selected by cfg.StoreDriver.
func Open(ctx context.Context, cfg engine.Config, log *slog.Logger) (Store, error) {
	log = engine.OrDefault(log)
	switch cfg.StoreDriver {
	case engine.StoreMemory:
		return NewMemory(), nil
	case engine.StoreSQLite:
		return OpenSQLite(ctx, cfg.SQLitePath)
	case engine.StorePostgres:
		return engine.Backoff(ctx, 4, 30*time.Second, func() (Store, error) {
			s, err := OpenPostgres(ctx, cfg.DatabaseURL, log)
			if err != nil {
				log.Warn("postgres connect failed, retrying", slog.Any("error", err))
				return nil, err
			}
			return s, nil
		})
	case engine.StoreMongo:
		return engine.Backoff(ctx, 4, 30*time.Second, func() (Store, error) {
			s, err := OpenMongo(ctx, cfg.MongoURI, cfg.MongoDatabase, log)
			if err != nil {
				log.Warn("mongo connect failed, retrying", slog.Any("error", err))
				return nil, err
			}
			return s, nil
		})
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// newID returns a lexically time-ordered identifier.
func newID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Now(), entropy).String()
}

// searchTerms splits free text into lower-case terms with quotes removed.
func searchTerms(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, `"'`)
		f = strings.ReplaceAll(f, `"`, "")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// searchBody is the low-weight text indexed besides title and summary.
func searchBody(d *book.Document) string {
	var sb strings.Builder
	for _, s := range d.KeyThemes {
		sb.WriteString(s)
		sb.WriteByte(' ')
	}
	for _, s := range d.Tags {
		sb.WriteString(s)
		sb.WriteByte(' ')
	}
	for _, ch := range d.Chapters {
		sb.WriteString(ch.Title)
		sb.WriteByte(' ')
		sb.WriteString(ch.Content)
		sb.WriteByte(' ')
	}
	return sb.String()
}

func errorLimit(limit int) int {
	if limit <= 0 || limit > book.MaxLimit {
		return book.MaxLimit
	}
	return limit
}
