package store

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anatolykoptev/go_book/internal/book"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// searchVectorSQL weights title A, summary B and the rest C.
const searchVectorSQL = `setweight(to_tsvector('english', $1), 'A') ||
	setweight(to_tsvector('english', $2), 'B') ||
	setweight(to_tsvector('english', $3), 'C')`

// Postgres stores documents as JSONB with a weighted tsvector for search.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres creates a pgx pool and runs schema migrations.
func OpenPostgres(ctx context.Context, databaseURL string, log *slog.Logger) (*Postgres, error) {
	if databaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	config.MaxConns = 10
	config.MinConns = 1
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, "SET search_path TO public")
		return err
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &Postgres{pool: pool}
	if err := s.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if log != nil {
		log.Info("postgres store connected", slog.String("host", config.ConnConfig.Host))
	}
	return s, nil
}

func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}

func (s *Postgres) runMigrations(ctx context.Context) error {
	entries, err := schemaFS.ReadDir("schema")
	if err != nil {
		return fmt.Errorf("read schema dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire migration connection: %w", err)
	}
	defer conn.Release()

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		data, err := schemaFS.ReadFile("schema/" + entry.Name())
		if err != nil {
			return fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		if _, err := conn.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("execute %s: %w", entry.Name(), err)
		}
	}
	return nil
}

func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *Postgres) Insert(ctx context.Context, doc *book.Document) (string, error) {
	doc.ID = newID()
	data, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO books (id, source_video_id, title, difficulty_level, doc, search_vector, created_at, updated_at)
		 VALUES ($4, $5, $1, $6, $7, `+searchVectorSQL+`, $8, $9)`,
		doc.Title, doc.Summary, searchBody(doc),
		doc.ID, doc.SourceVideo.ID, doc.DifficultyLevel, data, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		doc.ID = ""
		if isPgUniqueViolation(err) {
			return "", ErrDuplicate
		}
		return "", fmt.Errorf("postgres: insert book: %w", err)
	}
	return doc.ID, nil
}

func (s *Postgres) findOne(ctx context.Context, column, value string) (*book.Document, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT doc FROM books WHERE `+column+` = $1`, value).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: find book: %w", err)
	}
	var d book.Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("postgres: decode book: %w", err)
	}
	return &d, nil
}

func (s *Postgres) FindByID(ctx context.Context, id string) (*book.Document, error) {
	return s.findOne(ctx, "id", id)
}

func (s *Postgres) FindBySourceVideoID(ctx context.Context, videoID string) (*book.Document, error) {
	return s.findOne(ctx, "source_video_id", videoID)
}

func (s *Postgres) Search(ctx context.Context, q book.Query) ([]book.Summary, error) {
	q = q.Normalize()
	terms := searchTerms(q.Text)

	var (
		rows pgx.Rows
		err  error
	)
	if len(terms) > 0 {
		rows, err = s.pool.Query(ctx,
			`SELECT doc, ts_rank(search_vector, query) AS score
			 FROM books, websearch_to_tsquery('english', $1) AS query
			 WHERE search_vector @@ query AND ($2 = '' OR difficulty_level = $2)
			 ORDER BY score DESC, created_at DESC, id DESC
			 LIMIT $3 OFFSET $4`,
			strings.Join(terms, " or "), q.Difficulty, q.Limit, q.Skip)
	} else {
		rows, err = s.pool.Query(ctx,
			`SELECT doc, 0::real FROM books
			 WHERE ($1 = '' OR difficulty_level = $1)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $2 OFFSET $3`,
			q.Difficulty, q.Limit, q.Skip)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: search: %w", err)
	}
	defer rows.Close()

	out := []book.Summary{}
	for rows.Next() {
		var (
			data  []byte
			score float32
		)
		if err := rows.Scan(&data, &score); err != nil {
			return nil, err
		}
		var d book.Document
		if err := json.Unmarshal(data, &d); err != nil {
			continue
		}
		sum := d.Summarize()
		sum.Score = float64(score)
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *Postgres) Update(ctx context.Context, id string, p book.Patch, now time.Time) (*book.Document, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var data []byte
	err = tx.QueryRow(ctx, `SELECT doc FROM books WHERE id = $1 FOR UPDATE`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var d book.Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("postgres: decode book: %w", err)
	}
	d.Apply(p, now)
	if data, err = json.Marshal(&d); err != nil {
		return nil, err
	}
	_, err = tx.Exec(ctx,
		`UPDATE books SET title = $1, search_vector = `+searchVectorSQL+`,
		 difficulty_level = $4, doc = $5, updated_at = $6 WHERE id = $7`,
		d.Title, d.Summary, searchBody(&d), d.DifficultyLevel, data, d.UpdatedAt, id)
	if err != nil {
		return nil, fmt.Errorf("postgres: update book: %w", err)
	}
	return &d, tx.Commit(ctx)
}

func (s *Postgres) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete book: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) InsertError(ctx context.Context, rec *book.ErrorRecord) (string, error) {
	rec.ID = newID()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO processing_errors (id, video_url, video_id, stage, error, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.VideoURL, rec.VideoID, rec.Stage, rec.Error, string(rec.Status), rec.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("postgres: insert error record: %w", err)
	}
	return rec.ID, nil
}

func (s *Postgres) ListErrors(ctx context.Context, videoURL string, limit int) ([]book.ErrorRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, video_url, video_id, stage, error, status, created_at
		 FROM processing_errors
		 WHERE ($1 = '' OR video_url = $1)
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		videoURL, errorLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("postgres: list errors: %w", err)
	}
	defer rows.Close()

	out := []book.ErrorRecord{}
	for rows.Next() {
		var (
			r      book.ErrorRecord
			status string
		)
		if err := rows.Scan(&r.ID, &r.VideoURL, &r.VideoID, &r.Stage, &r.Error, &status, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Status = book.Status(status)
		out = append(out, r)
	}
	return out, rows.Err()
}
