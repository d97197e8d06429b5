package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/anatolykoptev/go_book/internal/book"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS books (
	id               TEXT PRIMARY KEY,
	source_video_id  TEXT NOT NULL UNIQUE,
	title            TEXT NOT NULL,
	difficulty_level TEXT NOT NULL DEFAULT '',
	created_at       INTEGER NOT NULL,
	updated_at       INTEGER NOT NULL,
	doc              TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS books_created_at ON books(created_at DESC);
CREATE VIRTUAL TABLE IF NOT EXISTS books_fts USING fts5(id UNINDEXED, title, summary, body);
CREATE TABLE IF NOT EXISTS processing_errors (
	id         TEXT PRIMARY KEY,
	video_url  TEXT NOT NULL,
	video_id   TEXT NOT NULL DEFAULT '',
	stage      TEXT NOT NULL DEFAULT '',
	error      TEXT NOT NULL,
	status     TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS processing_errors_created_at ON processing_errors(created_at DESC);
`

// SQLite stores documents as JSON rows with an FTS5 index for search.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and its schema.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: init schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *SQLite) Insert(ctx context.Context, doc *book.Document) (string, error) {
	doc.ID = newID()
	data, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO books (id, source_video_id, title, difficulty_level, created_at, updated_at, doc)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.SourceVideo.ID, doc.Title, doc.DifficultyLevel,
		doc.CreatedAt.UnixNano(), doc.UpdatedAt.UnixNano(), string(data))
	if err != nil {
		doc.ID = ""
		if isUniqueViolation(err) {
			return "", ErrDuplicate
		}
		return "", fmt.Errorf("sqlite: insert book: %w", err)
	}
	if err := indexFTS(ctx, tx, doc); err != nil {
		doc.ID = ""
		return "", err
	}
	if err := tx.Commit(); err != nil {
		doc.ID = ""
		return "", err
	}
	return doc.ID, nil
}

func indexFTS(ctx context.Context, tx *sql.Tx, doc *book.Document) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM books_fts WHERE id = ?`, doc.ID); err != nil {
		return fmt.Errorf("sqlite: clear fts: %w", err)
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO books_fts (id, title, summary, body) VALUES (?, ?, ?, ?)`,
		doc.ID, doc.Title, doc.Summary, searchBody(doc))
	if err != nil {
		return fmt.Errorf("sqlite: index fts: %w", err)
	}
	return nil
}

func (s *SQLite) findOne(ctx context.Context, q querier, where string, arg any) (*book.Document, error) {
	var data string
	err := q.QueryRowContext(ctx, `SELECT doc FROM books WHERE `+where+` = ?`, arg).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var d book.Document
	if err := json.Unmarshal([]byte(data), &d); err != nil {
		return nil, fmt.Errorf("sqlite: decode book: %w", err)
	}
	return &d, nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLite) FindByID(ctx context.Context, id string) (*book.Document, error) {
	return s.findOne(ctx, s.db, "id", id)
}

func (s *SQLite) FindBySourceVideoID(ctx context.Context, videoID string) (*book.Document, error) {
	return s.findOne(ctx, s.db, "source_video_id", videoID)
}

// ftsQuery ORs quoted terms so user input cannot inject FTS5 syntax.
func ftsQuery(terms []string) string {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + t + `"`
	}
	return strings.Join(quoted, " OR ")
}

func (s *SQLite) Search(ctx context.Context, q book.Query) ([]book.Summary, error) {
	q = q.Normalize()
	terms := searchTerms(q.Text)

	var (
		rows *sql.Rows
		err  error
	)
	if len(terms) > 0 {
		rows, err = s.db.QueryContext(ctx,
			`SELECT b.doc, -bm25(books_fts, 0.0, 3.0, 2.0, 1.0) AS score
			 FROM books_fts JOIN books b ON b.id = books_fts.id
			 WHERE books_fts MATCH ? AND (? = '' OR b.difficulty_level = ?)
			 ORDER BY score DESC, b.created_at DESC, b.id DESC
			 LIMIT ? OFFSET ?`,
			ftsQuery(terms), q.Difficulty, q.Difficulty, q.Limit, q.Skip)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT doc, 0.0 FROM books
			 WHERE (? = '' OR difficulty_level = ?)
			 ORDER BY created_at DESC, id DESC
			 LIMIT ? OFFSET ?`,
			q.Difficulty, q.Difficulty, q.Limit, q.Skip)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: search: %w", err)
	}
	defer rows.Close()

	out := []book.Summary{}
	for rows.Next() {
		var (
			data  string
			score float64
		)
		if err := rows.Scan(&data, &score); err != nil {
			return nil, err
		}
		var d book.Document
		if err := json.Unmarshal([]byte(data), &d); err != nil {
			continue
		}
		sum := d.Summarize()
		sum.Score = score
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *SQLite) Update(ctx context.Context, id string, p book.Patch, now time.Time) (*book.Document, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck

	d, err := s.findOne(ctx, tx, "id", id)
	if err != nil {
		return nil, err
	}
	d.Apply(p, now)
	data, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE books SET title = ?, difficulty_level = ?, updated_at = ?, doc = ? WHERE id = ?`,
		d.Title, d.DifficultyLevel, d.UpdatedAt.UnixNano(), string(data), id)
	if err != nil {
		return nil, fmt.Errorf("sqlite: update book: %w", err)
	}
	if err := indexFTS(ctx, tx, d); err != nil {
		return nil, err
	}
	return d, tx.Commit()
}

func (s *SQLite) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: delete book: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM books_fts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: delete fts: %w", err)
	}
	return tx.Commit()
}

func (s *SQLite) InsertError(ctx context.Context, rec *book.ErrorRecord) (string, error) {
	rec.ID = newID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO processing_errors (id, video_url, video_id, stage, error, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.VideoURL, rec.VideoID, rec.Stage, rec.Error, string(rec.Status), rec.CreatedAt.UnixNano())
	if err != nil {
		return "", fmt.Errorf("sqlite: insert error record: %w", err)
	}
	return rec.ID, nil
}

func (s *SQLite) ListErrors(ctx context.Context, videoURL string, limit int) ([]book.ErrorRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, video_url, video_id, stage, error, status, created_at
		 FROM processing_errors
		 WHERE (? = '' OR video_url = ?)
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		videoURL, videoURL, errorLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("sqlite: list errors: %w", err)
	}
	defer rows.Close()

	out := []book.ErrorRecord{}
	for rows.Next() {
		var (
			r      book.ErrorRecord
			status string
			nanos  int64
		)
		if err := rows.Scan(&r.ID, &r.VideoURL, &r.VideoID, &r.Stage, &r.Error, &status, &nanos); err != nil {
			return nil, err
		}
		r.Status = book.Status(status)
		r.CreatedAt = time.Unix(0, nanos).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}
