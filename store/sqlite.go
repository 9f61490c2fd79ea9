package store

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/YuminosukeSato/rdfgp/core/model"
	"github.com/YuminosukeSato/rdfgp/pkg/errors"
)

// SQLiteStore keeps artifacts as gob blobs in a single SQLite table.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS artifacts (
	key        TEXT PRIMARY KEY,
	payload    BLOB NOT NULL,
	updated_at TIMESTAMP NOT NULL
);`

// NewSQLiteStore opens (or creates) the database at path. ":memory:" gives
// a private in-memory store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.NewValidationError("store.path", "must not be empty", path)
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrap(err, "store: create directory")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "store: open database")
	}
	// A single connection keeps ":memory:" databases shared and
	// serialises writers.
	db.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, errors.Wrap(err, "store: enable WAL")
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "store: create schema")
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// Lookup implements Store.
func (s *SQLiteStore) Lookup(ctx context.Context, key string, v any) (bool, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM artifacts WHERE key = ?`, key).Scan(&payload)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, errors.Wrap(err, "store: query artifact")
	}
	if err := model.Decode(v, bytes.NewReader(payload)); err != nil {
		return false, err
	}
	return true, nil
}

// Save implements Store.
func (s *SQLiteStore) Save(ctx context.Context, key string, v any) error {
	var buf bytes.Buffer
	if err := model.Encode(v, &buf); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO artifacts (key, payload, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		key, buf.Bytes(), time.Now().UTC(),
	)
	if err != nil {
		return errors.Wrap(err, "store: save artifact")
	}
	return nil
}

// Keys lists stored artifact keys, most recently updated first.
func (s *SQLiteStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM artifacts ORDER BY updated_at DESC, key`)
	if err != nil {
		return nil, errors.Wrap(err, "store: list artifacts")
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, errors.Wrap(err, "store: scan key")
		}
		keys = append(keys, k)
	}
	return keys, errors.Wrap(rows.Err(), "store: list artifacts")
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
