// Package sqlite implements storage.KV on a local SQLite file through the
// pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/MrWong99/chronicles/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS blobs (
	key        TEXT PRIMARY KEY,
	version    INTEGER NOT NULL,
	data       BLOB NOT NULL,
	updated_at INTEGER NOT NULL
);`

// Store provides SQLite-backed persistence for game blobs.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

// Open opens (creating if needed) a SQLite store at path. Use ":memory:" for
// a throwaway database.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite: storage path is required")
	}

	dsn := path
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open db: %w", err)
	}
	if path == ":memory:" {
		// Every new connection to :memory: is a fresh database.
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlite: ping db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Get implements storage.KV.
func (s *Store) Get(ctx context.Context, key string) (storage.Blob, error) {
	var (
		b         storage.Blob
		updatedAt int64
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT version, data, updated_at FROM blobs WHERE key = ?`, key,
	).Scan(&b.Version, &b.Data, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Blob{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Blob{}, fmt.Errorf("sqlite: get %q: %w", key, err)
	}
	b.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return b, nil
}

// Put implements storage.KV.
func (s *Store) Put(ctx context.Context, key string, b storage.Blob) error {
	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO blobs (key, version, data, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			version = excluded.version,
			data = excluded.data,
			updated_at = excluded.updated_at`,
		key, b.Version, b.Data, s.now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: put %q: %w", key, err)
	}
	return nil
}

// Delete implements storage.KV.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin delete: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	for _, k := range keys {
		if _, err := tx.ExecContext(ctx, `DELETE FROM blobs WHERE key = ?`, k); err != nil {
			return fmt.Errorf("sqlite: delete %q: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit delete: %w", err)
	}
	return nil
}

// Ping verifies the database is reachable. Used by health checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

var _ storage.KV = (*Store)(nil)
