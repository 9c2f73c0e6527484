// Package store provides the embedded relational persistence layer:
// memory chunks (with an FTS5 mirror for keyword search), learner
// execution records, and durable scheduler jobs, all in one SQLite
// database opened in WAL mode via modernc.org/sqlite (pure Go, no cgo).
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store wraps the shared *sql.DB and exposes narrow, table-scoped
// repositories rather than a generic query interface.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path, applies
// pending migrations, and returns a ready Store. The parent directory is
// created if missing. An empty path is rejected with an error.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("store: empty database path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: creating database directory: %w", err)
		}
	}

	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: opening database: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite: single writer, WAL handles concurrent readers

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: pinging database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrating database: %w", err)
	}
	return s, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle. No code outside this package calls
// it; callers there use the typed repository methods.
func (s *Store) DB() *sql.DB { return s.db }
