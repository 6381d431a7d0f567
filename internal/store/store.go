// Package store owns the embedded SQLite database holding the cleaned
// accident and victim rows. The handle is opened once at startup and
// passed to the load stage and the query layer; nothing reaches the
// database through package-level state.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if absent) the single-file store. WAL keeps
// concurrent dashboard reads from blocking each other during a refresh.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}

	return &Store{db: db, path: path}, nil
}

// DB exposes the underlying handle for the query layer.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Path() string { return s.path }

func (s *Store) Close() error { return s.db.Close() }

// HasData reports whether a previous load left both tables in place.
func (s *Store) HasData() bool {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM sqlite_master
		WHERE type = 'table' AND name IN ('accidents', 'victims')`).Scan(&n)
	return err == nil && n == 2
}
