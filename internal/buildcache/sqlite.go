package buildcache

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS entries (
	key       TEXT PRIMARY KEY,
	staleness INTEGER NOT NULL,
	value     TEXT NOT NULL
)`

// SQLiteStore persists entries in a SQLite database. Writes land immediately,
// so an interrupted build keeps everything it computed before failing.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite cache: %w", err)
	}
	// A single connection serializes writers and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Get returns the entry for key. Read errors are reported as misses.
func (s *SQLiteStore) Get(key string) (Entry, bool) {
	var e Entry
	err := s.db.QueryRow(`SELECT staleness, value FROM entries WHERE key = ?`, key).
		Scan(&e.Staleness, &e.Value)
	if err != nil {
		return Entry{}, false
	}
	return e, true
}

// Put upserts the entry for key.
func (s *SQLiteStore) Put(key string, e Entry) error {
	_, err := s.db.Exec(`
		INSERT INTO entries (key, staleness, value) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET staleness = excluded.staleness, value = excluded.value`,
		key, e.Staleness, e.Value)
	if err != nil {
		if errors.Is(err, sql.ErrConnDone) {
			return ErrClosed
		}
		return fmt.Errorf("writing sqlite cache entry: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
