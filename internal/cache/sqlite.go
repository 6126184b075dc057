package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-sqlite3"
)

// Rollback journal keeps every write inside the main file, where
// max_page_count applies.
const sqliteParams = "?_journal_mode=DELETE&_busy_timeout=5000"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key   TEXT PRIMARY KEY,
	value BLOB NOT NULL
)`

// SQLiteBackend persists entries in a single-table SQLite file.
type SQLiteBackend struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens or creates the cache database at path. A positive
// quotaBytes caps the file size; writes beyond it fail with ErrQuotaExceeded.
func OpenSQLite(path string, quotaBytes int64) (*SQLiteBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+sqliteParams)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}
	// PRAGMAs are per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init cache schema: %w", err)
	}

	if quotaBytes > 0 {
		var pageSize int64
		if err := db.QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
			db.Close()
			return nil, fmt.Errorf("read page size: %w", err)
		}
		pages := quotaBytes / pageSize
		if pages < 2 {
			pages = 2
		}
		if _, err := db.Exec(fmt.Sprintf("PRAGMA max_page_count = %d", pages)); err != nil {
			db.Close()
			return nil, fmt.Errorf("set cache quota: %w", err)
		}
	}

	return &SQLiteBackend{db: db, path: path}, nil
}

// Close closes the database.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

// Path returns the database file path.
func (b *SQLiteBackend) Path() string {
	return b.path
}

func (b *SQLiteBackend) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := b.db.QueryRow("SELECT value FROM cache_entries WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

func (b *SQLiteBackend) Put(key string, value []byte) error {
	_, err := b.db.Exec(`
		INSERT INTO cache_entries (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if isFull(err) {
		return fmt.Errorf("put %s: %w", key, ErrQuotaExceeded)
	}
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (b *SQLiteBackend) Delete(key string) error {
	if _, err := b.db.Exec("DELETE FROM cache_entries WHERE key = ?", key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (b *SQLiteBackend) Clear() error {
	if _, err := b.db.Exec("DELETE FROM cache_entries"); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	return nil
}

// isFull reports whether err is SQLITE_FULL from the driver.
func isFull(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrFull
	}
	var sqliteErrPtr *sqlite3.Error
	if errors.As(err, &sqliteErrPtr) && sqliteErrPtr != nil {
		return sqliteErrPtr.Code == sqlite3.ErrFull
	}
	return false
}
