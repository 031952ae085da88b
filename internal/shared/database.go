package shared

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-sqlite3"
)

// NewDatabase opens a connection to a SQLite database at the specified path.
//
// The path can be ":memory:" for an in-memory database; the pool is then pinned to a single
// connection because every new connection would see its own empty database.
func NewDatabase(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// ConfigureDatabase sets connection pool settings for the database.
//
// Non-positive values are ignored.
func ConfigureDatabase(db *sql.DB, maxOpenConns, maxIdleConns int) {
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}
	if maxIdleConns > 0 {
		db.SetMaxIdleConns(maxIdleConns)
	}
}

// OpenCache opens the cache database described by cfg and brings its schema up to date.
//
// The pool defaults to a single connection so concurrent resolver writes queue instead of failing with SQLITE_BUSY.
func OpenCache(cfg CacheConfig) (*sql.DB, error) {
	path, err := cfg.ResolvePath()
	if err != nil {
		return nil, err
	}

	db, err := NewDatabase(path)
	if err != nil {
		return nil, err
	}
	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 1
	}
	ConfigureDatabase(db, maxOpen, cfg.MaxIdleConns)

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

// IsCorruptDatabase reports whether err is SQLite rejecting a file as not a database or as malformed.
func IsCorruptDatabase(err error) bool {
	var serr sqlite3.Error
	if !errors.As(err, &serr) {
		return false
	}
	return serr.Code == sqlite3.ErrNotADB || serr.Code == sqlite3.ErrCorrupt
}

// EnsureCache opens the cache like [OpenCache], replacing a corrupt file with an empty cache.
//
// The corrupt file is renamed with a ".corrupt-<timestamp>" suffix; moved is that new name, or empty when
// nothing was moved. Any other failure is returned as is.
func EnsureCache(cfg CacheConfig) (db *sql.DB, moved string, err error) {
	db, err = OpenCache(cfg)
	if err == nil || !IsCorruptDatabase(err) {
		return db, "", err
	}

	path, perr := cfg.ResolvePath()
	if perr != nil {
		return nil, "", perr
	}
	moved = fmt.Sprintf("%s.corrupt-%s", path, time.Now().UTC().Format("20060102T150405"))
	if rerr := os.Rename(path, moved); rerr != nil {
		return nil, "", fmt.Errorf("failed to move corrupt cache aside: %w (open: %w)", rerr, err)
	}
	for _, suffix := range []string{"-wal", "-shm", "-journal"} {
		os.Remove(path + suffix)
	}

	db, err = OpenCache(cfg)
	if err != nil {
		return nil, moved, fmt.Errorf("failed to recreate cache: %w", err)
	}
	return db, moved, nil
}
