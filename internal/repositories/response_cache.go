package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/geolist/internal/models"
)

// SQLiteCache implements [ResponseCache] on the response_cache table.
//
// Read failures, including a corrupt database file, are logged and reported as misses.
type SQLiteCache struct {
	db     *sql.DB
	logger *log.Logger
	now    func() time.Time
}

// NewSQLiteCache creates a SQLiteCache on a database whose migrations have been applied.
func NewSQLiteCache(db *sql.DB, logger *log.Logger) *SQLiteCache {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &SQLiteCache{db: db, logger: logger, now: time.Now}
}

// Get retrieves the entry stored under fingerprint.
func (c *SQLiteCache) Get(ctx context.Context, fingerprint string) (*models.CacheEntry, bool) {
	query := `
		SELECT fingerprint, kind, subject, payload, created_at
		FROM response_cache
		WHERE fingerprint = ?
	`

	var entry models.CacheEntry
	err := c.db.QueryRowContext(ctx, query, fingerprint).Scan(
		&entry.Fingerprint,
		&entry.Kind,
		&entry.Subject,
		&entry.Payload,
		&entry.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("cache read failed, treating as miss", "fingerprint", fingerprint, "error", err)
		return nil, false
	}

	return &entry, true
}

// Put upserts the payload under fingerprint.
func (c *SQLiteCache) Put(ctx context.Context, fingerprint, kind, subject string, payload []byte) error {
	query := `
		INSERT INTO response_cache (fingerprint, kind, subject, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			kind = excluded.kind,
			subject = excluded.subject,
			payload = excluded.payload,
			created_at = excluded.created_at
	`

	if _, err := c.db.ExecContext(ctx, query, fingerprint, kind, subject, payload, c.now().UTC()); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

// Delete removes the entry stored under fingerprint, if any.
func (c *SQLiteCache) Delete(ctx context.Context, fingerprint string) error {
	if _, err := c.db.ExecContext(ctx, "DELETE FROM response_cache WHERE fingerprint = ?", fingerprint); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// Clear removes every entry.
func (c *SQLiteCache) Clear(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, "DELETE FROM response_cache"); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}

// Stats counts entries per kind and reports the age range.
func (c *SQLiteCache) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{ByKind: make(map[string]int)}

	rows, err := c.db.QueryContext(ctx, "SELECT kind, COUNT(*) FROM response_cache GROUP BY kind")
	if err != nil {
		return stats, fmt.Errorf("failed to query cache stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			kind  string
			count int
		)
		if err := rows.Scan(&kind, &count); err != nil {
			return stats, fmt.Errorf("failed to scan cache stats: %w", err)
		}
		stats.ByKind[kind] = count
		stats.Entries += count
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("row iteration error: %w", err)
	}

	if stats.Entries == 0 {
		return stats, nil
	}

	var oldest, newest string
	err = c.db.QueryRowContext(ctx, "SELECT MIN(created_at), MAX(created_at) FROM response_cache").Scan(&oldest, &newest)
	if err != nil {
		return stats, fmt.Errorf("failed to query cache age: %w", err)
	}
	stats.Oldest = parseTimestamp(oldest)
	stats.Newest = parseTimestamp(newest)

	return stats, nil
}

// parseTimestamp reads the text form go-sqlite3 uses for time.Time values; aggregates lose the column type.
func parseTimestamp(s string) time.Time {
	for _, layout := range []string{
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02T15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02T15:04:05Z07:00",
		"2006-01-02 15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
