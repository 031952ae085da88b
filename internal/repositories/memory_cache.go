package repositories

import (
	"context"
	"sync"
	"time"

	"github.com/desertthunder/geolist/internal/models"
)

// MemoryCache is an in-process [ResponseCache].
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]models.CacheEntry
	now     func() time.Time
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]models.CacheEntry), now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, fingerprint string) (*models.CacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[fingerprint]
	if !ok {
		return nil, false
	}
	entry.Payload = append([]byte(nil), entry.Payload...)
	return &entry, true
}

func (c *MemoryCache) Put(_ context.Context, fingerprint, kind, subject string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[fingerprint] = models.CacheEntry{
		Fingerprint: fingerprint,
		Kind:        kind,
		Subject:     subject,
		Payload:     append([]byte(nil), payload...),
		CreatedAt:   c.now().UTC(),
	}
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, fingerprint string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, fingerprint)
	return nil
}

func (c *MemoryCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	clear(c.entries)
	return nil
}

func (c *MemoryCache) Stats(_ context.Context) (Stats, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := Stats{ByKind: make(map[string]int)}
	for _, e := range c.entries {
		stats.Entries++
		stats.ByKind[e.Kind]++
		if stats.Oldest.IsZero() || e.CreatedAt.Before(stats.Oldest) {
			stats.Oldest = e.CreatedAt
		}
		if e.CreatedAt.After(stats.Newest) {
			stats.Newest = e.CreatedAt
		}
	}
	return stats, nil
}

// Len returns the number of stored entries.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
