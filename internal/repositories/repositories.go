package repositories

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/desertthunder/geolist/internal/models"
	"github.com/desertthunder/geolist/internal/shared"
)

// KindArtistOrigin is the lookup kind for resolved artist origins.
const KindArtistOrigin = "artist-origin"

// ResponseCache stores prior API responses keyed by request fingerprint.
//
// Implementations must be safe for concurrent use. Get reports unreadable entries as a miss.
type ResponseCache interface {
	Get(ctx context.Context, fingerprint string) (*models.CacheEntry, bool)
	Put(ctx context.Context, fingerprint, kind, subject string, payload []byte) error
	Delete(ctx context.Context, fingerprint string) error
	Clear(ctx context.Context) error
	Stats(ctx context.Context) (Stats, error)
}

// Stats describes the contents of a cache.
type Stats struct {
	Entries int
	ByKind  map[string]int
	Oldest  time.Time
	Newest  time.Time
}

// Fingerprint derives the cache key for a lookup of subject of the given kind.
func Fingerprint(kind, subject string) string {
	sum := sha256.Sum256([]byte(kind + "\x00" + shared.NormalizeName(subject)))
	return hex.EncodeToString(sum[:])
}
