// Package repositories implements persistence for metadata-service responses.
//
// Key Implementations:
//   - [ResponseCache] : the cache contract used by the origin resolver
//   - [SQLiteCache] : durable cache stored in the SQLite database created by shared migrations
//   - [MemoryCache] : process-local cache for tests and as a fallback when the database is unusable
//
// Entries are addressed by [Fingerprint], a SHA-256 digest of the lookup kind and the normalized
// lookup subject, so "Björk" and "bjork" share one entry across runs.
// Puts overwrite (last write wins); there is no eviction.
package repositories
