package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/geolist/internal/models"
	"github.com/desertthunder/geolist/internal/repositories"
	"github.com/desertthunder/geolist/internal/services"
	"github.com/desertthunder/geolist/internal/shared"
)

// ResolverOptions controls how [OriginResolver] uses the cache and breaks ties.
type ResolverOptions struct {
	ReadCache         bool   // serve stored records without a request
	WriteCache        bool   // store fresh records
	CacheErrors       bool   // also store records with status error
	RetryCachedErrors bool   // drop stored error records and query again
	Ambiguity         string // shared.AmbiguityUnresolved or shared.AmbiguityBestScore
}

// DefaultResolverOptions reads and writes the cache and leaves homonyms unresolved.
func DefaultResolverOptions() ResolverOptions {
	return ResolverOptions{
		ReadCache:  true,
		WriteCache: true,
		Ambiguity:  shared.AmbiguityUnresolved,
	}
}

// Outcome describes how a record was produced.
type Outcome struct {
	FromCache bool
	Requests  int   // search requests issued, including retries
	Err       error // lookup failure behind an error record
}

// OriginResolver looks up where an artist comes from.
//
// Lookups go cache first, then limiter slot and metadata search under the retry policy.
// Safe for concurrent use when the cache is.
type OriginResolver struct {
	searcher services.ArtistSearcher
	cache    repositories.ResponseCache
	limiter  *services.RateLimiter
	retry    shared.RetryPolicy
	opts     ResolverOptions
	logger   *log.Logger
}

// NewOriginResolver wires a resolver. A nil cache disables caching.
func NewOriginResolver(
	searcher services.ArtistSearcher,
	cache repositories.ResponseCache,
	limiter *services.RateLimiter,
	retry shared.RetryPolicy,
	opts ResolverOptions,
	logger *log.Logger,
) *OriginResolver {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if opts.Ambiguity == "" {
		opts.Ambiguity = shared.AmbiguityUnresolved
	}
	return &OriginResolver{
		searcher: searcher,
		cache:    cache,
		limiter:  limiter,
		retry:    retry,
		opts:     opts,
		logger:   logger,
	}
}

// Resolve returns the origin record for artist. It never fails; lookup failures become status error.
func (r *OriginResolver) Resolve(ctx context.Context, artist models.ArtistKey) (models.OriginRecord, Outcome) {
	name := string(artist)
	fp := repositories.Fingerprint(repositories.KindArtistOrigin, name)
	logger := r.logger.With("artist", name)

	if rec, ok := r.cached(ctx, fp, logger); ok {
		return rec, Outcome{FromCache: true}
	}

	var (
		candidates []services.ArtistCandidate
		requests   int
	)

	policy := r.retry
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		logger.Warn("artist search failed, retrying", "attempt", attempt, "delay", delay, "error", err)
	}

	err := policy.Do(ctx, func(ctx context.Context) error {
		if err := r.limiter.Acquire(ctx, services.MusicBrainzID); err != nil {
			return err
		}
		requests++
		c, err := r.searcher.SearchArtists(ctx, name)
		if err != nil {
			return err
		}
		candidates = c
		return nil
	})

	if err != nil {
		rec := models.Failed(err)
		out := Outcome{Requests: requests, Err: err}
		if ctx.Err() != nil {
			return rec, out
		}
		logger.Error("artist lookup failed", "error", err)
		if r.opts.CacheErrors {
			r.store(ctx, fp, name, rec, logger)
		}
		return rec, out
	}

	rec := r.classify(name, candidates)
	logger.Debug("artist resolved", "status", rec.Status, "candidates", len(candidates))
	r.store(ctx, fp, name, rec, logger)
	return rec, Outcome{Requests: requests}
}

// cached returns a stored record for fp. Undecodable payloads, and error records when retrying them,
// are deleted and reported as a miss.
func (r *OriginResolver) cached(ctx context.Context, fp string, logger *log.Logger) (models.OriginRecord, bool) {
	if r.cache == nil || !r.opts.ReadCache {
		return models.OriginRecord{}, false
	}

	entry, ok := r.cache.Get(ctx, fp)
	if !ok {
		return models.OriginRecord{}, false
	}

	rec, err := decodeOrigin(entry.Payload)
	if err != nil {
		logger.Warn("dropping unreadable cache entry", "error", err)
		r.evict(ctx, fp, logger)
		return models.OriginRecord{}, false
	}

	if rec.Status == models.StatusError && r.opts.RetryCachedErrors {
		logger.Debug("retrying cached error")
		r.evict(ctx, fp, logger)
		return models.OriginRecord{}, false
	}

	logger.Debug("cache hit", "status", rec.Status)
	return rec, true
}

func (r *OriginResolver) evict(ctx context.Context, fp string, logger *log.Logger) {
	if !r.opts.WriteCache {
		return
	}
	if err := r.cache.Delete(ctx, fp); err != nil {
		logger.Warn("failed to delete cache entry", "error", err)
	}
}

func (r *OriginResolver) store(ctx context.Context, fp, name string, rec models.OriginRecord, logger *log.Logger) {
	if r.cache == nil || !r.opts.WriteCache {
		return
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		logger.Warn("failed to encode origin for cache", "error", err)
		return
	}
	if err := r.cache.Put(ctx, fp, repositories.KindArtistOrigin, name, payload); err != nil {
		logger.Warn("failed to cache origin", "error", err)
	}
}

func decodeOrigin(payload []byte) (models.OriginRecord, error) {
	var rec models.OriginRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return rec, errors.Join(shared.ErrCacheCorrupt, err)
	}
	if err := rec.Validate(); err != nil {
		return rec, errors.Join(shared.ErrCacheCorrupt, err)
	}
	return rec, nil
}

// classify turns search candidates into a record.
//
// Only candidates whose normalized name or alias equals the normalized query count as matches.
func (r *OriginResolver) classify(query string, candidates []services.ArtistCandidate) models.OriginRecord {
	matches := MatchCandidates(query, candidates)

	switch len(matches) {
	case 0:
		return models.NotFound()
	case 1:
		return originOf(matches[0])
	}

	if r.opts.Ambiguity == shared.AmbiguityBestScore {
		if best, ok := bestScore(matches); ok {
			return originOf(best)
		}
	}
	return models.Ambiguous()
}

// MatchCandidates keeps the candidates naming the same artist as query.
func MatchCandidates(query string, candidates []services.ArtistCandidate) []services.ArtistCandidate {
	want := shared.NormalizeName(query)

	var matches []services.ArtistCandidate
	for _, c := range candidates {
		if shared.NormalizeName(c.Name) == want {
			matches = append(matches, c)
			continue
		}
		for _, alias := range c.Aliases {
			if shared.NormalizeName(alias) == want {
				matches = append(matches, c)
				break
			}
		}
	}
	return matches
}

// bestScore returns the candidate with a strictly highest score.
func bestScore(candidates []services.ArtistCandidate) (services.ArtistCandidate, bool) {
	best, tied := 0, false
	for i := 1; i < len(candidates); i++ {
		switch {
		case candidates[i].Score > candidates[best].Score:
			best, tied = i, false
		case candidates[i].Score == candidates[best].Score:
			tied = true
		}
	}
	if tied {
		return services.ArtistCandidate{}, false
	}
	return candidates[best], true
}

func originOf(c services.ArtistCandidate) models.OriginRecord {
	return models.Resolved(c.BeginArea, c.Area, c.Country)
}
