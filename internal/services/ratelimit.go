package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// ServiceID names an upstream service for rate limiting.
type ServiceID string

const (
	SpotifyID     ServiceID = "spotify"
	MusicBrainzID ServiceID = "musicbrainz"
)

// RateLimiter enforces a minimum interval between requests to each service.
//
// Each service gets its own token bucket with burst 1, so grants are spaced by the
// interval and handed out in call order. Safe for concurrent use.
type RateLimiter struct {
	limiters map[ServiceID]*rate.Limiter
}

// NewRateLimiter builds a limiter from per-service minimum intervals. A non-positive interval disables throttling.
func NewRateLimiter(intervals map[ServiceID]time.Duration) *RateLimiter {
	limiters := make(map[ServiceID]*rate.Limiter, len(intervals))
	for id, interval := range intervals {
		limiters[id] = newLimiter(interval)
	}
	return &RateLimiter{limiters: limiters}
}

func newLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// Acquire blocks until a request slot for id is available or ctx is done.
//
// Unknown services are not throttled.
func (r *RateLimiter) Acquire(ctx context.Context, id ServiceID) error {
	if r == nil {
		return ctx.Err()
	}
	limiter, ok := r.limiters[id]
	if !ok {
		return ctx.Err()
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter %s: %w", id, err)
	}
	return nil
}

// Interval reports the configured spacing for id, or zero when unthrottled.
func (r *RateLimiter) Interval(id ServiceID) time.Duration {
	if r == nil {
		return 0
	}
	limiter, ok := r.limiters[id]
	if !ok || limiter.Limit() == rate.Inf || limiter.Limit() == 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / float64(limiter.Limit()))
}
