package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/geolist/internal/models"
	"github.com/desertthunder/geolist/internal/services"
	"github.com/desertthunder/geolist/internal/shared"
)

// LibrarySource streams a user's saved tracks page by page.
type LibrarySource struct {
	lister   services.SavedTrackLister
	limiter  *services.RateLimiter
	retry    shared.RetryPolicy
	logger   *log.Logger
	pageSize int

	// onPage, if set, observes each fetched page.
	onPage func(fetched, total int)
}

// NewLibrarySource creates a source that fetches pages of [services.SpotifyPageLimit] tracks.
func NewLibrarySource(lister services.SavedTrackLister, limiter *services.RateLimiter, retry shared.RetryPolicy, logger *log.Logger) *LibrarySource {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &LibrarySource{
		lister:   lister,
		limiter:  limiter,
		retry:    retry,
		logger:   logger,
		pageSize: services.SpotifyPageLimit,
	}
}

// Tracks lazily yields every saved track. Iteration stops after the first yielded error.
//
// Every page fetch waits for a Spotify limiter slot and runs under the retry policy.
// Authentication failures are not retried; exhausted transient failures are yielded as-is.
func (s *LibrarySource) Tracks(ctx context.Context) iter.Seq2[models.Track, error] {
	return func(yield func(models.Track, error) bool) {
		offset, fetched := 0, 0
		for {
			page, err := s.fetchPage(ctx, offset)
			if err != nil {
				yield(models.Track{}, err)
				return
			}

			fetched += page.Fetched
			if s.onPage != nil {
				s.onPage(fetched, page.Total)
			}

			for _, track := range page.Tracks {
				if !yield(track, nil) {
					return
				}
			}

			if !page.HasNext || page.Fetched == 0 {
				return
			}
			offset += page.Fetched
		}
	}
}

func (s *LibrarySource) fetchPage(ctx context.Context, offset int) (*services.LibraryPage, error) {
	var page *services.LibraryPage

	policy := s.retry
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		s.logger.Warn("library page failed, retrying", "offset", offset, "attempt", attempt, "delay", delay, "error", err)
	}

	err := policy.Do(ctx, func(ctx context.Context) error {
		if err := s.limiter.Acquire(ctx, services.SpotifyID); err != nil {
			return err
		}
		p, err := s.lister.LibraryPage(ctx, s.pageSize, offset)
		if err != nil {
			return err
		}
		page = p
		return nil
	})
	if err != nil {
		if errors.Is(err, shared.ErrAuthFailed) {
			return nil, fmt.Errorf("fetching saved tracks: %w", err)
		}
		return nil, fmt.Errorf("fetching saved tracks at offset %d: %w", offset, err)
	}

	s.logger.Debug("fetched library page", "offset", offset, "tracks", len(page.Tracks), "skipped", page.Skipped, "total", page.Total)
	return page, nil
}

// GroupByArtist consumes seq once and buckets tracks by their first credited artist.
//
// Tracks with neither ID nor URI, or with no artist, are skipped. The first error from seq is returned with no grouping.
func GroupByArtist(seq iter.Seq2[models.Track, error], logger *log.Logger) (map[models.ArtistKey][]models.Track, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}

	groups := make(map[models.ArtistKey][]models.Track)
	for track, err := range seq {
		if err != nil {
			return nil, err
		}
		if track.SongKey() == "" || track.ArtistName == "" {
			logger.Debug("skipping track without id or artist", "name", track.Name, "uri", track.URI)
			continue
		}
		key := track.Key()
		groups[key] = append(groups[key], track)
	}
	return groups, nil
}
