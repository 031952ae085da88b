package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/geolist/internal/formatter"
	"github.com/desertthunder/geolist/internal/models"
	"github.com/desertthunder/geolist/internal/repositories"
	"github.com/desertthunder/geolist/internal/services"
	"github.com/desertthunder/geolist/internal/shared"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is the number of artists resolved concurrently when none is configured.
const DefaultWorkers = 4

// PipelineOpts holds the collaborators and switches for one pipeline run.
type PipelineOpts struct {
	Library  services.SavedTrackLister // required unless InputPath is set
	Searcher services.ArtistSearcher
	Cache    repositories.ResponseCache // nil uses an in-memory cache for the run
	Limiter  *services.RateLimiter
	Retry    shared.RetryPolicy
	Resolver ResolverOptions
	Workers  int
	Logger   *log.Logger

	ClearCache bool
	InputPath  string // load a previously written document instead of fetching
	OutputPath string
	CSVPath    string
}

// Stats counts artists by outcome for a run.
type Stats struct {
	models.Summary
	FromCache int            `json:"from_cache"`
	Requests  int            `json:"requests"`
	Errors    map[string]int `json:"errors,omitempty"` // error message → artists
	Tracks    int            `json:"tracks"`
}

// RunResult contains all data from a completed run.
type RunResult struct {
	RunID    string
	Library  models.Library
	Stats    Stats
	Duration time.Duration
	Outputs  []string // files written
}

// Pipeline resolves the origin of every artist in a library.
type Pipeline struct {
	opts     PipelineOpts
	cache    repositories.ResponseCache
	resolver *OriginResolver
	logger   *log.Logger
}

// NewPipeline creates a pipeline from opts.
func NewPipeline(opts PipelineOpts) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}

	cache := opts.Cache
	if cache == nil {
		cache = repositories.NewMemoryCache()
	}

	return &Pipeline{
		opts:     opts,
		cache:    cache,
		resolver: NewOriginResolver(opts.Searcher, cache, opts.Limiter, opts.Retry, opts.Resolver, logger),
		logger:   logger,
	}
}

// sendProgress sends a progress update through the channel without blocking.
func (p *Pipeline) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Run acquires the library, resolves every artist, merges the results, and writes the configured outputs.
//
// Library failures abort the run. Individual lookup failures become error records. If ctx is
// cancelled while resolving, Run returns the context error and no records.
func (p *Pipeline) Run(ctx context.Context, progress chan<- ProgressUpdate) (*RunResult, error) {
	if p.opts.Searcher == nil {
		return nil, fmt.Errorf("%w: metadata service not initialized", shared.ErrServiceUnavailable)
	}

	start := time.Now()
	result := &RunResult{RunID: shared.GenerateID()}
	logger := shared.WithLogger(p.logger, "run", result.RunID)

	groups, loaded, err := p.acquire(ctx, progress, logger)
	if err != nil {
		return nil, err
	}

	trackCount := 0
	for _, tracks := range groups {
		trackCount += len(tracks)
	}
	logger.Info("library acquired", "artists", len(groups), "tracks", trackCount)
	p.sendProgress(progress, groupArtistsUpdate(len(groups), trackCount))

	if p.opts.ClearCache {
		p.sendProgress(progress, clearCacheUpdate())
		if err := p.cache.Clear(ctx); err != nil {
			logger.Warn("failed to clear cache", "error", err)
		} else {
			logger.Info("cache cleared")
		}
	}

	origins, stats, err := p.resolveAll(ctx, groups, progress, logger)
	if err != nil {
		return nil, err
	}

	lib := Merge(groups, origins)
	if loaded != nil {
		lib = MergeLibrary(loaded, lib)
	}
	p.sendProgress(progress, aggregateUpdate(len(lib)))

	stats.Summary = lib.Summary()
	stats.Tracks = lib.TrackCount()
	result.Library = lib
	result.Stats = stats

	outputs, err := p.write(lib, progress)
	result.Outputs = outputs
	result.Duration = time.Since(start)
	if err != nil {
		return result, err
	}

	logger.Info("run complete",
		"artists", stats.Total, "success", stats.Success, "not_found", stats.NotFound,
		"ambiguous", stats.Ambiguous, "error", stats.Error, "from_cache", stats.FromCache,
		"duration", result.Duration)
	return result, nil
}

// acquire returns the grouped tracks, plus the loaded document when reading from InputPath.
func (p *Pipeline) acquire(ctx context.Context, progress chan<- ProgressUpdate, logger *log.Logger) (map[models.ArtistKey][]models.Track, models.Library, error) {
	if p.opts.InputPath != "" {
		p.sendProgress(progress, loadInputUpdate(p.opts.InputPath))
		loaded, err := formatter.LoadLibraryFile(p.opts.InputPath)
		if err != nil {
			return nil, nil, err
		}
		return GroupLibrary(loaded), loaded, nil
	}

	if p.opts.Library == nil {
		return nil, nil, fmt.Errorf("%w: library service not initialized", shared.ErrServiceUnavailable)
	}

	source := NewLibrarySource(p.opts.Library, p.opts.Limiter, p.opts.Retry, logger)
	source.onPage = func(fetched, total int) {
		p.sendProgress(progress, fetchLibraryUpdate(fetched, total))
	}

	groups, err := GroupByArtist(source.Tracks(ctx), logger)
	if err != nil {
		return nil, nil, err
	}
	return groups, nil, nil
}

// resolveAll looks up every artist with at most Workers lookups in flight.
func (p *Pipeline) resolveAll(ctx context.Context, groups map[models.ArtistKey][]models.Track, progress chan<- ProgressUpdate, logger *log.Logger) (map[models.ArtistKey]models.OriginRecord, Stats, error) {
	artists := make([]models.ArtistKey, 0, len(groups))
	for artist := range groups {
		artists = append(artists, artist)
	}
	slices.Sort(artists)

	var (
		mu      sync.Mutex
		origins = make(map[models.ArtistKey]models.OriginRecord, len(artists))
		stats   = Stats{Errors: make(map[string]int)}
		done    int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)

	total := len(artists)
	for _, artist := range artists {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			rec, outcome := p.resolver.Resolve(gctx, artist)
			if err := ctx.Err(); err != nil {
				return err
			}

			mu.Lock()
			origins[artist] = rec
			done++
			step := done
			stats.Requests += outcome.Requests
			if outcome.FromCache {
				stats.FromCache++
			}
			if rec.Status == models.StatusError {
				stats.Errors[rec.Error]++
			}
			mu.Unlock()

			p.sendProgress(progress, resolveOriginUpdate(step, total, artist, rec))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, Stats{}, err
	}
	if err := ctx.Err(); err != nil {
		return nil, Stats{}, err
	}

	logger.Debug("origins resolved", "artists", total, "requests", stats.Requests, "from_cache", stats.FromCache)
	return origins, stats, nil
}

func (p *Pipeline) write(lib models.Library, progress chan<- ProgressUpdate) ([]string, error) {
	type target struct {
		path  string
		write func(models.Library, string) (string, error)
	}

	var targets []target
	if p.opts.OutputPath != "" {
		targets = append(targets, target{p.opts.OutputPath, formatter.WriteJSONExport})
	}
	if p.opts.CSVPath != "" {
		targets = append(targets, target{p.opts.CSVPath, formatter.WriteCSVExport})
	}

	var (
		outputs []string
		errs    []error
	)
	for i, t := range targets {
		p.sendProgress(progress, writeOutputUpdate(i+1, len(targets), t.path))
		path, err := t.write(lib, t.path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		outputs = append(outputs, path)
	}
	return outputs, errors.Join(errs...)
}

// OpenResponseCache opens the SQLite cache described by cfg. A corrupt cache file is moved aside and
// replaced with an empty one. When the cache is disabled or cannot be opened, it returns an in-memory
// cache and logs why; the run continues either way.
func OpenResponseCache(cfg shared.CacheConfig, logger *log.Logger) (repositories.ResponseCache, func() error) {
	noop := func() error { return nil }
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if !cfg.Enabled {
		logger.Debug("persistent cache disabled, using memory cache")
		return repositories.NewMemoryCache(), noop
	}

	db, moved, err := shared.EnsureCache(cfg)
	if moved != "" {
		logger.Warn("cache file was corrupt, moved it aside", "moved_to", moved)
	}
	if err != nil {
		logger.Warn("cache unavailable, falling back to memory cache", "error", err)
		return repositories.NewMemoryCache(), noop
	}
	return repositories.NewSQLiteCache(db, logger), db.Close
}
