package main

import (
	"context"
	"fmt"
	"slices"

	"github.com/desertthunder/geolist/internal/shared"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
)

// CacheStats prints how many lookups are cached, by kind, and how old they are.
func (r *Runner) CacheStats(ctx context.Context, cmd *cli.Command) error {
	config, err := r.prepare(cmd)
	if err != nil {
		return err
	}
	if !config.Cache.Enabled && r.cache == nil {
		return fmt.Errorf("%w: cache is disabled in %s", shared.ErrInvalidConfig, r.configPathOrDefault())
	}

	cache := r.openCache()
	defer r.close()

	stats, err := cache.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read cache stats: %w", err)
	}

	r.writePlain("Cached lookups: %s\n", humanize.Comma(int64(stats.Entries)))
	if stats.Entries == 0 {
		return nil
	}

	kinds := make([]string, 0, len(stats.ByKind))
	for kind := range stats.ByKind {
		kinds = append(kinds, kind)
	}
	slices.Sort(kinds)
	for _, kind := range kinds {
		r.writePlain("  %-16s %s\n", kind, humanize.Comma(int64(stats.ByKind[kind])))
	}

	r.writePlain("Oldest: %s\n", humanize.Time(stats.Oldest))
	r.writePlain("Newest: %s\n", humanize.Time(stats.Newest))
	return nil
}

// CacheClear deletes every cached lookup.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	config, err := r.prepare(cmd)
	if err != nil {
		return err
	}
	if !config.Cache.Enabled && r.cache == nil {
		return fmt.Errorf("%w: cache is disabled in %s", shared.ErrInvalidConfig, r.configPathOrDefault())
	}

	cache := r.openCache()
	defer r.close()

	before, err := cache.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read cache stats: %w", err)
	}
	if err := cache.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	r.logger.Info("cache cleared", "entries", before.Entries)
	return r.writePlain("✓ Removed %s cached lookups\n", humanize.Comma(int64(before.Entries)))
}
