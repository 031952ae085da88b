package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/geolist/internal/shared"
	"github.com/desertthunder/geolist/internal/tasks"
	"github.com/desertthunder/geolist/internal/ui"
	"github.com/urfave/cli/v3"
)

// Resolve fetches the saved library (or loads --input), resolves every artist's origin, and writes the output files.
//
// Per-artist lookup failures are reported in the summary and never fail the command. Configuration,
// authentication, library, and output failures do.
func (r *Runner) Resolve(ctx context.Context, cmd *cli.Command) error {
	config, err := r.prepare(cmd)
	if err != nil {
		return err
	}

	useTUI := cmd.Bool("tui")
	if useTUI {
		fileLogger, closer, err := shared.NewFileLogger("")
		if err != nil {
			return fmt.Errorf("failed to create file logger: %w", err)
		}
		defer closer.Close()
		shared.SetLogLevel(fileLogger, r.logger.GetLevel())
		r.SetLogger(fileLogger)
	}

	opts, err := r.pipelineOpts(ctx, cmd, config)
	if err != nil {
		return err
	}
	defer func() {
		if err := r.close(); err != nil {
			r.logger.Warn("failed to close cache", "error", err)
		}
	}()

	pipeline := tasks.NewPipeline(opts)

	var result *tasks.RunResult
	if useTUI {
		result, err = ui.Run(ctx, pipeline.Run)
	} else {
		result, err = pipeline.Run(ctx, nil)
		if result != nil {
			r.writePlain("%s\n", ui.RenderSummary(result))
		}
	}

	switch {
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("run cancelled: %w", err)
	case err != nil:
		return err
	}

	for _, path := range result.Outputs {
		r.writePlain("✓ Wrote %s\n", path)
	}
	return nil
}

// pipelineOpts builds the pipeline's collaborators from config and the resolve flags.
func (r *Runner) pipelineOpts(ctx context.Context, cmd *cli.Command, config *shared.Config) (tasks.PipelineOpts, error) {
	opts := tasks.PipelineOpts{
		Retry:      config.Resolver.RetryPolicy(),
		Workers:    config.Resolver.Workers,
		Logger:     r.logger,
		ClearCache: cmd.Bool("clear-cache"),
		InputPath:  cmd.String("input"),
		OutputPath: cmd.String("output"),
		CSVPath:    cmd.String("csv"),
		Resolver: tasks.ResolverOptions{
			ReadCache:         !cmd.Bool("no-cache"),
			WriteCache:        true,
			CacheErrors:       config.Resolver.CacheErrors,
			RetryCachedErrors: cmd.Bool("retry-errors"),
			Ambiguity:         config.Resolver.Ambiguity,
		},
	}
	if cmd.IsSet("workers") {
		opts.Workers = int(cmd.Int("workers"))
		if opts.Workers < 1 {
			return opts, fmt.Errorf("%w: --workers must be at least 1", shared.ErrInvalidArgument)
		}
	}

	searcher, err := r.musicBrainz()
	if err != nil {
		return opts, err
	}
	opts.Searcher = searcher

	if opts.InputPath == "" {
		library, err := r.spotify(ctx)
		if err != nil {
			return opts, err
		}
		opts.Library = library
	}

	opts.Limiter = r.rateLimiter()
	opts.Cache = r.openCache()
	return opts, nil
}
