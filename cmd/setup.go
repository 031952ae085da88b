package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/geolist/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup creates the config file from the embedded example when missing, then initializes the cache database.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	shared.SetLogLevel(r.logger, shared.VerbosityLevel(cmd.Bool("verbose")))
	configPath := cmd.String("config")
	if r.configPath == "" {
		r.configPath = configPath
	}

	if _, err := os.Stat(r.configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", r.configPath)
		if err := shared.CreateConfigFile(r.configPath); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
		r.logger.Info("config file created", "path", r.configPath)
	}

	config, err := r.loadConfig()
	if err != nil {
		return err
	}

	if !config.Cache.Enabled {
		r.logger.Info("cache disabled, skipping database setup")
		return r.writePlain("✓ Config ready at %s\n", r.configPath)
	}

	path, err := config.Cache.ResolvePath()
	if err != nil {
		return err
	}
	r.logger.Info("initializing cache database", "path", path)

	db, moved, err := shared.EnsureCache(config.Cache)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	defer db.Close()
	if moved != "" {
		r.logger.Warn("existing cache was corrupt and has been replaced", "moved_to", moved)
	}

	r.logger.Infof("setup complete for database: %v", path)
	r.writePlain("✓ Config ready at %s\n", r.configPath)
	r.writePlain("✓ Cache database ready at %s\n", path)
	r.writePlainln("Next steps:")
	r.writePlain("1. Fill in credentials.spotify (client id/secret and a user-library-read token)\n")
	r.writePlain("2. Set credentials.musicbrainz.user_agent to identify yourself\n")
	r.writePlain("3. Run 'geolist resolve -o library.json'\n")
	return nil
}
