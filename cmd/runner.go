package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/geolist/internal/repositories"
	"github.com/desertthunder/geolist/internal/services"
	"github.com/desertthunder/geolist/internal/shared"
	"github.com/desertthunder/geolist/internal/tasks"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Dependencies left nil in [RunnerOpts] are built from the loaded configuration when a command needs them.
type Runner struct {
	config     *shared.Config
	configPath string
	library    services.SavedTrackLister
	metadata   services.ArtistSearcher
	cache      repositories.ResponseCache
	limiter    *services.RateLimiter
	logger     *log.Logger
	output     io.Writer
	closers    []func() error
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config      *shared.Config
	ConfigPath  string
	Library     services.SavedTrackLister
	MusicBrainz services.ArtistSearcher
	Cache       repositories.ResponseCache
	Limiter     *services.RateLimiter
	Logger      *log.Logger
	Output      io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		library:    opts.Library,
		metadata:   opts.MusicBrainz,
		cache:      opts.Cache,
		limiter:    opts.Limiter,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) app() *cli.Command {
	return &cli.Command{
		Name:     "geolist",
		Usage:    "Map your saved Spotify tracks to where each artist comes from",
		Version:  "0.1.0",
		Flags:    resolveFlags(),
		Action:   r.Resolve,
		Commands: r.register(),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){resolveCommand, setupCommand, cacheCommand} {
		commands = append(commands, fn(r))
	}
	return commands
}

// SetLogger replaces the logger used by subsequent commands.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// prepare loads configuration for cmd and applies the verbosity flag.
func (r *Runner) prepare(cmd *cli.Command) (*shared.Config, error) {
	shared.SetLogLevel(r.logger, shared.VerbosityLevel(cmd.Bool("verbose")))

	if path := cmd.String("config"); path != "" && r.configPath == "" {
		r.configPath = path
	}
	return r.loadConfig()
}

// loadConfig returns the injected config, or reads configPath, falling back to defaults when the file is absent.
func (r *Runner) loadConfig() (*shared.Config, error) {
	if r.config != nil {
		return r.config, nil
	}

	config := shared.DefaultConfig()
	if r.configPath != "" {
		if _, err := os.Stat(r.configPath); err == nil {
			loaded, err := shared.LoadConfig(r.configPath)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
			}
			config = loaded
		} else {
			r.logger.Warn("config file not found, using defaults (run 'geolist setup' to create one)", "path", r.configPath)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	r.config = config
	return config, nil
}

// openCache opens the configured response cache unless one was injected.
func (r *Runner) openCache() repositories.ResponseCache {
	if r.cache == nil {
		cache, closeFn := tasks.OpenResponseCache(r.config.Cache, r.logger)
		r.cache = cache
		r.closers = append(r.closers, closeFn)
	}
	return r.cache
}

func (r *Runner) rateLimiter() *services.RateLimiter {
	if r.limiter == nil {
		r.limiter = services.NewRateLimiter(map[services.ServiceID]time.Duration{
			services.SpotifyID:     r.config.RateLimits.Spotify.Duration,
			services.MusicBrainzID: r.config.RateLimits.MusicBrainz.Duration,
		})
	}
	return r.limiter
}

func (r *Runner) musicBrainz() (services.ArtistSearcher, error) {
	if r.metadata == nil {
		svc, err := services.NewMusicBrainzService(r.config.Credentials.MusicBrainz)
		if err != nil {
			return nil, fmt.Errorf("failed to create MusicBrainz service: %w", err)
		}
		r.metadata = svc
	}
	return r.metadata, nil
}

// spotify authenticates the saved-tracks client from the configured tokens.
//
// Refreshed tokens are written back to the config file so the next run starts with a valid access token.
func (r *Runner) spotify(ctx context.Context) (services.SavedTrackLister, error) {
	if r.library != nil {
		return r.library, nil
	}

	creds := r.config.Credentials.Spotify
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return nil, fmt.Errorf("%w: Spotify client_id and client_secret must be set in %s", shared.ErrMissingCredentials, r.configPathOrDefault())
	}

	svc, err := services.NewSpotifyService(creds.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to create Spotify service: %w", err)
	}
	svc.SetTokenRefreshCallback(r.persistToken)

	if err := svc.Authenticate(ctx, creds.Map()); err != nil {
		return nil, fmt.Errorf("%w: %v (set credentials.spotify.access_token or refresh_token)", shared.ErrAuthFailed, err)
	}

	r.library = svc
	return svc, nil
}

func (r *Runner) persistToken(token *oauth2.Token) {
	r.config.Credentials.Spotify.UpdateTokens(token.AccessToken, token.RefreshToken)
	if r.configPath == "" {
		return
	}
	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		r.logger.Warn("failed to save refreshed Spotify token", "error", err)
		return
	}
	r.logger.Debug("saved refreshed Spotify token", "path", r.configPath)
}

func (r *Runner) configPathOrDefault() string {
	if r.configPath == "" {
		return "config.toml"
	}
	return r.configPath
}

// close releases resources opened by the runner.
func (r *Runner) close() error {
	var errs []error
	for _, fn := range r.closers {
		errs = append(errs, fn())
	}
	r.closers = nil
	return errors.Join(errs...)
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
