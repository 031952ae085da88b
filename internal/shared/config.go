package shared

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
)

//go:embed config.example.toml
var exampleConf []byte

const (
	appName     = "geolist"
	cacheDBName = "cache.db"
)

// Ambiguity policies for homonymous metadata matches.
const (
	AmbiguityUnresolved = "unresolved"
	AmbiguityBestScore  = "best_score"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Cache       CacheConfig       `toml:"cache"`
	Resolver    ResolverConfig    `toml:"resolver"`
	RateLimits  RateLimitConfig   `toml:"rate_limits"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify     SpotifyConfig     `toml:"spotify"`
	MusicBrainz MusicBrainzConfig `toml:"musicbrainz"`
}

// SpotifyConfig contains Spotify API credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	AccessToken  string `toml:"access_token"`
	RefreshToken string `toml:"refresh_token"`
}

// Map returns the credentials in the form accepted by the Spotify service constructor.
func (s SpotifyConfig) Map() map[string]string {
	return map[string]string{
		"client_id":     s.ClientID,
		"client_secret": s.ClientSecret,
		"redirect_uri":  s.RedirectURI,
		"access_token":  s.AccessToken,
		"refresh_token": s.RefreshToken,
	}
}

// MusicBrainzConfig identifies this client to the MusicBrainz web service.
type MusicBrainzConfig struct {
	UserAgent string `toml:"user_agent"`
	BaseURL   string `toml:"base_url"`
}

// CacheConfig contains response cache settings.
type CacheConfig struct {
	Enabled      bool   `toml:"enabled"`
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ResolvePath returns the cache database path, defaulting to the XDG cache directory.
func (c CacheConfig) ResolvePath() (string, error) {
	if c.Path != "" {
		if err := os.MkdirAll(filepath.Dir(c.Path), 0755); err != nil {
			return "", fmt.Errorf("failed to create cache directory: %w", err)
		}
		return c.Path, nil
	}
	path, err := xdg.CacheFile(filepath.Join(appName, cacheDBName))
	if err != nil {
		return "", fmt.Errorf("failed to resolve cache path: %w", err)
	}
	return path, nil
}

// ResolverConfig tunes artist origin resolution.
type ResolverConfig struct {
	Workers        int      `toml:"workers"`
	MaxAttempts    int      `toml:"max_attempts"`
	InitialBackoff Duration `toml:"initial_backoff"`
	MaxBackoff     Duration `toml:"max_backoff"`
	Ambiguity      string   `toml:"ambiguity"`
	CacheErrors    bool     `toml:"cache_errors"`
}

// RetryPolicy builds the backoff policy shared by library and metadata requests.
func (r ResolverConfig) RetryPolicy() RetryPolicy {
	p := DefaultRetryPolicy()
	if r.MaxAttempts > 0 {
		p.MaxAttempts = r.MaxAttempts
	}
	if r.InitialBackoff.Duration > 0 {
		p.InitialDelay = r.InitialBackoff.Duration
	}
	if r.MaxBackoff.Duration > 0 {
		p.MaxDelay = r.MaxBackoff.Duration
	}
	return p
}

// RateLimitConfig holds the minimum interval between requests per service.
type RateLimitConfig struct {
	Spotify     Duration `toml:"spotify"`
	MusicBrainz Duration `toml:"musicbrainz"`
}

// Duration is a [time.Duration] written as a string ("250ms", "1s") in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q: %v", ErrInvalidConfig, string(text), err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	switch c.Resolver.Ambiguity {
	case "", AmbiguityUnresolved, AmbiguityBestScore:
	default:
		return fmt.Errorf("%w: resolver.ambiguity must be %q or %q, got %q",
			ErrInvalidConfig, AmbiguityUnresolved, AmbiguityBestScore, c.Resolver.Ambiguity)
	}
	if c.Resolver.Workers < 0 {
		return fmt.Errorf("%w: resolver.workers must not be negative", ErrInvalidConfig)
	}
	if c.Credentials.MusicBrainz.UserAgent == "" {
		return fmt.Errorf("%w: credentials.musicbrainz.user_agent is required", ErrInvalidConfig)
	}
	return nil
}

// LoadConfig reads a TOML configuration file and layers it over [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig writes config to path as TOML, replacing any existing file.
//
// The file holds credentials, so it is created readable by the owner only.
func SaveConfig(path string, config *Config) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// UpdateTokens records a refreshed token pair. An empty refresh token keeps the current one.
func (s *SpotifyConfig) UpdateTokens(access, refresh string) {
	s.AccessToken = access
	if refresh != "" {
		s.RefreshToken = refresh
	}
}
