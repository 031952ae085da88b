package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/adrg/xdg"
	"github.com/desertthunder/geolist/internal/formatter"
	"github.com/desertthunder/geolist/internal/models"
	"github.com/desertthunder/geolist/internal/repositories"
	"github.com/desertthunder/geolist/internal/services"
	"github.com/desertthunder/geolist/internal/shared"
	tu "github.com/desertthunder/geolist/internal/testing"
	"golang.org/x/oauth2"
)

func testRunner(t *testing.T, opts RunnerOpts) (*Runner, *bytes.Buffer) {
	t.Helper()
	output := &bytes.Buffer{}
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(&bytes.Buffer{})
	}
	if opts.Limiter == nil {
		opts.Limiter = services.NewRateLimiter(nil)
	}
	if opts.Cache == nil {
		opts.Cache = repositories.NewMemoryCache()
	}
	opts.Output = output
	return NewRunner(opts), output
}

func fakeServices() (*tu.FakeLibrary, *tu.FakeSearcher) {
	library := &tu.FakeLibrary{Tracks: []models.Track{
		tu.MakeTrack("t1", "Hyperballad", "Björk"),
		tu.MakeTrack("t2", "Jóga", "Björk"),
		tu.MakeTrack("t3", "Roygbiv", "Boards of Canada"),
		tu.MakeTrack("t4", "Untitled", "Nobody Known"),
	}}
	searcher := &tu.FakeSearcher{Results: map[string][]services.ArtistCandidate{
		"Björk":            {tu.Candidate("Björk", "Reykjavík", "Iceland", "IS")},
		"Boards of Canada": {tu.Candidate("Boards of Canada", "Edinburgh", "Scotland", "GB")},
	}}
	return library, searcher
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			library, searcher := fakeServices()
			cache := repositories.NewMemoryCache()

			runner := NewRunner(RunnerOpts{
				Config:      config,
				ConfigPath:  "/test/path/config.toml",
				Library:     library,
				MusicBrainz: searcher,
				Cache:       cache,
				Logger:      logger,
				Output:      output,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.library != library {
				t.Error("expected library to be set")
			}
			if runner.metadata != searcher {
				t.Error("expected metadata service to be set")
			}
			if runner.cache != cache {
				t.Error("expected cache to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("formats output", func(t *testing.T) {
			runner, output := testRunner(t, RunnerOpts{})
			if err := runner.writePlain("%d artists\n", 3); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "3 artists\n" {
				t.Errorf("unexpected output %q", output.String())
			}
		})

		t.Run("writePlainln surrounds with newlines", func(t *testing.T) {
			runner, output := testRunner(t, RunnerOpts{})
			runner.writePlainln("Next steps:")
			if output.String() != "\nNext steps:\n" {
				t.Errorf("unexpected output %q", output.String())
			}
		})

		t.Run("returns error on write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})
			err := runner.writePlain("test")
			if err == nil {
				t.Fatal("expected error on write failure")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		names := []string{}
		for i, cmd := range commands {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			names = append(names, cmd.Name)
		}
		if strings.Join(names, ",") != "resolve,setup,cache" {
			t.Errorf("unexpected commands %v", names)
		}
	})

	t.Run("persistToken", func(t *testing.T) {
		t.Run("saves refreshed tokens to the config file", func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "config.toml")
			config := shared.DefaultConfig()
			config.Credentials.Spotify.RefreshToken = "refresh-1"
			if err := shared.SaveConfig(configPath, config); err != nil {
				t.Fatalf("failed to create test config: %v", err)
			}

			runner, _ := testRunner(t, RunnerOpts{Config: config, ConfigPath: configPath})
			runner.persistToken(&oauth2.Token{AccessToken: "access-2"})

			loaded, err := shared.LoadConfig(configPath)
			if err != nil {
				t.Fatalf("failed to reload config: %v", err)
			}
			if loaded.Credentials.Spotify.AccessToken != "access-2" {
				t.Errorf("expected access token to be updated, got %s", loaded.Credentials.Spotify.AccessToken)
			}
			if loaded.Credentials.Spotify.RefreshToken != "refresh-1" {
				t.Errorf("expected refresh token to be kept, got %s", loaded.Credentials.Spotify.RefreshToken)
			}
		})

		t.Run("updates memory only without a config path", func(t *testing.T) {
			config := shared.DefaultConfig()
			runner, _ := testRunner(t, RunnerOpts{Config: config})
			runner.persistToken(&oauth2.Token{AccessToken: "new", RefreshToken: "newer"})

			if config.Credentials.Spotify.AccessToken != "new" || config.Credentials.Spotify.RefreshToken != "newer" {
				t.Error("expected config to be updated in memory")
			}
		})
	})
}

func TestResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("resolves library and writes outputs", func(t *testing.T) {
		dir := t.TempDir()
		out := filepath.Join(dir, "library.json")
		csvPath := filepath.Join(dir, "origins.csv")
		library, searcher := fakeServices()
		runner, output := testRunner(t, RunnerOpts{Library: library, MusicBrainz: searcher})

		err := runner.app().Run(ctx, []string{"geolist", "resolve", "-o", out, "--csv", csvPath, "-w", "2"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		lib, err := formatter.LoadLibraryFile(out)
		if err != nil {
			t.Fatalf("failed to load output: %v", err)
		}
		if len(lib) != 3 {
			t.Fatalf("expected 3 artists, got %d", len(lib))
		}
		if got := lib["Björk"]; got.Origin.Status != models.StatusSuccess || *got.Origin.City != "Reykjavík" {
			t.Errorf("unexpected origin for Björk: %+v", got.Origin)
		}
		if got := lib["Nobody Known"]; got.Origin.Status != models.StatusNotFound {
			t.Errorf("expected not_found, got %s", got.Origin.Status)
		}
		if len(lib["Björk"].Songs) != 2 {
			t.Errorf("expected 2 songs for Björk, got %d", len(lib["Björk"].Songs))
		}

		if !strings.Contains(tu.MustReadFile(t, csvPath), "Boards of Canada,artist-Boards of Canada,Edinburgh,Scotland,GB,success,1") {
			t.Errorf("unexpected CSV:\n%s", tu.MustReadFile(t, csvPath))
		}

		text := output.String()
		if !strings.Contains(text, "Resolved 3 artists") {
			t.Errorf("expected summary in output, got %q", text)
		}
		if !strings.Contains(text, "Wrote "+out) {
			t.Errorf("expected output path in output, got %q", text)
		}
	})

	t.Run("root action resolves", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "library.json")
		library, searcher := fakeServices()
		runner, _ := testRunner(t, RunnerOpts{Library: library, MusicBrainz: searcher})

		if err := runner.app().Run(ctx, []string{"geolist", "-o", out}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		tu.AssertFileExists(t, out)
	})

	t.Run("second run is served from cache", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "library.json")
		library, searcher := fakeServices()
		runner, _ := testRunner(t, RunnerOpts{Library: library, MusicBrainz: searcher})

		for range 2 {
			if err := runner.app().Run(ctx, []string{"geolist", "resolve", "-o", out}); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		}
		if searcher.TotalCalls() != 3 {
			t.Errorf("expected 3 searches across both runs, got %d", searcher.TotalCalls())
		}

		if err := runner.app().Run(ctx, []string{"geolist", "resolve", "-o", out, "--no-cache"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if searcher.TotalCalls() != 6 {
			t.Errorf("expected --no-cache to search again, got %d searches", searcher.TotalCalls())
		}
	})

	t.Run("re-resolves an input file without the library service", func(t *testing.T) {
		dir := t.TempDir()
		in := filepath.Join(dir, "in.json")
		out := filepath.Join(dir, "out.json")

		prev := models.Library{"Björk": models.NewArtistRecord("Björk", "spotify:artist:bjork", "bjork")}
		prev["Björk"].AddTrack(tu.MakeTrack("t1", "Hyperballad", "Björk"))
		prev["Björk"].Origin = models.NotFound()
		if _, err := formatter.WriteJSONExport(prev, in); err != nil {
			t.Fatalf("failed to write input: %v", err)
		}

		_, searcher := fakeServices()
		config := shared.DefaultConfig()
		config.Credentials.Spotify = shared.SpotifyConfig{}
		runner, _ := testRunner(t, RunnerOpts{Config: config, MusicBrainz: searcher})

		if err := runner.app().Run(ctx, []string{"geolist", "resolve", "-i", in, "-o", out}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		lib, err := formatter.LoadLibraryFile(out)
		if err != nil {
			t.Fatalf("failed to load output: %v", err)
		}
		if lib["Björk"].Origin.Status != models.StatusSuccess {
			t.Errorf("expected success, got %s", lib["Björk"].Origin.Status)
		}
		if lib["Björk"].ArtistURI != "spotify:artist:bjork" {
			t.Errorf("expected artist uri to be kept, got %s", lib["Björk"].ArtistURI)
		}
	})

	t.Run("missing Spotify credentials are fatal", func(t *testing.T) {
		_, searcher := fakeServices()
		config := shared.DefaultConfig()
		config.Credentials.Spotify = shared.SpotifyConfig{}
		runner, _ := testRunner(t, RunnerOpts{Config: config, MusicBrainz: searcher})

		err := runner.app().Run(ctx, []string{"geolist", "resolve", "-o", filepath.Join(t.TempDir(), "x.json")})
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("missing Spotify tokens are an auth failure", func(t *testing.T) {
		_, searcher := fakeServices()
		config := shared.DefaultConfig()
		config.Credentials.Spotify.AccessToken = ""
		config.Credentials.Spotify.RefreshToken = ""
		runner, _ := testRunner(t, RunnerOpts{Config: config, MusicBrainz: searcher})

		err := runner.app().Run(ctx, []string{"geolist", "resolve", "-o", filepath.Join(t.TempDir(), "x.json")})
		if !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", err)
		}
	})

	t.Run("library failure is fatal", func(t *testing.T) {
		library, searcher := fakeServices()
		library.Errs = []error{shared.NewStatusError("Spotify", 401, "bad token")}
		runner, _ := testRunner(t, RunnerOpts{Library: library, MusicBrainz: searcher})

		err := runner.app().Run(ctx, []string{"geolist", "resolve", "-o", filepath.Join(t.TempDir(), "x.json")})
		if !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", err)
		}
	})

	t.Run("lookup failures are not fatal", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "library.json")
		library, searcher := fakeServices()
		searcher.Errs = map[string][]error{"Björk": {shared.NewStatusError("MusicBrainz", 400, "bad query")}}
		runner, output := testRunner(t, RunnerOpts{Library: library, MusicBrainz: searcher})

		if err := runner.app().Run(ctx, []string{"geolist", "resolve", "-o", out}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		lib, err := formatter.LoadLibraryFile(out)
		if err != nil {
			t.Fatalf("failed to load output: %v", err)
		}
		if lib["Björk"].Origin.Status != models.StatusError {
			t.Errorf("expected error status, got %s", lib["Björk"].Origin.Status)
		}
		if !strings.Contains(output.String(), "bad query") {
			t.Errorf("expected error in summary, got %q", output.String())
		}
	})

	t.Run("rejects invalid worker count", func(t *testing.T) {
		library, searcher := fakeServices()
		runner, _ := testRunner(t, RunnerOpts{Library: library, MusicBrainz: searcher})

		err := runner.app().Run(ctx, []string{"geolist", "resolve", "-w", "0"})
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("rejects invalid config file", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		tu.MustWriteFile(t, configPath, "[resolver]\nambiguity = \"coin_flip\"\n")

		library, searcher := fakeServices()
		runner := NewRunner(RunnerOpts{
			Library:     library,
			MusicBrainz: searcher,
			Logger:      shared.NewLogger(&bytes.Buffer{}),
			Output:      &bytes.Buffer{},
		})

		err := runner.app().Run(ctx, []string{"geolist", "resolve", "-c", configPath})
		if !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("cancelled run reports cancellation", func(t *testing.T) {
		library, searcher := fakeServices()
		runner, _ := testRunner(t, RunnerOpts{Library: library, MusicBrainz: searcher})

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		err := runner.app().Run(cctx, []string{"geolist", "resolve", "-o", filepath.Join(t.TempDir(), "x.json")})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestSetup(t *testing.T) {
	ctx := context.Background()

	t.Run("creates config and cache database", func(t *testing.T) {
		dir := t.TempDir()
		t.Cleanup(xdg.Reload)
		t.Setenv("XDG_CACHE_HOME", filepath.Join(dir, "cache"))
		xdg.Reload()

		configPath := filepath.Join(dir, "config.toml")
		runner := NewRunner(RunnerOpts{Logger: shared.NewLogger(&bytes.Buffer{}), Output: &bytes.Buffer{}})

		if err := runner.app().Run(ctx, []string{"geolist", "setup", "-c", configPath}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		tu.AssertFileExists(t, configPath)
		tu.AssertFileExists(t, filepath.Join(dir, "cache", "geolist", "cache.db"))
	})

	t.Run("keeps an existing config", func(t *testing.T) {
		dir := t.TempDir()
		configPath := filepath.Join(dir, "config.toml")
		dbPath := filepath.Join(dir, "db", "cache.db")

		config := shared.DefaultConfig()
		config.Cache.Path = dbPath
		config.Resolver.Workers = 9
		if err := shared.SaveConfig(configPath, config); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Logger: shared.NewLogger(&bytes.Buffer{}), Output: output})
		if err := runner.app().Run(ctx, []string{"geolist", "setup", "-c", configPath}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		tu.AssertFileExists(t, dbPath)
		loaded, err := shared.LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to reload config: %v", err)
		}
		if loaded.Resolver.Workers != 9 {
			t.Errorf("expected existing config to be kept, got %d workers", loaded.Resolver.Workers)
		}
		if !strings.Contains(output.String(), dbPath) {
			t.Errorf("expected cache path in output, got %q", output.String())
		}
	})
}

func TestCacheCommands(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T) *repositories.MemoryCache {
		t.Helper()
		cache := repositories.NewMemoryCache()
		for _, name := range []string{"Björk", "Boards of Canada"} {
			fp := repositories.Fingerprint(repositories.KindArtistOrigin, name)
			if err := cache.Put(ctx, fp, repositories.KindArtistOrigin, name, []byte(`{"status":"not_found"}`)); err != nil {
				t.Fatalf("failed to seed cache: %v", err)
			}
		}
		return cache
	}

	t.Run("stats", func(t *testing.T) {
		runner, output := testRunner(t, RunnerOpts{Cache: seed(t)})

		if err := runner.app().Run(ctx, []string{"geolist", "cache", "stats"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		text := output.String()
		if !strings.Contains(text, "Cached lookups: 2") {
			t.Errorf("expected entry count, got %q", text)
		}
		if !strings.Contains(text, repositories.KindArtistOrigin) {
			t.Errorf("expected kind breakdown, got %q", text)
		}
	})

	t.Run("clear", func(t *testing.T) {
		cache := seed(t)
		runner, output := testRunner(t, RunnerOpts{Cache: cache})

		if err := runner.app().Run(ctx, []string{"geolist", "cache", "clear"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if cache.Len() != 0 {
			t.Errorf("expected empty cache, got %d entries", cache.Len())
		}
		if !strings.Contains(output.String(), "Removed 2 cached lookups") {
			t.Errorf("unexpected output %q", output.String())
		}
	})

	t.Run("clear replaces a corrupt cache file", func(t *testing.T) {
		dir := t.TempDir()
		configPath := filepath.Join(dir, "config.toml")
		dbPath := filepath.Join(dir, "cache.db")
		tu.MustWriteFile(t, dbPath, strings.Repeat("not a sqlite file ", 300))

		config := shared.DefaultConfig()
		config.Cache.Path = dbPath
		if err := shared.SaveConfig(configPath, config); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		runner := NewRunner(RunnerOpts{Logger: shared.NewLogger(&bytes.Buffer{}), Output: &bytes.Buffer{}})
		if err := runner.app().Run(ctx, []string{"geolist", "cache", "clear", "-c", configPath}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		db, err := shared.OpenCache(config.Cache)
		if err != nil {
			t.Fatalf("expected a usable cache file after clear, got %v", err)
		}
		db.Close()
	})

	t.Run("disabled cache", func(t *testing.T) {
		config := shared.DefaultConfig()
		config.Cache.Enabled = false
		runner := NewRunner(RunnerOpts{Config: config, Logger: shared.NewLogger(&bytes.Buffer{}), Output: &bytes.Buffer{}})

		err := runner.app().Run(ctx, []string{"geolist", "cache", "stats"})
		if !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}
