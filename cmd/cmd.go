// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// -v belongs to --verbose.
func init() {
	cli.VersionFlag = &cli.BoolFlag{Name: "version", Usage: "print the version"}
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

func verboseFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		Usage:   "Enable debug logging",
	}
}

func resolveFlags() []cli.Flag {
	return []cli.Flag{
		configFlag(),
		verboseFlag(),
		&cli.BoolFlag{
			Name:    "no-cache",
			Aliases: []string{"n"},
			Usage:   "Ignore cached lookups (fresh results are still stored)",
		},
		&cli.BoolFlag{
			Name:  "clear-cache",
			Usage: "Delete all cached lookups before resolving",
		},
		&cli.BoolFlag{
			Name:  "retry-errors",
			Usage: "Query again for artists whose cached lookup failed",
		},
		&cli.StringFlag{
			Name:    "input",
			Aliases: []string{"i"},
			Usage:   "Re-resolve a previously written library file instead of fetching saved tracks",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output JSON file path",
			Value:   "library.json",
		},
		&cli.StringFlag{
			Name:  "csv",
			Usage: "Also write a CSV origin table to this path",
		},
		&cli.IntFlag{
			Name:    "workers",
			Aliases: []string{"w"},
			Usage:   "Concurrent artist lookups (defaults to resolver.workers)",
		},
		&cli.BoolFlag{
			Name:  "tui",
			Usage: "Show a live progress display; logs go to a file",
		},
	}
}

// resolveCommand resolves the origin of every artist in the saved library.
func resolveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "resolve",
		Usage:  "Resolve where each artist in your saved tracks comes from",
		Flags:  resolveFlags(),
		Action: r.Resolve,
	}
}

// setupCommand creates the config file and cache database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create config.toml and initialize the cache database",
		Flags:  []cli.Flag{configFlag(), verboseFlag()},
		Action: r.Setup,
	}
}

// cacheCommand inspects and clears the lookup cache.
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect or clear the lookup cache",
		Commands: []*cli.Command{
			{
				Name:   "stats",
				Usage:  "Show cached entry counts and ages",
				Flags:  []cli.Flag{configFlag(), verboseFlag()},
				Action: r.CacheStats,
			},
			{
				Name:   "clear",
				Usage:  "Delete all cached lookups",
				Flags:  []cli.Flag{configFlag(), verboseFlag()},
				Action: r.CacheClear,
			},
		},
	}
}
