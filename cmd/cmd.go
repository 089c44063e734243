// submodule cmd contains command definitions
package main

import (
	"fmt"
	"strings"

	"github.com/desertthunder/moodmix/internal/formatter"
	"github.com/urfave/cli/v3"
)

func topFlag() cli.Flag {
	return &cli.IntFlag{
		Name:    "top",
		Aliases: []string{"n"},
		Usage:   "Number of tracks to return (default from search.default_top_n)",
	}
}

// recommendCommand runs the full mood to playlist lookup
func recommendCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "recommend",
		Aliases:   []string{"rec", "r"},
		Usage:     "Find the best playlist for a mood and print its top tracks",
		ArgsUsage: "<mood keywords...>",
		Flags: []cli.Flag{
			topFlag(),
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   fmt.Sprintf("Output format (%s)", strings.Join(formatter.Formats, ", ")),
				Value:   formatter.FormatText,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the result to a file instead of stdout",
			},
			&cli.BoolFlag{
				Name:  "open",
				Usage: "Open the playlist in the browser",
			},
		},
		Action: r.Recommend,
	}
}

// searchCommand shows the ranked playlist candidates without fetching tracks
func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "List ranked playlist candidates for a mood",
		ArgsUsage: "<mood keywords...>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
				Value: true,
			},
		},
		Action: r.Search,
	}
}

// batchCommand recommends for many moods concurrently
func batchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "batch",
		Usage:     "Recommend playlists for several moods concurrently",
		ArgsUsage: "<mood> [mood...]",
		Flags: []cli.Flag{
			topFlag(),
			&cli.StringFlag{
				Name:  "file",
				Usage: "Read moods from a file, one per line",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Number of concurrent workers (max 10)",
				Value: 4,
			},
			&cli.FloatFlag{
				Name:  "rate",
				Usage: "Recommendations started per second",
				Value: 5,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Batch,
	}
}

// tokenCommand checks the configured credentials
func tokenCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "token",
		Usage:  "Exchange the refresh token and report when the access token expires",
		Action: r.Token,
	}
}

// serveCommand hosts the recommender over HTTP
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve recommendations over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Interface to listen on (default from server.host)",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on (default from server.port)",
			},
		},
		Action: r.Serve,
	}
}

// tuiCommand returns the top-level TUI command.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive mood prompt",
		Flags: []cli.Flag{
			topFlag(),
			&cli.StringFlag{
				Name:  "mood",
				Usage: "Pre-fill the mood prompt",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where to write logs while the TUI is running",
				Value: "./tmp/moodmix-tui.log",
			},
		},
		Action: r.TUI,
	}
}

// cacheCommand manages the opt-in playlist track cache
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect and prune the playlist track cache",
		Commands: []*cli.Command{
			{
				Name:  "stats",
				Usage: "Show cached playlist and track counts",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.CacheStats,
			},
			{
				Name:   "purge",
				Usage:  "Remove expired entries",
				Action: r.CachePurge,
			},
			{
				Name:  "clear",
				Usage: "Remove every entry, or one playlist with --id",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "id",
						Usage: "Only drop this playlist",
					},
				},
				Action: r.CacheClear,
			},
		},
	}
}

// setupCommand handles setup operations for configuration and the cache database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write an example config.toml",
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Create the track cache database and run migrations",
				Action: r.SetupDatabase,
			},
		},
	}
}
