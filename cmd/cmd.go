// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand handles setup operations for the configuration and the run ledger.
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
				Usage:  "Initialize the run ledger and apply migrations",
				Action: r.SetupDatabase,
			},
		},
	}
}

// spotifyCommand handles Spotify operations
func spotifyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "spotify",
		Aliases: []string{"spot"},
		Usage:   "Spotify account operations",
		Commands: []*cli.Command{
			{
				Name:   "auth",
				Usage:  "Authenticate with Spotify using OAuth2",
				Action: r.SpotifyAuth,
			},
			{
				Name:  "playlists",
				Usage: "List Spotify playlists",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of playlists to print",
						Value: 50,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
					},
				},
				Action: r.SpotifyPlaylists,
			},
		},
	}
}

// classifyCommand handles classification runs and their review.
func classifyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "classify",
		Usage: "Classify playlist tracks and sync them into per-label playlists",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Classify every track of a playlist",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "source",
						Aliases:  []string{"s"},
						Usage:    "Source playlist name or ID",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "approve",
						Usage: "Record assignments for review instead of syncing them",
					},
					allowRepeatsFlag(),
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print each assignment as a JSON line",
					},
				},
				Action: r.ClassifyRun,
			},
			{
				Name:      "approve",
				Usage:     "Sync one pending assignment",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags:     []cli.Flag{allowRepeatsFlag()},
				Action:    r.ClassifyApprove,
			},
			{
				Name:      "reject",
				Usage:     "Reject one pending assignment",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Action:    r.ClassifyReject,
			},
			{
				Name:  "pending",
				Usage: "List assignments awaiting approval",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
				},
				Action: r.ClassifyPending,
			},
			{
				Name:    "review",
				Aliases: []string{"ui"},
				Usage:   "Review pending assignments interactively",
				Flags:   []cli.Flag{allowRepeatsFlag()},
				Action:  r.ClassifyReview,
			},
			{
				Name:  "runs",
				Usage: "List recent runs",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Usage: "Maximum number of runs", Value: 20},
				},
				Action: r.ClassifyRuns,
			},
			{
				Name:      "show",
				Usage:     "Show one run and its assignments",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Action:    r.ClassifyShow,
			},
			{
				Name:      "export",
				Usage:     "Export run reports (all runs when no IDs are given)",
				ArgsUsage: "[run-id...]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format: json, csv, markdown, txt",
						Value:   "json",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output directory",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent export workers",
						Value: 4,
					},
				},
				Action: r.ClassifyExport,
			},
		},
	}
}

func allowRepeatsFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "allow-repeats",
		Usage: "Add tracks even when the destination already contains them",
	}
}

// gatherCommand builds the training corpus.
func gatherCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "gather",
		Usage: "Collect training features from labelled playlists",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Extract features for every configured source, resuming where the store left off",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "max-per-label",
						Usage: "Cap on sampled tracks per source (overrides config)",
					},
					&cli.Int64Flag{
						Name:  "seed",
						Usage: "Sampling seed (overrides config)",
					},
				},
				Action: r.GatherRun,
			},
		},
	}
}

// storeCommand inspects and maintains the feature store.
func storeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "store",
		Usage: "Feature store maintenance",
		Commands: []*cli.Command{
			{
				Name:  "stats",
				Usage: "Show row and label counts",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
				},
				Action: r.StoreStats,
			},
			{
				Name:  "clean",
				Usage: "Copy the store keeping only rows with ASCII artist and track names",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "src"},
					&cli.StringArg{Name: "dst"},
				},
				Action: r.StoreClean,
			},
		},
	}
}

// playlistsCommand manages destination playlists.
func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "playlists",
		Usage: "Destination playlist management",
		Commands: []*cli.Command{
			{
				Name:   "create",
				Usage:  "Create a playlist for every model label that has none",
				Action: r.PlaylistsCreate,
			},
		},
	}
}
