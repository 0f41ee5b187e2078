package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/moodsort/internal/features"
	"github.com/desertthunder/moodsort/internal/shared"
	"github.com/urfave/cli/v3"
)

// StoreStats prints row and label counts of the feature store.
func (r *Runner) StoreStats(ctx context.Context, cmd *cli.Command) error {
	store, err := r.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := store.Stats()
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(stats, true)
	}

	r.writePlain("Store: %s\n", store.Path())
	r.writePlain("Rows: %d (%d distinct tracks)\n", stats.Rows, stats.Keys)
	r.writePlain("Columns: %d\n\n", stats.Columns)
	for _, lc := range stats.Labels {
		r.writePlain("  %-24s %d\n", lc.Label, lc.Rows)
	}
	return nil
}

// StoreClean writes a copy of a store without rows whose artist or track contain non-ASCII characters.
func (r *Runner) StoreClean(ctx context.Context, cmd *cli.Command) error {
	src := cmd.StringArg("src")
	dst := cmd.StringArg("dst")
	if src == "" || dst == "" {
		return fmt.Errorf("%w: usage: moodsort store clean <src> <dst>", shared.ErrMissingArgument)
	}
	if src == dst {
		return fmt.Errorf("%w: destination must differ from source", shared.ErrInvalidArgument)
	}

	result, err := features.CleanASCII(src, dst)
	if err != nil {
		return err
	}

	r.logger.Info("cleaned store", "src", src, "dst", dst, "kept", result.Kept, "removed", result.Removed)
	return r.writePlain("✓ Wrote %s: kept %d rows, removed %d\n", dst, result.Kept, result.Removed)
}
