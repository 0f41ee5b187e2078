package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/moodsort/internal/shared"
	"github.com/desertthunder/moodsort/internal/tasks"
	"github.com/urfave/cli/v3"
)

// GatherRun extracts training features for every configured source.
// Tracks already in the store are skipped, so an interrupted gather resumes where it stopped.
func (r *Runner) GatherRun(ctx context.Context, cmd *cli.Command) error {
	cfg := r.config.Gather
	if len(cfg.Sources) == 0 {
		return fmt.Errorf("%w: no [[gather.sources]] configured in %s", shared.ErrMissingConfig, r.configPath)
	}

	catalog, err := r.requireCatalog()
	if err != nil {
		return err
	}

	store, err := r.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	gatherer, err := tasks.NewGatherer(catalog, r.extractor, store, r.logger, r.config.Classify.TrackDelay.Duration)
	if err != nil {
		return err
	}

	opts := tasks.GatherOptions{MaxPerLabel: cfg.MaxPerLabel, Seed: cfg.Seed}
	if cmd.IsSet("max-per-label") {
		opts.MaxPerLabel = cmd.Int("max-per-label")
	}
	if cmd.IsSet("seed") {
		opts.Seed = cmd.Int64("seed")
	}
	for _, src := range cfg.Sources {
		opts.Sources = append(opts.Sources, tasks.GatherSource{Label: src.Label, PlaylistID: src.PlaylistID})
	}

	r.logger.Info("gathering training features", "sources", len(opts.Sources), "known", store.Len(),
		"max_per_label", opts.MaxPerLabel, "seed", opts.Seed)

	progress := make(chan tasks.ProgressUpdate, 50)
	logged := make(chan struct{})
	go r.logProgress(progress, logged)

	var result *tasks.GatherResult
	err = r.withReauth(ctx, func() error {
		var runErr error
		result, runErr = gatherer.Run(ctx, opts, progress)
		return runErr
	})
	close(progress)
	<-logged

	if result != nil {
		r.writePlainHeader("Gather Summary")
		for _, sr := range result.Sources {
			if sr.Err != nil {
				r.writePlain("✗ %s: %v\n", sr.Label, sr.Err)
				continue
			}
			r.writePlain("%s: %d listed, %d sampled, %d known, %d new, %d failed\n",
				sr.Label, sr.Listed, sr.Sampled, sr.Known, sr.Appended, sr.Failed)
		}
		r.writePlain("Store: %d tracks in %s\n", store.Len(), store.Path())
		if result.Cancelled {
			r.writePlain("⚠ Interrupted; run again to resume\n")
		}
	}
	return err
}
