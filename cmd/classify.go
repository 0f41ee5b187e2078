package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/moodsort/internal/formatter"
	"github.com/desertthunder/moodsort/internal/models"
	"github.com/desertthunder/moodsort/internal/repositories"
	"github.com/desertthunder/moodsort/internal/shared"
	"github.com/desertthunder/moodsort/internal/tasks"
	"github.com/urfave/cli/v3"
)

// ClassifyRun classifies the source playlist, printing every assignment as it is reported.
func (r *Runner) ClassifyRun(ctx context.Context, cmd *cli.Command) error {
	source := cmd.String("source")
	opts := tasks.RunOptions{
		Source:       source,
		ApprovalMode: cmd.Bool("approve"),
		AllowRepeats: cmd.Bool("allow-repeats") || r.config.Classify.AllowRepeats,
	}
	useJSON := cmd.Bool("json")

	sess, err := r.openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	events := make(chan models.AssignmentEvent, 16)
	printed := make(chan struct{})
	go r.printAssignments(events, useJSON, printed)
	observer := tasks.NewChannelObserver(events, r.config.Classify.ReportTimeout.Duration, r.logger)

	progress := make(chan tasks.ProgressUpdate, 50)
	logged := make(chan struct{})
	go r.logProgress(progress, logged)

	var result *tasks.RunResult
	err = r.withReauth(ctx, func() error {
		var runErr error
		result, runErr = sess.engine.Run(ctx, opts, observer, progress)
		return runErr
	})
	close(events)
	close(progress)
	<-printed
	<-logged

	if err != nil {
		return err
	}
	if useJSON {
		return nil
	}

	r.writePlain("\n")
	r.writePlainHeader("Classification Complete!")
	r.writePlain("Run: %s\n", result.RunID)
	r.writePlain("Source: %s (%d tracks)\n", result.Source.Name, result.TotalTracks)
	r.writePlain("Processed: %d, skipped: %d, failed: %d\n", result.Processed, result.Skipped, result.Failed)
	r.writePlain("Assignments: %d\n", result.Assignments)
	if opts.ApprovalMode {
		r.writePlain("Pending review: %d (run 'moodsort classify review')\n", result.Assignments)
	} else {
		r.writePlain("Synced: %d, already present: %d, unroutable: %d, failed: %d\n",
			result.Synced, result.AlreadyPresent, result.Unroutable, result.SyncFailed)
	}
	if dropped := observer.Dropped(); dropped > 0 {
		r.writePlain("⚠ %d assignment reports were not printed\n", dropped)
	}
	if result.Cancelled {
		r.writePlain("⚠ Run cancelled\n")
	}
	return nil
}

func (r *Runner) printAssignments(events <-chan models.AssignmentEvent, useJSON bool, done chan<- struct{}) {
	defer close(done)
	for ev := range events {
		if useJSON {
			if err := r.writeJSON(ev, false); err != nil {
				r.logger.Warn("failed to print assignment", "error", err)
			}
			continue
		}
		r.writePlain("%d. %s - %s → %s (%s)\n", ev.Position+1, ev.Artist, ev.Title, ev.Label, shared.FormatConfidence(ev.Confidence))
	}
}

// ClassifyApprove syncs one pending (or previously failed) assignment.
func (r *Runner) ClassifyApprove(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: assignment ID", shared.ErrMissingArgument)
	}

	sess, err := r.openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	rec, err := sess.assignments.Get(id)
	if err != nil {
		return err
	}
	if rec.Status != models.OutcomePending && rec.Status != models.OutcomeFailed {
		return fmt.Errorf("%w: assignment %s is already %s", shared.ErrInvalidArgument, id, rec.Status)
	}

	allowRepeats := cmd.Bool("allow-repeats") || r.config.Classify.AllowRepeats
	var outcome models.SyncOutcome
	err = r.withReauth(ctx, func() error {
		var approveErr error
		outcome, approveErr = sess.engine.Approve(ctx, rec.AssignmentEvent, allowRepeats)
		return approveErr
	})
	if err != nil {
		return err
	}

	return r.writePlain("✓ %s - %s → %s: %s\n", rec.Artist, rec.Title, rec.Label, outcome)
}

// withLedger opens the ledger for commands that do not touch the catalog or the store.
func (r *Runner) withLedger(fn func(runs *repositories.RunRepository, assignments *repositories.AssignmentRepository) error) error {
	db, err := r.openLedger()
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(repositories.NewRunRepository(db), repositories.NewAssignmentRepository(db))
}

// ClassifyReject marks one pending assignment as rejected.
func (r *Runner) ClassifyReject(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: assignment ID", shared.ErrMissingArgument)
	}

	return r.withLedger(func(_ *repositories.RunRepository, assignments *repositories.AssignmentRepository) error {
		if err := assignments.UpdateStatus(id, models.OutcomeRejected); err != nil {
			return err
		}
		return r.writePlain("✓ Rejected %s\n", id)
	})
}

// ClassifyPending lists the assignments awaiting approval, oldest first.
func (r *Runner) ClassifyPending(ctx context.Context, cmd *cli.Command) error {
	return r.withLedger(func(_ *repositories.RunRepository, assignments *repositories.AssignmentRepository) error {
		pending, err := assignments.ListPending()
		if err != nil {
			return err
		}
		if cmd.Bool("json") {
			return r.writeJSON(pending, true)
		}

		r.writePlain("%d pending assignments\n\n", len(pending))
		for _, rec := range pending {
			r.writePlain("%s  %s - %s → %s (%s)\n",
				rec.ID, rec.Artist, rec.Title, rec.Label, shared.FormatConfidence(rec.Confidence))
		}
		return nil
	})
}

// ClassifyRuns lists recent runs.
func (r *Runner) ClassifyRuns(ctx context.Context, cmd *cli.Command) error {
	return r.withLedger(func(runs *repositories.RunRepository, _ *repositories.AssignmentRepository) error {
		list, err := runs.List(cmd.Int("limit"))
		if err != nil {
			return err
		}
		for _, run := range list {
			r.writePlain("%s  %s  %-9s  %s  %d assignments, %d synced\n",
				run.ID, run.StartedAt.Local().Format("2006-01-02 15:04"), run.Status, run.PlaylistName,
				run.Assignments, run.Synced)
		}
		return nil
	})
}

// ClassifyShow prints the summary of one run.
func (r *Runner) ClassifyShow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: run ID", shared.ErrMissingArgument)
	}

	return r.withLedger(func(runs *repositories.RunRepository, _ *repositories.AssignmentRepository) error {
		report, err := runs.Report(id)
		if err != nil {
			return err
		}
		return formatter.WriteSummary(r.output, report)
	})
}

// ClassifyExport writes reports for the given runs, or for every run when none are named.
func (r *Runner) ClassifyExport(ctx context.Context, cmd *cli.Command) error {
	ids := cmd.Args().Slice()

	return r.withLedger(func(runs *repositories.RunRepository, _ *repositories.AssignmentRepository) error {
		if len(ids) == 0 {
			all, err := runs.List(0)
			if err != nil {
				return err
			}
			for _, run := range all {
				ids = append(ids, run.ID)
			}
		}
		if len(ids) == 0 {
			return r.writePlain("No runs to export\n")
		}

		progress := make(chan tasks.ProgressUpdate, len(ids))
		logged := make(chan struct{})
		go r.logProgress(progress, logged)

		result, err := tasks.ExportRuns(ctx, progress, runs.Report, ids, tasks.ExportOpts{
			Format:     cmd.String("format"),
			OutputDir:  cmd.String("output"),
			NumWorkers: cmd.Int("workers"),
		})
		close(progress)
		<-logged
		if err != nil {
			return err
		}

		r.writePlain("✓ Exported %d/%d runs to %s\n", result.Successful, result.Total, result.OutputDirectory)
		for _, res := range result.Results {
			if !res.Success {
				r.writePlain("  ✗ %s: %v\n", res.RunID, res.Error)
			}
		}
		return nil
	})
}
