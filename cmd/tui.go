package main

import (
	"context"
	"fmt"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/moodsort/internal/shared"
	"github.com/desertthunder/moodsort/internal/ui"
	"github.com/urfave/cli/v3"
)

// ClassifyReview launches the interactive approval review.
func (r *Runner) ClassifyReview(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(filepath.Join("tmp", "moodsort-review.log"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	shared.SetLogLevel(fileLogger, r.config.Log.Level)
	r.logger = fileLogger

	sess, err := r.openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	allowRepeats := cmd.Bool("allow-repeats") || r.config.Classify.AllowRepeats
	model := ui.NewModel(ctx, sess.engine, sess.assignments, allowRepeats)
	if _, err := tea.NewProgram(model, tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	if model.Err() != nil {
		return model.Err()
	}

	s := model.Summary()
	return r.writePlain("Reviewed %d: %d synced, %d already present, %d unroutable, %d rejected, %d failed\n",
		s.Reviewed(), s.Synced, s.AlreadyPresent, s.Unroutable, s.Rejected, s.Failed)
}
