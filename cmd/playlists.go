package main

import (
	"context"

	"github.com/desertthunder/moodsort/internal/models"
	"github.com/desertthunder/moodsort/internal/tasks"
	"github.com/urfave/cli/v3"
)

// PlaylistsCreate creates a destination playlist for every model label that has none.
func (r *Runner) PlaylistsCreate(ctx context.Context, cmd *cli.Command) error {
	sess, err := r.openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	progress := make(chan tasks.ProgressUpdate, 50)
	logged := make(chan struct{})
	go r.logProgress(progress, logged)

	var created []models.Playlist
	err = r.withReauth(ctx, func() error {
		var createErr error
		created, createErr = sess.engine.EnsurePlaylists(ctx, progress)
		return createErr
	})
	close(progress)
	<-logged

	for _, p := range created {
		r.writePlain("✓ Created %s (ID: %s)\n", p.Name, p.ID)
	}
	if err != nil {
		return err
	}
	if len(created) == 0 {
		r.writePlain("Every label already has a playlist\n")
	}
	return nil
}
