package tasks

import (
	"fmt"

	"github.com/desertthunder/moodsort/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	LoadModel Phase = iota
	FetchPlaylists
	FetchTracks
	Classify
	Sync
	CreatePlaylist
	Gather
	ExportReports
)

func (p Phase) String() string {
	switch p {
	case LoadModel:
		return "load_model"
	case FetchPlaylists:
		return "fetch_playlists"
	case FetchTracks:
		return "fetch_tracks"
	case Classify:
		return "classify"
	case Sync:
		return "sync"
	case CreatePlaylist:
		return "create_playlist"
	case Gather:
		return "gather"
	case ExportReports:
		return "export_runs"
	default:
		return ""
	}
}

func loadModelUpdate(labels []string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   LoadModel,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Model ready (%d labels)", len(labels)),
		Data:    labels,
	}
}

func fetchPlaylistsUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPlaylists,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found %d playlists", count),
	}
}

func fetchTracksUpdate(pl models.Playlist, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchTracks,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetched %s (%d tracks)", pl.Name, total),
		Data:    pl,
	}
}

func classifyUpdate(step, total int, tr models.Track, cached bool) ProgressUpdate {
	source := "extracting"
	if cached {
		source = "cached"
	}
	return ProgressUpdate{
		Phase:   Classify,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s - %s (%s)", step, total, tr.Artist, tr.Title, source),
		Data:    tr,
	}
}

func syncUpdate(step, total int, ev models.AssignmentEvent, outcome models.SyncOutcome) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Sync,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s → %s: %s", step, total, ev.Title, ev.Label, outcome),
		Data:    outcome,
	}
}

func createPlaylistUpdate(step, total int, pl *models.Playlist) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Playlist created: %s (ID: %s)", pl.Name, pl.ID),
		Data:    pl,
	}
}

func gatherUpdate(step, total int, label string, tr models.Track) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Gather,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%s %d/%d] %s - %s", label, step, total, tr.Artist, tr.Title),
		Data:    tr,
	}
}

func gatherSourceFailedUpdate(label string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Gather,
		Message: fmt.Sprintf("✗ %s: %v", label, err),
	}
}

func exportCompletedUpdate(step, total int, runID string, filesCount int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportReports,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d files)", step, total, runID, filesCount),
	}
}

func exportFailedUpdate(step, total int, runID string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportReports,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, runID, err),
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
