package tasks

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/desertthunder/moodsort/internal/models"
	"github.com/desertthunder/moodsort/internal/shared"
	tu "github.com/desertthunder/moodsort/internal/testing"
)

func fakeLoader(reports map[string]*models.RunReport) ReportLoader {
	return func(id string) (*models.RunReport, error) {
		r, ok := reports[id]
		if !ok {
			return nil, errors.New("run not found")
		}
		return r, nil
	}
}

func sampleReport(id string) *models.RunReport {
	now := time.Now().UTC()
	return &models.RunReport{
		Run: models.Run{ID: id, PlaylistID: "src", PlaylistName: "Inbox", Status: models.RunCompleted, StartedAt: now},
		Assignments: []models.AssignmentRecord{
			{
				AssignmentEvent: models.AssignmentEvent{
					ID: id + "-a", RunID: id, TrackID: "t1", Artist: "Nujabes", Title: "Feather", Label: "lofi", Confidence: 0.82,
				},
				Status: models.OutcomeSynced,
			},
		},
	}
}

func TestExportRuns(t *testing.T) {
	reports := map[string]*models.RunReport{"run-1": sampleReport("run-1"), "run-2": sampleReport("run-2")}

	tests := []struct {
		format string
		files  int
	}{
		{format: "json", files: 1},
		{format: "csv", files: 2},
		{format: "markdown", files: 1},
		{format: "txt", files: 1},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "out")
			progress := make(chan ProgressUpdate, 10)

			result, err := ExportRuns(context.Background(), progress, fakeLoader(reports), []string{"run-1", "run-2"},
				ExportOpts{Format: tt.format, OutputDir: dir, NumWorkers: 4})
			if err != nil {
				t.Fatalf("ExportRuns() error = %v", err)
			}
			if result.Successful != 2 || result.Failed != 0 {
				t.Fatalf("unexpected result %+v", result)
			}
			for _, r := range result.Results {
				if len(r.Files) != tt.files {
					t.Errorf("%s: expected %d files, got %v", r.RunID, tt.files, r.Files)
				}
				for _, f := range r.Files {
					tu.AssertFileExists(t, f)
				}
			}
			if len(progress) != 2 {
				t.Errorf("expected 2 progress updates, got %d", len(progress))
			}
		})
	}

	t.Run("missing run is recorded", func(t *testing.T) {
		result, err := ExportRuns(context.Background(), nil, fakeLoader(reports), []string{"run-1", "nope"},
			ExportOpts{OutputDir: t.TempDir()})
		if err != nil {
			t.Fatalf("ExportRuns() error = %v", err)
		}
		if result.Successful != 1 || result.Failed != 1 {
			t.Errorf("unexpected result %+v", result)
		}
	})

	t.Run("nil loader", func(t *testing.T) {
		if _, err := ExportRuns(context.Background(), nil, nil, nil, ExportOpts{}); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})
}
