package repositories

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/moodsort/internal/models"
	"github.com/desertthunder/moodsort/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func createRun(t *testing.T, db *sql.DB) *models.Run {
	t.Helper()
	run := &models.Run{PlaylistID: "src", PlaylistName: "Inbox", ApprovalMode: true}
	if err := NewRunRepository(db).Create(run); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}
	return run
}

func TestRunRepository(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		db := setupTestDB(t)
		run := createRun(t, db)

		if run.ID == "" {
			t.Error("run ID should be set after creation")
		}
		if run.Status != models.RunRunning {
			t.Errorf("expected status running, got %s", run.Status)
		}
	})

	t.Run("Create Requires Playlist", func(t *testing.T) {
		db := setupTestDB(t)
		if err := NewRunRepository(db).Create(&models.Run{}); err == nil {
			t.Error("expected validation error")
		}
	})

	t.Run("Get", func(t *testing.T) {
		db := setupTestDB(t)
		run := createRun(t, db)

		got, err := NewRunRepository(db).Get(run.ID)
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}
		if got.PlaylistName != "Inbox" || !got.ApprovalMode || got.AllowRepeats {
			t.Errorf("unexpected run %+v", got)
		}
		if got.FinishedAt != nil {
			t.Error("running run should have no finish time")
		}
	})

	t.Run("Get Missing", func(t *testing.T) {
		db := setupTestDB(t)
		if _, err := NewRunRepository(db).Get("nope"); !errors.Is(err, ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
	})

	t.Run("Finish", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewRunRepository(db)
		run := createRun(t, db)

		run.Status = models.RunCompleted
		run.Processed, run.Skipped, run.Failed, run.Assignments, run.Synced = 10, 2, 1, 9, 7
		if err := repo.Finish(run); err != nil {
			t.Fatalf("failed to finish run: %v", err)
		}

		got, _ := repo.Get(run.ID)
		if got.Status != models.RunCompleted || got.Processed != 10 || got.Synced != 7 {
			t.Errorf("unexpected run %+v", got)
		}
		if got.FinishedAt == nil {
			t.Error("finished run should have a finish time")
		}
	})

	t.Run("Finish Missing", func(t *testing.T) {
		db := setupTestDB(t)
		err := NewRunRepository(db).Finish(&models.Run{ID: "ghost", Status: models.RunFailed})
		if !errors.Is(err, ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewRunRepository(db)
		base := time.Now().UTC().Add(-time.Hour)
		for i, name := range []string{"old", "mid", "new"} {
			run := &models.Run{PlaylistID: name, StartedAt: base.Add(time.Duration(i) * time.Minute)}
			if err := repo.Create(run); err != nil {
				t.Fatalf("failed to create run: %v", err)
			}
		}

		runs, err := repo.List(2)
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(runs) != 2 || runs[0].PlaylistID != "new" || runs[1].PlaylistID != "mid" {
			t.Errorf("unexpected order %v", runs)
		}

		all, _ := repo.List(0)
		if len(all) != 3 {
			t.Errorf("expected 3 runs, got %d", len(all))
		}
	})
}

func newRecord(runID string, position int, label string) *models.AssignmentRecord {
	return &models.AssignmentRecord{
		AssignmentEvent: models.AssignmentEvent{
			RunID:      runID,
			Position:   position,
			TrackID:    "t1",
			Artist:     "Nujabes",
			Title:      "Feather",
			Label:      label,
			Confidence: 0.82,
			Features:   models.FeatureVector{"tempo": 92.5},
		},
	}
}

func TestAssignmentRepository(t *testing.T) {
	t.Run("Create And Get", func(t *testing.T) {
		db := setupTestDB(t)
		run := createRun(t, db)
		repo := NewAssignmentRepository(db)

		rec := newRecord(run.ID, 0, "lofi")
		if err := repo.Create(rec); err != nil {
			t.Fatalf("failed to create assignment: %v", err)
		}
		if rec.ID == "" || rec.Status != models.OutcomePending {
			t.Errorf("unexpected defaults %+v", rec)
		}

		got, err := repo.Get(rec.ID)
		if err != nil {
			t.Fatalf("failed to get assignment: %v", err)
		}
		if got.Label != "lofi" || got.Confidence != 0.82 || got.Features["tempo"] != 92.5 {
			t.Errorf("unexpected assignment %+v", got)
		}
	})

	t.Run("Create Validates", func(t *testing.T) {
		db := setupTestDB(t)
		run := createRun(t, db)
		repo := NewAssignmentRepository(db)

		tests := []struct {
			name   string
			mutate func(*models.AssignmentRecord)
		}{
			{name: "no label", mutate: func(r *models.AssignmentRecord) { r.Label = "" }},
			{name: "confidence", mutate: func(r *models.AssignmentRecord) { r.Confidence = 1.5 }},
			{name: "status", mutate: func(r *models.AssignmentRecord) { r.Status = "bogus" }},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rec := newRecord(run.ID, 0, "lofi")
				tt.mutate(rec)
				if err := repo.Create(rec); err == nil {
					t.Error("expected validation error")
				}
			})
		}
	})

	t.Run("Create Requires Run", func(t *testing.T) {
		db := setupTestDB(t)
		if err := NewAssignmentRepository(db).Create(newRecord("missing-run", 0, "lofi")); err == nil {
			t.Error("expected foreign key error")
		}
	})

	t.Run("UpdateStatus", func(t *testing.T) {
		db := setupTestDB(t)
		run := createRun(t, db)
		repo := NewAssignmentRepository(db)
		rec := newRecord(run.ID, 0, "lofi")
		repo.Create(rec)

		if err := repo.UpdateStatus(rec.ID, models.OutcomeSynced); err != nil {
			t.Fatalf("failed to update status: %v", err)
		}
		got, _ := repo.Get(rec.ID)
		if got.Status != models.OutcomeSynced {
			t.Errorf("expected synced, got %s", got.Status)
		}

		if err := repo.UpdateStatus("ghost", models.OutcomeSynced); !errors.Is(err, shared.ErrAssignmentNotFound) {
			t.Errorf("expected ErrAssignmentNotFound, got %v", err)
		}
		if err := repo.UpdateStatus(rec.ID, "bogus"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("ListByRun And ListPending", func(t *testing.T) {
		db := setupTestDB(t)
		run := createRun(t, db)
		repo := NewAssignmentRepository(db)

		labels := []string{"lofi", "ambient", "edm"}
		var ids []string
		for i, label := range labels {
			rec := newRecord(run.ID, i, label)
			if err := repo.Create(rec); err != nil {
				t.Fatalf("failed to create assignment: %v", err)
			}
			ids = append(ids, rec.ID)
		}
		repo.UpdateStatus(ids[1], models.OutcomeSynced)

		all, err := repo.ListByRun(run.ID)
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("expected 3 assignments, got %d", len(all))
		}
		for i, label := range labels {
			if all[i].Label != label {
				t.Errorf("position %d: expected %s, got %s", i, label, all[i].Label)
			}
		}

		pending, err := repo.ListPending()
		if err != nil {
			t.Fatalf("failed to list pending: %v", err)
		}
		if len(pending) != 2 || pending[0].Label != "lofi" || pending[1].Label != "edm" {
			t.Errorf("unexpected pending %v", pending)
		}
	})

	t.Run("Get Missing", func(t *testing.T) {
		db := setupTestDB(t)
		if _, err := NewAssignmentRepository(db).Get("nope"); !errors.Is(err, shared.ErrAssignmentNotFound) {
			t.Errorf("expected ErrAssignmentNotFound, got %v", err)
		}
	})
}
