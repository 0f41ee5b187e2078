package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/moodsort/internal/models"
	"github.com/desertthunder/moodsort/internal/shared"
)

// ErrRunNotFound is returned when a run ID does not exist.
var ErrRunNotFound = errors.New("run not found")

// RunRepository persists [models.Run] rows.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a run. An empty ID is replaced with a generated one.
func (r *RunRepository) Create(run *models.Run) error {
	if run.ID == "" {
		run.ID = shared.GenerateID()
	}
	if run.PlaylistID == "" {
		return fmt.Errorf("validation failed: run requires a playlist id")
	}
	if run.Status == "" {
		run.Status = models.RunRunning
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO runs (
			id, playlist_id, playlist_name, approval_mode, allow_repeats, status,
			processed, skipped, failed, assignments, synced, error, started_at, finished_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		run.ID,
		run.PlaylistID,
		run.PlaylistName,
		boolToInt(run.ApprovalMode),
		boolToInt(run.AllowRepeats),
		run.Status,
		run.Processed,
		run.Skipped,
		run.Failed,
		run.Assignments,
		run.Synced,
		run.Error,
		run.StartedAt,
		run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// Finish stores the final counters and status of a run.
func (r *RunRepository) Finish(run *models.Run) error {
	if run.FinishedAt == nil {
		now := time.Now().UTC()
		run.FinishedAt = &now
	}

	query := `
		UPDATE runs
		SET status = ?, processed = ?, skipped = ?, failed = ?, assignments = ?,
			synced = ?, error = ?, finished_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query,
		run.Status,
		run.Processed,
		run.Skipped,
		run.Failed,
		run.Assignments,
		run.Synced,
		run.Error,
		run.FinishedAt,
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	return expectOne(result, ErrRunNotFound, run.ID)
}

const runColumns = `
	id, playlist_id, playlist_name, approval_mode, allow_repeats, status,
	processed, skipped, failed, assignments, synced, error, started_at, finished_at
`

// Get retrieves a run by ID.
func (r *RunRepository) Get(id string) (*models.Run, error) {
	row := r.db.QueryRow("SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	run, err := r.scan(row)
	if isNoRows(err) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// List returns the most recent runs first. A non-positive limit returns every run.
func (r *RunRepository) List(limit int) ([]*models.Run, error) {
	query := "SELECT " + runColumns + " FROM runs ORDER BY started_at DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}

func (r *RunRepository) scan(row scanner) (*models.Run, error) {
	var (
		run          models.Run
		approvalMode int
		allowRepeats int
		status       string
		finishedAt   sql.NullTime
	)

	err := row.Scan(
		&run.ID, &run.PlaylistID, &run.PlaylistName, &approvalMode, &allowRepeats, &status,
		&run.Processed, &run.Skipped, &run.Failed, &run.Assignments, &run.Synced, &run.Error,
		&run.StartedAt, &finishedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run.ApprovalMode = approvalMode != 0
	run.AllowRepeats = allowRepeats != 0
	run.Status = models.RunStatus(status)
	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}
	return &run, nil
}

// Report loads a run with its assignments in report order.
func (r *RunRepository) Report(id string) (*models.RunReport, error) {
	run, err := r.Get(id)
	if err != nil {
		return nil, err
	}

	records, err := NewAssignmentRepository(r.db).ListByRun(id)
	if err != nil {
		return nil, err
	}

	report := &models.RunReport{Run: *run}
	for _, rec := range records {
		report.Assignments = append(report.Assignments, *rec)
	}
	return report, nil
}
