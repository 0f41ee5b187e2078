package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/desertthunder/moodsort/internal/models"
	"github.com/desertthunder/moodsort/internal/shared"
)

// AssignmentRepository persists [models.AssignmentRecord] rows.
type AssignmentRepository struct {
	db *sql.DB
}

// NewAssignmentRepository creates a new AssignmentRepository with the given database connection
func NewAssignmentRepository(db *sql.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// Create inserts a reported assignment. An empty ID is replaced with a generated one.
func (r *AssignmentRepository) Create(rec *models.AssignmentRecord) error {
	if rec.ID == "" {
		rec.ID = shared.GenerateID()
	}
	if rec.Status == "" {
		rec.Status = models.OutcomePending
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	if err := rec.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	features, err := json.Marshal(rec.Features)
	if err != nil {
		return fmt.Errorf("failed to encode features: %w", err)
	}

	query := `
		INSERT INTO assignments (
			id, run_id, position, track_id, artist, title, label, confidence,
			features, status, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		rec.ID,
		rec.RunID,
		rec.Position,
		rec.TrackID,
		rec.Artist,
		rec.Title,
		rec.Label,
		rec.Confidence,
		string(features),
		rec.Status,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert assignment: %w", err)
	}
	return nil
}

// UpdateStatus records the sync outcome of an assignment.
func (r *AssignmentRepository) UpdateStatus(id string, status models.SyncOutcome) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", shared.ErrInvalidArgument, status)
	}

	result, err := r.db.Exec(
		"UPDATE assignments SET status = ?, updated_at = ? WHERE id = ?",
		status, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update assignment: %w", err)
	}
	return expectOne(result, shared.ErrAssignmentNotFound, id)
}

const assignmentColumns = `
	id, run_id, position, track_id, artist, title, label, confidence,
	features, status, created_at, updated_at
`

// Get retrieves an assignment by ID.
func (r *AssignmentRepository) Get(id string) (*models.AssignmentRecord, error) {
	row := r.db.QueryRow("SELECT "+assignmentColumns+" FROM assignments WHERE id = ?", id)
	rec, err := r.scan(row)
	if isNoRows(err) {
		return nil, fmt.Errorf("%w: %s", shared.ErrAssignmentNotFound, id)
	}
	return rec, err
}

// ListByRun returns the assignments of a run in report order.
func (r *AssignmentRepository) ListByRun(runID string) ([]*models.AssignmentRecord, error) {
	return r.query(
		"SELECT "+assignmentColumns+" FROM assignments WHERE run_id = ? ORDER BY position, created_at, rowid",
		runID,
	)
}

// ListPending returns every assignment awaiting approval, oldest run first, in report order.
func (r *AssignmentRepository) ListPending() ([]*models.AssignmentRecord, error) {
	return r.query(
		"SELECT "+assignmentColumns+" FROM assignments WHERE status = ? ORDER BY created_at, position, rowid",
		models.OutcomePending,
	)
}

func (r *AssignmentRepository) query(query string, args ...any) ([]*models.AssignmentRecord, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()

	var out []*models.AssignmentRecord
	for rows.Next() {
		rec, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

func (r *AssignmentRepository) scan(row scanner) (*models.AssignmentRecord, error) {
	var (
		rec      models.AssignmentRecord
		features string
		status   string
	)

	err := row.Scan(
		&rec.ID, &rec.RunID, &rec.Position, &rec.TrackID, &rec.Artist, &rec.Title, &rec.Label,
		&rec.Confidence, &features, &status, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan assignment: %w", err)
	}

	if features != "" && features != "null" {
		if err := json.Unmarshal([]byte(features), &rec.Features); err != nil {
			return nil, fmt.Errorf("failed to decode features: %w", err)
		}
	}
	rec.Status = models.SyncOutcome(status)
	return &rec, nil
}
