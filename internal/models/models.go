package models

import (
	"fmt"
	"slices"
	"time"
)

// Playlist represents a playlist owned by or visible to the current user.
type Playlist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	TrackCount  int    `json:"track_count"`
	Public      bool   `json:"public"`
}

// Track represents a catalog track. Artist is the first credited artist.
type Track struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Artist string `json:"artist"`
}

// FeatureVector maps a feature name to its value.
type FeatureVector map[string]float64

// Clone returns a copy that can be mutated without affecting v.
func (v FeatureVector) Clone() FeatureVector {
	if v == nil {
		return nil
	}
	out := make(FeatureVector, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// FeatureSchema is the ordered list of feature columns written to the feature store.
type FeatureSchema struct {
	Version string
	Names   []string
}

// baseFeatureNames are the rhythmic, dynamic and timbral features computed from the first minute of audio.
func baseFeatureNames() []string {
	names := []string{
		"tempo",
		"rms_mean", "rms_std",
		"spectral_centroid_mean", "spectral_centroid_std",
		"spectral_bandwidth_mean", "spectral_bandwidth_std",
		"spectral_rolloff_mean", "spectral_rolloff_std",
		"zero_crossing_rate_mean", "zero_crossing_rate_std",
	}
	for i := 1; i <= 20; i++ {
		names = append(names, fmt.Sprintf("mfcc_%d_mean", i), fmt.Sprintf("mfcc_%d_std", i))
	}
	return names
}

// NewFeatureSchema builds the schema from the base audio features followed by the sound-class probabilities.
// Duplicate sound classes are ignored.
func NewFeatureSchema(version string, soundClasses []string) FeatureSchema {
	names := baseFeatureNames()
	for _, class := range soundClasses {
		if class == "" || slices.Contains(names, class) {
			continue
		}
		names = append(names, class)
	}
	return FeatureSchema{Version: version, Names: names}
}

// FeatureRecord is one feature store row. Label is the label the vector was recorded under.
type FeatureRecord struct {
	Artist   string
	Title    string
	Label    string
	Features FeatureVector
}

// Probability is one (label, probability) pair of a classifier distribution.
type Probability struct {
	Label string  `json:"label"`
	Value float64 `json:"probability"`
}

// Assignment routes a track to the playlist named Label. Confidence is within [0, 1].
type Assignment struct {
	Label      string
	Confidence float64
}

// AssignmentEvent is reported once for every assignment a run produces.
type AssignmentEvent struct {
	ID         string        `json:"id"`
	RunID      string        `json:"run_id"`
	Position   int           `json:"position"`
	TrackID    string        `json:"track_id"`
	Artist     string        `json:"artist"`
	Title      string        `json:"title"`
	Label      string        `json:"label"`
	Confidence float64       `json:"confidence"`
	Features   FeatureVector `json:"features"`
}

// SyncOutcome describes what happened to an assignment.
type SyncOutcome string

const (
	OutcomePending        SyncOutcome = "pending"
	OutcomeSynced         SyncOutcome = "synced"
	OutcomeAlreadyPresent SyncOutcome = "already_present"
	OutcomeUnroutable     SyncOutcome = "unroutable"
	OutcomeRejected       SyncOutcome = "rejected"
	OutcomeFailed         SyncOutcome = "failed"
)

// Valid reports whether o is a known outcome.
func (o SyncOutcome) Valid() bool {
	switch o {
	case OutcomePending, OutcomeSynced, OutcomeAlreadyPresent, OutcomeUnroutable, OutcomeRejected, OutcomeFailed:
		return true
	}
	return false
}

// RunStatus is the lifecycle state of a [Run].
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunCancelled RunStatus = "cancelled"
	RunFailed    RunStatus = "failed"
)

// Run is the ledger entry of one classification run.
type Run struct {
	ID           string
	PlaylistID   string
	PlaylistName string
	ApprovalMode bool
	AllowRepeats bool
	Status       RunStatus
	Processed    int
	Skipped      int
	Failed       int
	Assignments  int
	Synced       int
	Error        string
	StartedAt    time.Time
	FinishedAt   *time.Time
}

// AssignmentRecord is the ledger entry of one reported assignment.
type AssignmentRecord struct {
	AssignmentEvent
	Status    SyncOutcome
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks the fields the ledger requires.
func (r *AssignmentRecord) Validate() error {
	if r.ID == "" || r.RunID == "" {
		return fmt.Errorf("assignment requires id and run id")
	}
	if r.Label == "" {
		return fmt.Errorf("assignment requires a label")
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence %v outside [0, 1]", r.Confidence)
	}
	if !r.Status.Valid() {
		return fmt.Errorf("unknown status %q", r.Status)
	}
	return nil
}

// RunReport is a run together with every assignment it reported.
type RunReport struct {
	Run         Run
	Assignments []AssignmentRecord
}

// CountByStatus tallies the report's assignments by sync outcome.
func (r *RunReport) CountByStatus() map[SyncOutcome]int {
	counts := make(map[SyncOutcome]int)
	for _, a := range r.Assignments {
		counts[a.Status]++
	}
	return counts
}
