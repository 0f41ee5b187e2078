// package tasks implements the classification and gathering pipelines.
//
// The core abstraction is ClassifyEngine, which classifies the tracks of a playlist and syncs them into
// per-label playlists. Operations emit progress updates via channels for non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/moodsort/internal/features"
	"github.com/desertthunder/moodsort/internal/models"
	"github.com/desertthunder/moodsort/internal/policy"
	"github.com/desertthunder/moodsort/internal/services"
	"github.com/desertthunder/moodsort/internal/shared"
	"golang.org/x/time/rate"
)

// DefaultTrackDelay spaces consecutive tracks to stay under catalog rate limits.
const DefaultTrackDelay = 100 * time.Millisecond

// RunLedger persists run history. [repositories.RunRepository] implements it.
type RunLedger interface {
	Create(run *models.Run) error
	Finish(run *models.Run) error
}

// AssignmentLedger persists reported assignments. [repositories.AssignmentRepository] implements it.
type AssignmentLedger interface {
	Create(rec *models.AssignmentRecord) error
	UpdateStatus(id string, status models.SyncOutcome) error
}

// Deps holds the collaborators of a [ClassifyEngine].
// Runs and Assignments are optional; without them nothing is recorded.
type Deps struct {
	Catalog     services.Catalog
	Extractor   services.Extractor
	Classifier  services.Classifier
	Store       features.Store
	Policy      *policy.Policy
	Runs        RunLedger
	Assignments AssignmentLedger
	Logger      *log.Logger

	// TrackDelay is the minimum spacing between tracks. Zero disables it.
	TrackDelay time.Duration
	// CreateMissingPlaylists creates a destination playlist for an unmapped label instead of dropping the assignment.
	CreateMissingPlaylists bool
}

// RunOptions configures one classification run.
type RunOptions struct {
	Source       string // Playlist ID or exact name
	ApprovalMode bool   // Report assignments without syncing them
	AllowRepeats bool   // Add tracks even when already present
}

// RunResult contains the counters of a classification run.
type RunResult struct {
	RunID          string
	Source         models.Playlist
	TotalTracks    int
	Processed      int // Tracks that produced at least one assignment
	Skipped        int // Tracks without features
	Failed         int // Tracks the model could not classify
	Assignments    int
	Synced         int
	AlreadyPresent int
	Unroutable     int
	SyncFailed     int
	Backfilled     int
	Cancelled      bool
}

// ClassifyEngine runs the classification pipeline. Create it with [NewClassifyEngine], call [ClassifyEngine.Run]
// or [ClassifyEngine.Approve] any number of times, then [ClassifyEngine.Close].
//
// Runs are serialized; a second Run waits for the first to finish.
type ClassifyEngine struct {
	deps   Deps
	logger *log.Logger
	mu     sync.Mutex
	closed bool
}

// runState is captured once per run.
type runState struct {
	runID    string
	mapping  map[string]string
	contains map[string]bool
}

func newRunState(runID string, playlists []models.Playlist) *runState {
	return &runState{
		runID:    runID,
		mapping:  playlistMapping(playlists),
		contains: make(map[string]bool),
	}
}

// playlistMapping maps playlist names to IDs. When names repeat, the last playlist listed wins.
func playlistMapping(playlists []models.Playlist) map[string]string {
	m := make(map[string]string, len(playlists))
	for _, p := range playlists {
		m[p.Name] = p.ID
	}
	return m
}

// NewClassifyEngine validates deps and returns an engine.
func NewClassifyEngine(deps Deps) (*ClassifyEngine, error) {
	switch {
	case deps.Catalog == nil:
		return nil, fmt.Errorf("%w: catalog not initialized", shared.ErrServiceUnavailable)
	case deps.Extractor == nil:
		return nil, fmt.Errorf("%w: extractor not initialized", shared.ErrServiceUnavailable)
	case deps.Classifier == nil:
		return nil, fmt.Errorf("%w: classifier not initialized", shared.ErrServiceUnavailable)
	case deps.Store == nil:
		return nil, fmt.Errorf("%w: feature store not initialized", shared.ErrServiceUnavailable)
	case deps.Policy == nil:
		return nil, fmt.Errorf("%w: policy not initialized", shared.ErrServiceUnavailable)
	}

	logger := deps.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &ClassifyEngine{deps: deps, logger: logger}, nil
}

// newLimiter returns a limiter granting one token per delay.
func newLimiter(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

// acquire takes the engine lock, releasing it again when the engine is closed.
func (e *ClassifyEngine) acquire() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return fmt.Errorf("%w: engine closed", shared.ErrServiceUnavailable)
	}
	return nil
}

// Run classifies every track of the source playlist.
//
// Setup failures (model, playlist listing, track listing) are returned as errors. Failures inside a
// track are logged and counted. Cancelling ctx stops the run between tracks and sets Cancelled.
func (e *ClassifyEngine) Run(ctx context.Context, opts RunOptions, observer Observer, progress chan<- ProgressUpdate) (*RunResult, error) {
	if err := e.acquire(); err != nil {
		return nil, err
	}
	defer e.mu.Unlock()

	if observer == nil {
		observer = discard
	}
	if opts.Source == "" {
		return nil, fmt.Errorf("%w: source playlist", shared.ErrMissingArgument)
	}

	labels, err := e.deps.Classifier.Labels(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrModelUnavailable, err)
	}
	sendProgress(progress, loadModelUpdate(labels))

	playlists, err := e.deps.Catalog.ListUserPlaylists(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list playlists: %w", shared.ErrCatalogUnavailable, err)
	}
	sendProgress(progress, fetchPlaylistsUpdate(len(playlists)))

	source := resolveSource(playlists, opts.Source)
	run := &models.Run{
		ID:           shared.GenerateID(),
		PlaylistID:   source.ID,
		PlaylistName: source.Name,
		ApprovalMode: opts.ApprovalMode,
		AllowRepeats: opts.AllowRepeats,
		Status:       models.RunRunning,
		StartedAt:    time.Now().UTC(),
	}
	result := &RunResult{RunID: run.ID, Source: source}

	if e.deps.Runs != nil {
		if err := e.deps.Runs.Create(run); err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrPersistence, err)
		}
	}

	tracks, err := e.deps.Catalog.ListPlaylistTracks(ctx, source.ID)
	if err != nil {
		err = fmt.Errorf("%w: failed to list tracks of %s: %w", shared.ErrCatalogUnavailable, opts.Source, err)
		e.finish(run, result, err)
		return nil, err
	}
	result.TotalTracks = len(tracks)
	sendProgress(progress, fetchTracksUpdate(source, len(tracks)))

	e.logger.Info("classifying playlist",
		"run", run.ID, "playlist", source.Name, "tracks", len(tracks),
		"approval", opts.ApprovalMode, "allow_repeats", opts.AllowRepeats)

	st := newRunState(run.ID, playlists)
	limiter := newLimiter(e.deps.TrackDelay)

	for i, track := range tracks {
		if err := limiter.Wait(ctx); err != nil {
			result.Cancelled = true
			break
		}
		e.processTrack(ctx, st, opts, observer, progress, result, i, track)
		if ctx.Err() != nil {
			result.Cancelled = true
			break
		}
	}

	e.finish(run, result, nil)
	e.logger.Info("run finished",
		"run", run.ID, "processed", result.Processed, "skipped", result.Skipped, "failed", result.Failed,
		"assignments", result.Assignments, "synced", result.Synced, "cancelled", result.Cancelled)
	return result, nil
}

// resolveSource matches the source by ID, then by name. Anything else is treated as a playlist ID
// the user does not own.
func resolveSource(playlists []models.Playlist, source string) models.Playlist {
	for _, p := range playlists {
		if p.ID == source {
			return p
		}
	}
	for _, p := range playlists {
		if p.Name == source {
			return p
		}
	}
	return models.Playlist{ID: source, Name: source}
}

func (e *ClassifyEngine) finish(run *models.Run, result *RunResult, err error) {
	run.Processed = result.Processed
	run.Skipped = result.Skipped
	run.Failed = result.Failed
	run.Assignments = result.Assignments
	run.Synced = result.Synced

	switch {
	case err != nil:
		run.Status = models.RunFailed
		run.Error = err.Error()
	case result.Cancelled:
		run.Status = models.RunCancelled
	default:
		run.Status = models.RunCompleted
	}

	if e.deps.Runs == nil {
		return
	}
	if ferr := e.deps.Runs.Finish(run); ferr != nil {
		e.logger.Error("failed to record run", "run", run.ID, "error", ferr)
	}
}

// resolveFeatures returns cached features when present, extracting them otherwise.
func (e *ClassifyEngine) resolveFeatures(ctx context.Context, track models.Track) (models.FeatureVector, bool, error) {
	if fv, ok := e.deps.Store.Lookup(track.Artist, track.Title); ok {
		return fv, true, nil
	}
	fv, err := e.deps.Extractor.Extract(ctx, track.Artist, track.Title)
	if err != nil {
		return nil, false, err
	}
	if len(fv) == 0 {
		return nil, false, shared.ErrExtractionFailed
	}
	return fv, false, nil
}

func (e *ClassifyEngine) processTrack(
	ctx context.Context,
	st *runState,
	opts RunOptions,
	observer Observer,
	progress chan<- ProgressUpdate,
	result *RunResult,
	index int,
	track models.Track,
) {
	defer func() {
		if v := recover(); v != nil {
			result.Failed++
			e.logger.Error("track processing panicked", "artist", track.Artist, "title", track.Title, "panic", v)
		}
	}()

	fv, cached, err := e.resolveFeatures(ctx, track)
	sendProgress(progress, classifyUpdate(index+1, result.TotalTracks, track, cached))
	if err != nil {
		result.Skipped++
		e.logger.Debug("skipping track without features", "artist", track.Artist, "title", track.Title, "error", err)
		return
	}

	dist, err := e.deps.Classifier.PredictProba(ctx, fv)
	if err != nil {
		result.Failed++
		e.logger.Warn("classification failed", "artist", track.Artist, "title", track.Title, "error", err)
		return
	}

	assignments := e.deps.Policy.Decide(dist)
	if len(assignments) == 0 {
		result.Failed++
		e.logger.Warn("empty distribution", "artist", track.Artist, "title", track.Title)
		return
	}
	result.Processed++

	// stored is set once a sync has tried the store, whether or not the append succeeded.
	stored := false
	for _, a := range assignments {
		event := models.AssignmentEvent{
			ID:         shared.GenerateID(),
			RunID:      st.runID,
			Position:   result.Assignments,
			TrackID:    track.ID,
			Artist:     track.Artist,
			Title:      track.Title,
			Label:      a.Label,
			Confidence: a.Confidence,
			Features:   fv,
		}
		result.Assignments++

		e.record(event)
		observer.Report(ctx, event)

		if opts.ApprovalMode {
			continue
		}

		outcome, tried := e.sync(ctx, st, event, opts.AllowRepeats)
		stored = stored || tried
		result.count(outcome)
		e.updateStatus(event.ID, outcome)
		sendProgress(progress, syncUpdate(index+1, result.TotalTracks, event, outcome))
	}

	if !cached && !stored {
		rec := models.FeatureRecord{Artist: track.Artist, Title: track.Title, Label: assignments[0].Label, Features: fv}
		if err := e.deps.Store.Append(rec); err != nil {
			e.logger.Error("failed to cache features", "artist", track.Artist, "title", track.Title, "error", err)
			return
		}
		result.Backfilled++
	}
}

func (r *RunResult) count(outcome models.SyncOutcome) {
	switch outcome {
	case models.OutcomeSynced:
		r.Synced++
	case models.OutcomeAlreadyPresent:
		r.AlreadyPresent++
	case models.OutcomeUnroutable:
		r.Unroutable++
	case models.OutcomeFailed:
		r.SyncFailed++
	}
}

func (e *ClassifyEngine) record(event models.AssignmentEvent) {
	if e.deps.Assignments == nil {
		return
	}
	rec := &models.AssignmentRecord{AssignmentEvent: event, Status: models.OutcomePending}
	if err := e.deps.Assignments.Create(rec); err != nil {
		e.logger.Error("failed to record assignment", "id", event.ID, "error", err)
	}
}

func (e *ClassifyEngine) updateStatus(id string, outcome models.SyncOutcome) {
	if e.deps.Assignments == nil || id == "" {
		return
	}
	if err := e.deps.Assignments.UpdateStatus(id, outcome); err != nil {
		e.logger.Error("failed to update assignment", "id", id, "status", outcome, "error", err)
	}
}

// sync adds the event's track to the playlist named by its label. It reports whether a store append was
// attempted; a failed append is logged and not retried by the backfill.
func (e *ClassifyEngine) sync(ctx context.Context, st *runState, event models.AssignmentEvent, allowRepeats bool) (models.SyncOutcome, bool) {
	destID, ok := st.mapping[event.Label]
	if !ok {
		if !e.deps.CreateMissingPlaylists {
			e.logger.Debug("no playlist for label", "label", event.Label, "title", event.Title)
			return models.OutcomeUnroutable, false
		}
		created, err := e.deps.Catalog.CreatePlaylist(ctx, event.Label, playlistDescription(event.Label))
		if err != nil {
			e.logger.Error("failed to create playlist", "label", event.Label, "error", err)
			return models.OutcomeFailed, false
		}
		e.logger.Info("created playlist", "label", event.Label, "id", created.ID)
		st.mapping[event.Label] = created.ID
		destID = created.ID
	}

	key := event.TrackID + "\x1f" + destID
	if !allowRepeats {
		present, memo := st.contains[key]
		if !memo {
			var err error
			present, err = e.deps.Catalog.PlaylistContains(ctx, destID, event.TrackID)
			if err != nil {
				e.logger.Error("failed to check playlist", "playlist", destID, "track", event.TrackID, "error", err)
				return models.OutcomeFailed, false
			}
			st.contains[key] = present
		}
		if present {
			return models.OutcomeAlreadyPresent, false
		}
	}

	if err := e.deps.Catalog.AddTrack(ctx, destID, event.TrackID); err != nil {
		e.logger.Error("failed to add track", "playlist", destID, "track", event.TrackID, "error", err)
		return models.OutcomeFailed, false
	}
	st.contains[key] = true

	if len(event.Features) == 0 {
		return models.OutcomeSynced, false
	}
	rec := models.FeatureRecord{Artist: event.Artist, Title: event.Title, Label: event.Label, Features: event.Features}
	if err := e.deps.Store.Append(rec); err != nil {
		e.logger.Error("failed to store features", "artist", event.Artist, "title", event.Title, "error", err)
		return models.OutcomeSynced, true
	}
	return models.OutcomeSynced, true
}

func playlistDescription(label string) string {
	return fmt.Sprintf("Tracks classified as %s", label)
}

// Approve syncs one previously reported assignment against a fresh playlist mapping.
func (e *ClassifyEngine) Approve(ctx context.Context, event models.AssignmentEvent, allowRepeats bool) (models.SyncOutcome, error) {
	if err := e.acquire(); err != nil {
		return models.OutcomeFailed, err
	}
	defer e.mu.Unlock()

	if event.TrackID == "" || event.Label == "" {
		return models.OutcomeFailed, fmt.Errorf("%w: assignment requires track and label", shared.ErrInvalidArgument)
	}

	playlists, err := e.deps.Catalog.ListUserPlaylists(ctx)
	if err != nil {
		return models.OutcomeFailed, fmt.Errorf("%w: failed to list playlists: %w", shared.ErrCatalogUnavailable, err)
	}

	st := newRunState(event.RunID, playlists)
	outcome, _ := e.sync(ctx, st, event, allowRepeats)
	e.updateStatus(event.ID, outcome)

	if outcome == models.OutcomeFailed {
		return outcome, fmt.Errorf("%w: failed to sync %s to %s", shared.ErrCatalogUnavailable, event.Title, event.Label)
	}
	return outcome, nil
}

// Reject marks a pending assignment as rejected.
func (e *ClassifyEngine) Reject(id string) error {
	if e.deps.Assignments == nil {
		return fmt.Errorf("%w: no assignment ledger", shared.ErrServiceUnavailable)
	}
	return e.deps.Assignments.UpdateStatus(id, models.OutcomeRejected)
}

// EnsurePlaylists creates a playlist for every model label that has none and returns the created playlists.
func (e *ClassifyEngine) EnsurePlaylists(ctx context.Context, progress chan<- ProgressUpdate) ([]models.Playlist, error) {
	if err := e.acquire(); err != nil {
		return nil, err
	}
	defer e.mu.Unlock()

	labels, err := e.deps.Classifier.Labels(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrModelUnavailable, err)
	}
	playlists, err := e.deps.Catalog.ListUserPlaylists(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list playlists: %w", shared.ErrCatalogUnavailable, err)
	}
	mapping := playlistMapping(playlists)

	var missing []string
	for _, label := range labels {
		if _, ok := mapping[label]; !ok {
			missing = append(missing, label)
		}
	}

	var created []models.Playlist
	var errs []error
	for i, label := range missing {
		p, err := e.deps.Catalog.CreatePlaylist(ctx, label, playlistDescription(label))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", label, err))
			continue
		}
		created = append(created, *p)
		sendProgress(progress, createPlaylistUpdate(i+1, len(missing), p))
	}
	return created, errors.Join(errs...)
}

// Close stops the engine and closes the feature store when it is closable.
func (e *ClassifyEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	if c, ok := e.deps.Store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
