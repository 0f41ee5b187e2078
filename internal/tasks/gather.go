package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/moodsort/internal/features"
	"github.com/desertthunder/moodsort/internal/models"
	"github.com/desertthunder/moodsort/internal/services"
	"github.com/desertthunder/moodsort/internal/shared"
	"golang.org/x/time/rate"
)

// Gather defaults.
const (
	DefaultMaxPerLabel = 200
	DefaultSeed        = 42
)

// GatherSource pairs a training label with the playlist whose tracks exemplify it.
type GatherSource struct {
	Label      string
	PlaylistID string
}

// GatherOptions configures a gather run.
type GatherOptions struct {
	Sources     []GatherSource
	MaxPerLabel int   // Cap on tracks sampled per source; zero means no cap
	Seed        int64 // Sampling seed, reused for every source
}

// SourceResult contains the counters for one source.
type SourceResult struct {
	Label    string
	Listed   int   // Tracks in the playlist
	Sampled  int   // Tracks considered after capping
	Known    int   // Tracks already in the store
	Appended int   // Tracks extracted and stored
	Failed   int   // Tracks without features
	Err      error // Listing error; the source was skipped
}

// GatherResult contains the results of a gather run.
type GatherResult struct {
	Sources   []SourceResult
	Appended  int
	Cancelled bool
}

// Gatherer builds the training set by extracting features for labelled playlists.
//
// The feature store doubles as the processed set, so an interrupted gather resumes without re-extracting
// any stored track.
type Gatherer struct {
	catalog   services.Catalog
	extractor services.Extractor
	store     features.Store
	logger    *log.Logger
	delay     time.Duration
}

// NewGatherer creates a Gatherer. delay spaces consecutive extractions.
func NewGatherer(catalog services.Catalog, extractor services.Extractor, store features.Store, logger *log.Logger, delay time.Duration) (*Gatherer, error) {
	if catalog == nil || extractor == nil || store == nil {
		return nil, fmt.Errorf("%w: gatherer requires catalog, extractor and store", shared.ErrServiceUnavailable)
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Gatherer{catalog: catalog, extractor: extractor, store: store, logger: logger, delay: delay}, nil
}

// sample returns at most max tracks, chosen with a generator seeded by seed.
func sample(tracks []models.Track, max int, seed int64) []models.Track {
	if max <= 0 || len(tracks) <= max {
		return tracks
	}
	rng := rand.New(rand.NewSource(seed))
	out := make([]models.Track, 0, max)
	for _, i := range rng.Perm(len(tracks))[:max] {
		out = append(out, tracks[i])
	}
	return out
}

// Run gathers every source in order. A source that cannot be listed is logged and skipped.
// A store write failure stops the run, since continuing would lose the resume guarantee.
func (g *Gatherer) Run(ctx context.Context, opts GatherOptions, progress chan<- ProgressUpdate) (*GatherResult, error) {
	result := &GatherResult{}
	limiter := newLimiter(g.delay)

	for _, src := range opts.Sources {
		if ctx.Err() != nil {
			result.Cancelled = true
			break
		}

		sr := SourceResult{Label: src.Label}
		tracks, err := g.catalog.ListPlaylistTracks(ctx, src.PlaylistID)
		if err != nil {
			sr.Err = err
			result.Sources = append(result.Sources, sr)
			g.logger.Warn("skipping source", "label", src.Label, "playlist", src.PlaylistID, "error", err)
			sendProgress(progress, gatherSourceFailedUpdate(src.Label, err))
			continue
		}
		sr.Listed = len(tracks)

		picked := sample(tracks, opts.MaxPerLabel, opts.Seed)
		sr.Sampled = len(picked)

		err = g.gatherSource(ctx, limiter, src.Label, picked, &sr, progress)
		result.Sources = append(result.Sources, sr)
		result.Appended += sr.Appended
		g.logger.Info("gathered source", "label", src.Label, "listed", sr.Listed, "sampled", sr.Sampled,
			"known", sr.Known, "appended", sr.Appended, "failed", sr.Failed)

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			result.Cancelled = true
			break
		}
		if err != nil {
			return result, err
		}
	}

	return result, nil
}

func (g *Gatherer) gatherSource(
	ctx context.Context,
	limiter *rate.Limiter,
	label string,
	tracks []models.Track,
	sr *SourceResult,
	progress chan<- ProgressUpdate,
) error {
	for i, track := range tracks {
		if g.store.Has(track.Artist, track.Title) {
			sr.Known++
			continue
		}
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		sendProgress(progress, gatherUpdate(i+1, len(tracks), label, track))

		fv, err := g.extractor.Extract(ctx, track.Artist, track.Title)
		if err != nil || len(fv) == 0 {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			sr.Failed++
			g.logger.Debug("extraction failed", "artist", track.Artist, "title", track.Title, "error", err)
			continue
		}

		rec := models.FeatureRecord{Artist: track.Artist, Title: track.Title, Label: label, Features: fv}
		if err := g.store.Append(rec); err != nil {
			return err
		}
		sr.Appended++
	}
	return nil
}
