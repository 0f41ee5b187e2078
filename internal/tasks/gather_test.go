package tasks

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/desertthunder/moodsort/internal/features"
	"github.com/desertthunder/moodsort/internal/models"
	"github.com/desertthunder/moodsort/internal/shared"
	tu "github.com/desertthunder/moodsort/internal/testing"
)

// cancellingExtractor cancels the run after a fixed number of successful extractions.
type cancellingExtractor struct {
	*tu.FakeExtractor
	after  int
	cancel context.CancelFunc
}

func (c *cancellingExtractor) Extract(ctx context.Context, artist, title string) (models.FeatureVector, error) {
	fv, err := c.FakeExtractor.Extract(ctx, artist, title)
	if c.FakeExtractor.CallCount() == c.after {
		c.cancel()
	}
	return fv, err
}

func gatherTracks(prefix string, n int) []models.Track {
	tracks := make([]models.Track, n)
	for i := range tracks {
		tracks[i] = track(fmt.Sprintf("%s-%d", prefix, i), prefix, fmt.Sprintf("song %d", i))
	}
	return tracks
}

func openGatherStore(t *testing.T, path string) *features.CSVStore {
	t.Helper()
	store, err := features.Open(path, models.FeatureSchema{Names: []string{"tempo"}}, nil)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func knownExtractor(tracks ...models.Track) *tu.FakeExtractor {
	ext := tu.NewFakeExtractor()
	for i, tr := range tracks {
		ext.Set(tr.Artist, tr.Title, models.FeatureVector{"tempo": float64(60 + i)})
	}
	return ext
}

func TestSample(t *testing.T) {
	tracks := gatherTracks("a", 50)

	t.Run("under cap returns everything", func(t *testing.T) {
		if got := sample(tracks, 100, 42); len(got) != 50 {
			t.Errorf("expected 50 tracks, got %d", len(got))
		}
	})

	t.Run("zero cap disables sampling", func(t *testing.T) {
		if got := sample(tracks, 0, 42); len(got) != 50 {
			t.Errorf("expected 50 tracks, got %d", len(got))
		}
	})

	t.Run("same seed same selection", func(t *testing.T) {
		first := sample(tracks, 10, 42)
		second := sample(tracks, 10, 42)
		if len(first) != 10 {
			t.Fatalf("expected 10 tracks, got %d", len(first))
		}
		for i := range first {
			if first[i].ID != second[i].ID {
				t.Fatalf("selection differs at %d: %s vs %s", i, first[i].ID, second[i].ID)
			}
		}
	})

	t.Run("no duplicates", func(t *testing.T) {
		seen := make(map[string]bool)
		for _, tr := range sample(tracks, 25, 7) {
			if seen[tr.ID] {
				t.Fatalf("duplicate track %s", tr.ID)
			}
			seen[tr.ID] = true
		}
	})
}

func TestNewGatherer(t *testing.T) {
	if _, err := NewGatherer(nil, nil, nil, nil, 0); !errors.Is(err, shared.ErrServiceUnavailable) {
		t.Errorf("expected ErrServiceUnavailable, got %v", err)
	}
}

func TestGathererRun(t *testing.T) {
	t.Run("extracts and labels every source", func(t *testing.T) {
		lofi, edm := gatherTracks("lofi", 3), gatherTracks("edm", 2)
		catalog := tu.NewFakeCatalog()
		catalog.AddSource("src-lofi", "lofi training", lofi...)
		catalog.AddSource("src-edm", "edm training", edm...)
		store := openGatherStore(t, filepath.Join(t.TempDir(), "train.csv"))

		g, err := NewGatherer(catalog, knownExtractor(append(lofi, edm...)...), store, nil, 0)
		if err != nil {
			t.Fatalf("NewGatherer() error = %v", err)
		}

		opts := GatherOptions{Sources: []GatherSource{{"lofi", "src-lofi"}, {"edm", "src-edm"}}}
		result, err := g.Run(context.Background(), opts, nil)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if result.Appended != 5 || store.Len() != 5 {
			t.Errorf("expected 5 records, got result %d store %d", result.Appended, store.Len())
		}

		stats, err := store.Stats()
		if err != nil {
			t.Fatalf("Stats() error = %v", err)
		}
		if len(stats.Labels) != 2 || stats.Labels[0].Label != "edm" || stats.Labels[0].Rows != 2 {
			t.Errorf("unexpected label counts %+v", stats.Labels)
		}
	})

	t.Run("caps sources deterministically", func(t *testing.T) {
		tracks := gatherTracks("big", 20)
		catalog := tu.NewFakeCatalog()
		catalog.AddSource("src", "big", tracks...)

		var picked [][]string
		for i := 0; i < 2; i++ {
			ext := knownExtractor(tracks...)
			store := openGatherStore(t, filepath.Join(t.TempDir(), "train.csv"))
			g, _ := NewGatherer(catalog, ext, store, nil, 0)

			opts := GatherOptions{Sources: []GatherSource{{"big", "src"}}, MaxPerLabel: 5, Seed: DefaultSeed}
			result, err := g.Run(context.Background(), opts, nil)
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if result.Sources[0].Sampled != 5 || result.Sources[0].Listed != 20 {
				t.Errorf("unexpected source result %+v", result.Sources[0])
			}
			picked = append(picked, ext.Calls)
		}

		for i := range picked[0] {
			if picked[0][i] != picked[1][i] {
				t.Fatalf("sampling differs between runs at %d", i)
			}
		}
	})

	t.Run("listing failure skips the source", func(t *testing.T) {
		good := gatherTracks("good", 2)
		catalog := tu.NewFakeCatalog()
		catalog.AddSource("src-bad", "bad")
		catalog.AddSource("src-good", "good", good...)
		catalog.ListTracksErr["src-bad"] = errors.New("503")
		store := openGatherStore(t, filepath.Join(t.TempDir(), "train.csv"))

		g, _ := NewGatherer(catalog, knownExtractor(good...), store, nil, 0)
		opts := GatherOptions{Sources: []GatherSource{{"bad", "src-bad"}, {"good", "src-good"}}}
		result, err := g.Run(context.Background(), opts, nil)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if result.Sources[0].Err == nil || result.Sources[1].Appended != 2 {
			t.Errorf("unexpected sources %+v", result.Sources)
		}
	})

	t.Run("failed extractions are counted", func(t *testing.T) {
		tracks := gatherTracks("x", 3)
		catalog := tu.NewFakeCatalog()
		catalog.AddSource("src", "x", tracks...)
		store := openGatherStore(t, filepath.Join(t.TempDir(), "train.csv"))

		g, _ := NewGatherer(catalog, knownExtractor(tracks[0]), store, nil, 0)
		result, err := g.Run(context.Background(), GatherOptions{Sources: []GatherSource{{"x", "src"}}}, nil)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if sr := result.Sources[0]; sr.Appended != 1 || sr.Failed != 2 {
			t.Errorf("unexpected source result %+v", sr)
		}
	})
}

func TestGathererResume(t *testing.T) {
	tracks := gatherTracks("lofi", 6)
	catalog := tu.NewFakeCatalog()
	catalog.AddSource("src", "lofi", tracks...)
	path := filepath.Join(t.TempDir(), "train.csv")
	opts := GatherOptions{Sources: []GatherSource{{"lofi", "src"}}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	first := &cancellingExtractor{FakeExtractor: knownExtractor(tracks...), after: 2, cancel: cancel}

	store := openGatherStore(t, path)
	g, _ := NewGatherer(catalog, first, store, nil, 0)
	result, err := g.Run(ctx, opts, nil)
	if err != nil {
		t.Fatalf("interrupted Run() error = %v", err)
	}
	if !result.Cancelled || result.Appended != 2 {
		t.Fatalf("expected cancellation after 2 records, got %+v", result)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	second := knownExtractor(tracks...)
	store = openGatherStore(t, path)
	g, _ = NewGatherer(catalog, second, store, nil, 0)
	result, err = g.Run(context.Background(), opts, nil)
	if err != nil {
		t.Fatalf("resumed Run() error = %v", err)
	}

	if result.Sources[0].Known != 2 || result.Appended != 4 {
		t.Errorf("unexpected resumed result %+v", result.Sources[0])
	}
	for _, key := range second.Calls {
		for _, done := range first.Calls {
			if key == done {
				t.Errorf("re-extracted %q after resume", key)
			}
		}
	}
	if store.Len() != 6 {
		t.Errorf("expected 6 stored tracks, got %d", store.Len())
	}
}
