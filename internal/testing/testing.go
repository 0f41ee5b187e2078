// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/moodsort/internal/models"
	"github.com/desertthunder/moodsort/internal/shared"
)

// FakeCatalog is an in-memory test double for [services.Catalog].
//
// Playlists are keyed by ID; their contents are track IDs in order.
type FakeCatalog struct {
	mu        sync.Mutex
	Playlists []models.Playlist
	Tracks    map[string][]models.Track
	Contents  map[string][]string

	ListPlaylistsErr error
	ListTracksErr    map[string]error
	ContainsErr      error
	AddErr           error
	CreateErr        error

	ListPlaylistsCalls int
	ContainsCalls      int
	AddCalls           []AddCall
	Created            []models.Playlist
}

// AddCall records one AddTrack invocation.
type AddCall struct {
	PlaylistID string
	TrackID    string
}

// NewFakeCatalog returns a catalog owning the named destination playlists, with IDs "pl-<name>".
func NewFakeCatalog(names ...string) *FakeCatalog {
	c := &FakeCatalog{
		Tracks:        make(map[string][]models.Track),
		Contents:      make(map[string][]string),
		ListTracksErr: make(map[string]error),
	}
	for _, name := range names {
		c.Playlists = append(c.Playlists, models.Playlist{ID: "pl-" + name, Name: name})
	}
	return c
}

// AddSource registers a source playlist with the given tracks.
func (c *FakeCatalog) AddSource(id, name string, tracks ...models.Track) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Playlists = append(c.Playlists, models.Playlist{ID: id, Name: name, TrackCount: len(tracks)})
	c.Tracks[id] = tracks
}

// Contains reports whether the playlist holds trackID without counting a call.
func (c *FakeCatalog) Contains(playlistID, trackID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.containsLocked(playlistID, trackID)
}

// Count returns how many times trackID appears in the playlist.
func (c *FakeCatalog) Count(playlistID, trackID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, id := range c.Contents[playlistID] {
		if id == trackID {
			n++
		}
	}
	return n
}

func (c *FakeCatalog) containsLocked(playlistID, trackID string) bool {
	for _, id := range c.Contents[playlistID] {
		if id == trackID {
			return true
		}
	}
	return false
}

func (c *FakeCatalog) ListUserPlaylists(ctx context.Context) ([]models.Playlist, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ListPlaylistsCalls++
	if c.ListPlaylistsErr != nil {
		return nil, c.ListPlaylistsErr
	}
	return append([]models.Playlist{}, c.Playlists...), nil
}

func (c *FakeCatalog) ListPlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ListTracksErr[playlistID]; err != nil {
		return nil, err
	}
	tracks, ok := c.Tracks[playlistID]
	if !ok {
		return nil, shared.ErrPlaylistNotFound
	}
	return append([]models.Track{}, tracks...), nil
}

func (c *FakeCatalog) PlaylistContains(ctx context.Context, playlistID, trackID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ContainsCalls++
	if c.ContainsErr != nil {
		return false, c.ContainsErr
	}
	return c.containsLocked(playlistID, trackID), nil
}

func (c *FakeCatalog) AddTrack(ctx context.Context, playlistID, trackID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.AddErr != nil {
		return c.AddErr
	}
	c.AddCalls = append(c.AddCalls, AddCall{PlaylistID: playlistID, TrackID: trackID})
	c.Contents[playlistID] = append(c.Contents[playlistID], trackID)
	return nil
}

func (c *FakeCatalog) CreatePlaylist(ctx context.Context, name, description string) (*models.Playlist, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.CreateErr != nil {
		return nil, c.CreateErr
	}
	p := models.Playlist{ID: "pl-" + name, Name: name, Description: description}
	c.Playlists = append(c.Playlists, p)
	c.Created = append(c.Created, p)
	return &p, nil
}

// FakeExtractor returns canned vectors keyed by (artist, title).
type FakeExtractor struct {
	mu      sync.Mutex
	Vectors map[string]models.FeatureVector
	Calls   []string
}

// NewFakeExtractor returns an extractor with no known tracks.
func NewFakeExtractor() *FakeExtractor {
	return &FakeExtractor{Vectors: make(map[string]models.FeatureVector)}
}

// Set registers the vector returned for the pair.
func (f *FakeExtractor) Set(artist, title string, fv models.FeatureVector) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Vectors[shared.TrackKey(artist, title)] = fv
}

// CallCount returns the number of Extract calls.
func (f *FakeExtractor) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}

func (f *FakeExtractor) Extract(ctx context.Context, artist, title string) (models.FeatureVector, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := shared.TrackKey(artist, title)
	f.Calls = append(f.Calls, key)
	fv, ok := f.Vectors[key]
	if !ok {
		return nil, shared.ErrExtractionFailed
	}
	return fv.Clone(), nil
}

// FakeClassifier maps the "tempo" feature to a fixed distribution.
type FakeClassifier struct {
	mu        sync.Mutex
	LabelSet  []string
	Dists     map[float64][]models.Probability
	LabelsErr error
	Calls     int
}

// NewFakeClassifier returns a classifier over labels.
func NewFakeClassifier(labels ...string) *FakeClassifier {
	return &FakeClassifier{LabelSet: labels, Dists: make(map[float64][]models.Probability)}
}

// On sets the distribution returned for vectors whose tempo equals tempo.
func (f *FakeClassifier) On(tempo float64, dist ...models.Probability) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Dists[tempo] = dist
}

func (f *FakeClassifier) Labels(ctx context.Context) ([]string, error) {
	if f.LabelsErr != nil {
		return nil, f.LabelsErr
	}
	return append([]string{}, f.LabelSet...), nil
}

func (f *FakeClassifier) PredictProba(ctx context.Context, fv models.FeatureVector) ([]models.Probability, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	dist, ok := f.Dists[fv["tempo"]]
	if !ok {
		return nil, shared.ErrModelUnavailable
	}
	return dist, nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
