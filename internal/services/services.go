// package services defines the remote collaborators of the classification pipeline
//
// Spotify (catalog), analysis proxy (feature extraction and classification)
package services

import (
	"context"

	"github.com/desertthunder/moodsort/internal/models"
)

// Catalog is the streaming service holding the source and destination playlists.
type Catalog interface {
	// ListUserPlaylists returns every playlist of the authenticated user, following pagination.
	ListUserPlaylists(ctx context.Context) ([]models.Playlist, error)

	// ListPlaylistTracks returns every track of a playlist in catalog order.
	// Items without a track or without artists are dropped.
	ListPlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error)

	// PlaylistContains reports whether trackID appears anywhere in the playlist.
	PlaylistContains(ctx context.Context, playlistID, trackID string) (bool, error)

	// AddTrack appends a track to a playlist. The service does not deduplicate.
	AddTrack(ctx context.Context, playlistID, trackID string) error

	// CreatePlaylist creates a private playlist owned by the authenticated user.
	CreatePlaylist(ctx context.Context, name, description string) (*models.Playlist, error)
}

// Extractor produces audio features for a track identified by artist and title.
type Extractor interface {
	Extract(ctx context.Context, artist, title string) (models.FeatureVector, error)
}

// Classifier is the pre-trained model.
type Classifier interface {
	// Labels returns the model's fixed label set. It doubles as a readiness check.
	Labels(ctx context.Context) ([]string, error)

	// PredictProba returns one probability per label, in the model's label order.
	PredictProba(ctx context.Context, features models.FeatureVector) ([]models.Probability, error)
}
