// Spotify API implementation of [Catalog]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/moodsort/internal/models"
	"github.com/desertthunder/moodsort/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"
)

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Artists []SpotifyArtist `json:"artists"`
	URI     string          `json:"uri"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SpotifyPlaylistTrack represents a track within a playlist context.
// Track is nil for removed or unavailable items.
type SpotifyPlaylistTrack struct {
	AddedAt string        `json:"added_at"`
	Track   *SpotifyTrack `json:"track"`
}

// SpotifyPaginatedTracks represents a paginated response of playlist items.
type SpotifyPaginatedTracks struct {
	Items []SpotifyPlaylistTrack `json:"items"`
	Total int                    `json:"total"`
	Next  *string                `json:"next"`
}

type simplePlaylistTrack struct {
	Total int `json:"total"`
}

// SpotifySimplePlaylist represents a simplified playlist object (used in lists).
type SpotifySimplePlaylist struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Public      bool                `json:"public"`
	Tracks      simplePlaylistTrack `json:"tracks"`
}

// SpotifyPaginatedPlaylists represents a paginated response of playlists.
type SpotifyPaginatedPlaylists struct {
	Items []SpotifySimplePlaylist `json:"items"`
	Total int                     `json:"total"`
	Next  *string                 `json:"next"`
}

func (p SpotifySimplePlaylist) model() models.Playlist {
	return models.Playlist{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		TrackCount:  p.Tracks.Total,
		Public:      p.Public,
	}
}

// SpotifyService implements [Catalog] for the Spotify Web API.
// Uses [oauth2] for authentication and token refresh.
type SpotifyService struct {
	config      *oauth2.Config
	tokenSource oauth2.TokenSource
	httpClient  *http.Client
	baseURL     string
	logger      *log.Logger
	maxRetries  int
	baseBackoff time.Duration

	mu             sync.Mutex
	onTokenRefresh func(*oauth2.Token)
}

// refreshableTokenSource reports every token that differs from the last one seen.
type refreshableTokenSource struct {
	source   oauth2.TokenSource
	callback func(*oauth2.Token)
	mu       sync.Mutex
	last     string
}

func (r *refreshableTokenSource) Token() (*oauth2.Token, error) {
	token, err := r.source.Token()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	changed := token.AccessToken != r.last
	r.last = token.AccessToken
	r.mu.Unlock()

	if changed && r.callback != nil {
		r.callback(token)
	}
	return token, nil
}

// SpotifyOption customizes a [SpotifyService].
type SpotifyOption func(*SpotifyService)

// WithBaseURL points the service at another API root.
func WithBaseURL(u string) SpotifyOption {
	return func(s *SpotifyService) { s.baseURL = strings.TrimRight(u, "/") }
}

// WithRetry sets the attempt count and the initial backoff.
func WithRetry(attempts int, backoff time.Duration) SpotifyOption {
	return func(s *SpotifyService) {
		s.maxRetries = attempts
		s.baseBackoff = backoff
	}
}

// WithLogger sets the logger used for retry warnings.
func WithLogger(l *log.Logger) SpotifyOption {
	return func(s *SpotifyService) { s.logger = l }
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string, opts ...SpotifyOption) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = "http://127.0.0.1:3000/callback"
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"user-read-private",
			"playlist-read-private",
			"playlist-read-collaborative",
			"playlist-modify-public",
			"playlist-modify-private",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	s := &SpotifyService{
		config:      config,
		httpClient:  http.DefaultClient,
		baseURL:     spotifyBaseURL,
		logger:      log.New(io.Discard),
		maxRetries:  defaultMaxRetries,
		baseBackoff: defaultBackoff,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Authenticate installs a token. Expects either an "access_token" (optionally with "refresh_token" and
// an RFC 3339 "token_expiry") or an "auth_code" to exchange.
func (s *SpotifyService) Authenticate(ctx context.Context, credentials map[string]string) error {
	if accessToken := credentials["access_token"]; accessToken != "" {
		token := &oauth2.Token{
			AccessToken:  accessToken,
			RefreshToken: credentials["refresh_token"],
			TokenType:    "Bearer",
		}
		if raw := credentials["token_expiry"]; raw != "" {
			if expiry, err := time.Parse(time.RFC3339, raw); err == nil {
				token.Expiry = expiry
			}
		}
		s.SetToken(ctx, token)
		return nil
	}

	if authCode := credentials["auth_code"]; authCode != "" {
		token, err := s.config.Exchange(ctx, authCode)
		if err != nil {
			return fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrInvalidCredentials, err)
		}
		s.SetToken(ctx, token)
		return nil
	}

	return fmt.Errorf("%w: missing access_token or auth_code", shared.ErrMissingCredentials)
}

// SetToken installs an already obtained token, refreshing it through the token endpoint when it expires.
func (s *SpotifyService) SetToken(ctx context.Context, token *oauth2.Token) {
	source := &refreshableTokenSource{
		source: oauth2.ReuseTokenSource(token, s.config.TokenSource(ctx, token)),
		last:   token.AccessToken,
		callback: func(t *oauth2.Token) {
			s.mu.Lock()
			callback := s.onTokenRefresh
			s.mu.Unlock()
			if callback != nil {
				callback(t)
			}
		},
	}
	s.tokenSource = source
	s.httpClient = oauth2.NewClient(ctx, source)
}

// SetTokenRefreshCallback registers fn to receive refreshed tokens so they can be persisted.
func (s *SpotifyService) SetTokenRefreshCallback(fn func(*oauth2.Token)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTokenRefresh = fn
}

// Token returns the current, possibly refreshed, token.
func (s *SpotifyService) Token() (*oauth2.Token, error) {
	if s.tokenSource == nil {
		return nil, shared.ErrNotAuthenticated
	}
	token, err := s.tokenSource.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrTokenExpired, err)
	}
	return token, nil
}

// OAuthConfig returns the OAuth2 configuration used for the authorization code flow.
func (s *SpotifyService) OAuthConfig() *oauth2.Config {
	return s.config
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Name returns the catalog name.
func (s *SpotifyService) Name() string {
	return "Spotify"
}

// doRequest performs an authenticated HTTP request to the Spotify API.
// endpoint is either a path under the API root or an absolute URL returned by the API.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	if s.tokenSource == nil {
		return fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}

	apiURL := endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		apiURL = s.baseURL + endpoint
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.doRequestWithRetry(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", shared.ErrCatalogUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %w: %s %s", shared.ErrCatalogUnavailable, shared.ErrTokenExpired, method, req.URL.Path)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %w: %s", shared.ErrCatalogUnavailable, shared.ErrPlaylistNotFound, req.URL.Path)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: spotify API error: status %d: %s", shared.ErrCatalogUnavailable, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("%w: failed to decode response: %v", shared.ErrCatalogUnavailable, err)
		}
	}

	return nil
}

// UserProfile retrieves the current authenticated user's profile.
func (s *SpotifyService) UserProfile(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListUserPlaylists retrieves all playlists for the authenticated user.
func (s *SpotifyService) ListUserPlaylists(ctx context.Context) ([]models.Playlist, error) {
	var playlists []models.Playlist
	next := "/me/playlists?limit=50"

	for next != "" {
		var page SpotifyPaginatedPlaylists
		if err := s.doRequest(ctx, http.MethodGet, next, nil, &page); err != nil {
			return nil, err
		}
		for _, sp := range page.Items {
			playlists = append(playlists, sp.model())
		}
		next = deref(page.Next)
	}

	return playlists, nil
}

// ListPlaylistTracks retrieves every track of a playlist in playlist order.
func (s *SpotifyService) ListPlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	var tracks []models.Track
	next := fmt.Sprintf("/playlists/%s/tracks?limit=100", url.PathEscape(playlistID))

	for next != "" {
		var page SpotifyPaginatedTracks
		if err := s.doRequest(ctx, http.MethodGet, next, nil, &page); err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			if item.Track == nil || item.Track.ID == "" || len(item.Track.Artists) == 0 {
				continue
			}
			tracks = append(tracks, models.Track{
				ID:     item.Track.ID,
				Title:  item.Track.Name,
				Artist: item.Track.Artists[0].Name,
			})
		}
		next = deref(page.Next)
	}

	return tracks, nil
}

// PlaylistContains scans every page of the playlist for trackID.
func (s *SpotifyService) PlaylistContains(ctx context.Context, playlistID, trackID string) (bool, error) {
	tracks, err := s.ListPlaylistTracks(ctx, playlistID)
	if err != nil {
		return false, err
	}
	for _, t := range tracks {
		if t.ID == trackID {
			return true, nil
		}
	}
	return false, nil
}

// AddTrack appends trackID to the playlist.
func (s *SpotifyService) AddTrack(ctx context.Context, playlistID, trackID string) error {
	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
	body := map[string][]string{"uris": {"spotify:track:" + trackID}}
	return s.doRequest(ctx, http.MethodPost, endpoint, body, nil)
}

// CreatePlaylist creates a private playlist for the current user.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, name, description string) (*models.Playlist, error) {
	user, err := s.UserProfile(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("/users/%s/playlists", url.PathEscape(user.ID))
	body := map[string]any{"name": name, "description": description, "public": false}

	var created SpotifySimplePlaylist
	if err := s.doRequest(ctx, http.MethodPost, endpoint, body, &created); err != nil {
		return nil, err
	}
	p := created.model()
	return &p, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
