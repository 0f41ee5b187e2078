package shared

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/oauth2"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Analysis    AnalysisConfig    `toml:"analysis"`
	Store       StoreConfig       `toml:"store"`
	Database    DatabaseConfig    `toml:"database"`
	Classify    ClassifyConfig    `toml:"classify"`
	Gather      GatherConfig      `toml:"gather"`
	Server      ServerConfig      `toml:"server"`
	Log         LogConfig         `toml:"log"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials and the persisted OAuth token.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	AccessToken  string `toml:"access_token"`
	RefreshToken string `toml:"refresh_token"`
	TokenExpiry  string `toml:"token_expiry"`
}

// AnalysisConfig points at the model-serving proxy.
type AnalysisConfig struct {
	BaseURL string   `toml:"base_url"`
	Timeout Duration `toml:"timeout"`
}

// StoreConfig locates the feature store and fixes its column schema.
type StoreConfig struct {
	Path          string   `toml:"path"`
	SchemaVersion string   `toml:"schema_version"`
	SoundClasses  []string `toml:"sound_classes"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ClassifyConfig tunes the classification run.
//
// CreateMissingPlaylists decides what happens to an assignment whose label has no destination playlist
// in the mapping captured at run start: false drops it, true creates the playlist once for the run.
type ClassifyConfig struct {
	Threshold              float64  `toml:"threshold"`
	TrackDelay             Duration `toml:"track_delay"`
	AllowRepeats           bool     `toml:"allow_repeats"`
	CreateMissingPlaylists bool     `toml:"create_missing_playlists"`
	ReportTimeout          Duration `toml:"report_timeout"`
}

// GatherConfig drives training corpus collection.
type GatherConfig struct {
	MaxPerLabel int            `toml:"max_per_label"`
	Seed        int64          `toml:"seed"`
	Sources     []GatherSource `toml:"sources"`
}

// GatherSource maps a training label to the playlist its examples come from.
type GatherSource struct {
	Label      string `toml:"label"`
	PlaylistID string `toml:"playlist_id"`
}

// ServerConfig contains the OAuth callback server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// LogConfig sets the log level.
type LogConfig struct {
	Level string `toml:"level"`
}

// Duration is a [time.Duration] that reads and writes TOML strings such as "100ms".
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q: %v", ErrInvalidConfig, text, err)
	}
	d.Duration = parsed
	return nil
}

// Map returns the credentials in the form [services.NewSpotifyService] accepts.
func (s SpotifyConfig) Map() map[string]string {
	return map[string]string{
		"client_id":     s.ClientID,
		"client_secret": s.ClientSecret,
		"redirect_uri":  s.RedirectURI,
	}
}

// Token rebuilds the persisted [oauth2.Token], or nil when no access token is stored.
func (s SpotifyConfig) Token() *oauth2.Token {
	if s.AccessToken == "" {
		return nil
	}

	token := &oauth2.Token{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    "Bearer",
	}
	if expiry, err := time.Parse(time.RFC3339, s.TokenExpiry); err == nil {
		token.Expiry = expiry
	}
	return token
}

// Update stores token in the config, keeping the previous refresh token if the new one has none.
func (s *SpotifyConfig) Update(token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("%w: empty token", ErrInvalidCredentials)
	}

	s.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		s.RefreshToken = token.RefreshToken
	}
	s.TokenExpiry = ""
	if !token.Expiry.IsZero() {
		s.TokenExpiry = token.Expiry.UTC().Format(time.RFC3339)
	}
	return nil
}

// Validate reports configuration that would make a run misbehave.
func (c *Config) Validate() error {
	if c.Classify.Threshold <= 0 || c.Classify.Threshold > 1 {
		return fmt.Errorf("%w: classify.threshold must be in (0, 1], got %v", ErrInvalidConfig, c.Classify.Threshold)
	}
	if c.Classify.TrackDelay.Duration < 0 {
		return fmt.Errorf("%w: classify.track_delay must not be negative", ErrInvalidConfig)
	}
	if c.Store.Path == "" {
		return fmt.Errorf("%w: store.path is required", ErrInvalidConfig)
	}
	if c.Gather.MaxPerLabel < 0 {
		return fmt.Errorf("%w: gather.max_per_label must not be negative", ErrInvalidConfig)
	}
	for i, src := range c.Gather.Sources {
		if src.Label == "" || src.PlaylistID == "" {
			return fmt.Errorf("%w: gather.sources[%d] needs label and playlist_id", ErrInvalidConfig, i)
		}
	}
	return nil
}

// LoadConfig reads a TOML configuration file layered over the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if _, err := toml.Decode(string(data), config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// SaveConfig writes config to path as TOML.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
