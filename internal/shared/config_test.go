package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./moodsort.db" {
			t.Errorf("expected database path ./moodsort.db, got %s", config.Database.Path)
		}
		if config.Store.Path != "training_features.csv" {
			t.Errorf("expected store path training_features.csv, got %s", config.Store.Path)
		}
		if config.Classify.Threshold != 0.70 {
			t.Errorf("expected threshold 0.70, got %v", config.Classify.Threshold)
		}
		if config.Classify.TrackDelay.Duration != 100*time.Millisecond {
			t.Errorf("expected track delay 100ms, got %v", config.Classify.TrackDelay)
		}
		if config.Gather.MaxPerLabel != 200 || config.Gather.Seed != 42 {
			t.Errorf("expected gather cap 200 seed 42, got %d/%d", config.Gather.MaxPerLabel, config.Gather.Seed)
		}
		if len(config.Store.SoundClasses) == 0 {
			t.Error("expected default sound classes")
		}
		if err := config.Validate(); err != nil {
			t.Errorf("default config should validate: %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}
		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig overrides defaults", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		testConfig := `[store]
path = "/data/features.csv"

[classify]
threshold = 0.8
track_delay = "250ms"
allow_repeats = true

[[gather.sources]]
label = "citypop"
playlist_id = "pl-citypop"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Store.Path != "/data/features.csv" {
			t.Errorf("expected store path override, got %s", config.Store.Path)
		}
		if config.Classify.Threshold != 0.8 {
			t.Errorf("expected threshold 0.8, got %v", config.Classify.Threshold)
		}
		if config.Classify.TrackDelay.Duration != 250*time.Millisecond {
			t.Errorf("expected 250ms, got %v", config.Classify.TrackDelay)
		}
		if !config.Classify.AllowRepeats {
			t.Error("expected allow_repeats to be true")
		}
		if config.Database.Path != "./moodsort.db" {
			t.Errorf("unset keys should keep defaults, got database path %s", config.Database.Path)
		}

		found := false
		for _, src := range config.Gather.Sources {
			if src.Label == "citypop" && src.PlaylistID == "pl-citypop" {
				found = true
			}
		}
		if !found {
			t.Errorf("expected citypop source, got %+v", config.Gather.Sources)
		}
	})

	t.Run("LoadConfig rejects bad duration", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[classify]\ntrack_delay = \"soon\"\n"), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := LoadConfig(configPath); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("SaveConfig round trips token", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		config := DefaultConfig()
		expiry := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

		if err := config.Credentials.Spotify.Update(&oauth2.Token{AccessToken: "access", RefreshToken: "refresh", Expiry: expiry}); err != nil {
			t.Fatalf("failed to update token: %v", err)
		}
		if err := SaveConfig(configPath, config); err != nil {
			t.Fatalf("failed to save config: %v", err)
		}

		loaded, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to reload config: %v", err)
		}

		token := loaded.Credentials.Spotify.Token()
		if token == nil {
			t.Fatal("expected token to be restored")
		}
		if token.AccessToken != "access" || token.RefreshToken != "refresh" {
			t.Errorf("unexpected token %+v", token)
		}
		if !token.Expiry.Equal(expiry) {
			t.Errorf("expected expiry %v, got %v", expiry, token.Expiry)
		}
		if loaded.Classify.TrackDelay.Duration != 100*time.Millisecond {
			t.Errorf("expected track delay to survive save, got %v", loaded.Classify.TrackDelay)
		}
	})

	t.Run("Update keeps refresh token", func(t *testing.T) {
		sc := SpotifyConfig{RefreshToken: "old"}
		if err := sc.Update(&oauth2.Token{AccessToken: "new"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if sc.RefreshToken != "old" {
			t.Errorf("expected refresh token to be kept, got %q", sc.RefreshToken)
		}
		if err := sc.Update(nil); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("Validate", func(t *testing.T) {
		tt := []struct {
			name   string
			mutate func(*Config)
		}{
			{name: "zero threshold", mutate: func(c *Config) { c.Classify.Threshold = 0 }},
			{name: "threshold above one", mutate: func(c *Config) { c.Classify.Threshold = 1.5 }},
			{name: "empty store path", mutate: func(c *Config) { c.Store.Path = "" }},
			{name: "source without label", mutate: func(c *Config) { c.Gather.Sources = []GatherSource{{PlaylistID: "x"}} }},
		}

		for _, tc := range tt {
			t.Run(tc.name, func(t *testing.T) {
				config := DefaultConfig()
				tc.mutate(config)
				if err := config.Validate(); !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("expected ErrInvalidConfig, got %v", err)
				}
			})
		}
	})
}
