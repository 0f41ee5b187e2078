package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/moodsort/internal/models"
	"github.com/desertthunder/moodsort/internal/server"
	"github.com/desertthunder/moodsort/internal/services"
	"github.com/desertthunder/moodsort/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// SpotifyAuth performs OAuth2 authentication flow for Spotify.
//
// Starts a local HTTP server, opens browser for user authorization, and exchanges auth code for tokens.
func (r *Runner) SpotifyAuth(ctx context.Context, cmd *cli.Command) error {
	creds := r.config.Credentials.Spotify
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return fmt.Errorf("%w: Spotify client_id and client_secret must be set in %s", shared.ErrInvalidArgument, r.configPath)
	}

	if r.spotify == nil {
		svc, err := services.NewSpotifyService(creds.Map(), services.WithLogger(r.logger))
		if err != nil {
			return fmt.Errorf("failed to create Spotify service: %w", err)
		}
		svc.SetTokenRefreshCallback(r.persistToken)
		r.spotify = svc
		r.catalog = svc
	}

	if _, err := r.authorize(ctx, "authorization"); err != nil {
		return err
	}

	r.writePlain("✓ Tokens saved to %s\n\n", r.configPath)
	r.writePlain("You can now use: moodsort spotify playlists\n")
	return nil
}

// authorize runs the browser flow, installs the token and persists it.
func (r *Runner) authorize(ctx context.Context, prefix string) (*oauth2.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	token, err := server.AwaitToken(ctx, server.AuthFlow{
		Addr:   addr,
		Config: r.spotify.OAuthConfig(),
		State:  state,
		Logger: r.logger,
		Open: func(authURL string) error {
			r.writePlain("→ Opening browser for Spotify %s...\n", prefix)
			if err := shared.OpenBrowser(authURL); err != nil {
				r.writePlainln("⚠ Could not open browser automatically.")
				r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
				return err
			}
			r.writePlain("→ Waiting for authorization (%s timeout)...\n", server.DefaultAuthTimeout)
			return nil
		},
	})
	if err != nil {
		if errors.Is(err, server.ErrAuthTimeout) {
			return nil, fmt.Errorf("%w: %v", shared.ErrTimeout, err)
		}
		return nil, err
	}

	r.spotify.SetToken(ctx, token)
	if err := r.config.Credentials.Spotify.Update(token); err != nil {
		return nil, fmt.Errorf("failed to update spotify configuration: %w", err)
	}
	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		return nil, fmt.Errorf("failed to save config: %w", err)
	}

	r.writePlainln("✓ Spotify %s successful", prefix)
	return token, nil
}

// withReauth runs fn, reauthorizing once and retrying when the Spotify token has expired for good.
func (r *Runner) withReauth(ctx context.Context, fn func() error) error {
	err := fn()
	if err == nil || !errors.Is(err, shared.ErrTokenExpired) || r.spotify == nil {
		return err
	}

	r.writePlainln("⚠ Authentication token expired. Starting reauthorization...")
	if _, authErr := r.authorize(ctx, "reauthorization"); authErr != nil {
		return fmt.Errorf("reauthorization failed: %w", authErr)
	}
	r.writePlain("✓ Retrying operation...\n\n")
	return fn()
}

// SpotifyPlaylists lists the user's playlists with optional limit.
func (r *Runner) SpotifyPlaylists(ctx context.Context, cmd *cli.Command) error {
	limit := cmd.Int("limit")
	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")

	catalog, err := r.requireCatalog()
	if err != nil {
		return err
	}

	r.logger.Infof("listing spotify playlists with limit %v", limit)

	var playlists []models.Playlist
	err = r.withReauth(ctx, func() error {
		var listErr error
		playlists, listErr = catalog.ListUserPlaylists(ctx)
		return listErr
	})
	if err != nil {
		return err
	}

	if limit > 0 && limit < len(playlists) {
		playlists = playlists[:limit]
	}

	if useJSON {
		return r.writeJSON(playlists, pretty)
	}

	r.writePlain("Found %d playlists:\n\n", len(playlists))
	for i, p := range playlists {
		r.writePlain("%d. %s\n", i+1, p.Name)
		if p.Description != "" {
			r.writePlain("   Description: %s\n", p.Description)
		}
		r.writePlain("   ID: %s\n", p.ID)
		r.writePlain("   Tracks: %d\n", p.TrackCount)
		if p.Public {
			r.writePlain("   Visibility: Public\n")
		} else {
			r.writePlain("   Visibility: Private\n")
		}
		r.writePlain("\n")
	}

	return nil
}
