package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
)

// ErrAuthTimeout is returned when no callback arrives in time.
var ErrAuthTimeout = errors.New("authorization timed out")

// DefaultAuthTimeout bounds how long [AwaitToken] waits for the browser.
const DefaultAuthTimeout = 2 * time.Minute

// AuthFlow configures one authorization code round trip.
type AuthFlow struct {
	Addr    string         // Listen address, e.g. 127.0.0.1:3000
	Config  *oauth2.Config // Client configuration; RedirectURI must point at Addr
	State   string         // CSRF token
	Timeout time.Duration  // Defaults to DefaultAuthTimeout
	Logger  *log.Logger

	// Open is called with the authorization URL once the server is listening.
	Open func(authURL string) error
}

// AwaitToken serves the callback until a token arrives, the timeout passes or ctx ends.
// The server is always shut down before returning.
func AwaitToken(ctx context.Context, flow AuthFlow) (*oauth2.Token, error) {
	if flow.Config == nil {
		return nil, errors.New("oauth config is required")
	}
	if flow.Timeout <= 0 {
		flow.Timeout = DefaultAuthTimeout
	}
	logger := flow.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	handler := NewOAuthHandler(flow.Config, flow.State)
	router := NewBasicRouter()
	router.Use(Logging(logger), Recover(logger))
	router.Handler(handler)

	ln, err := net.Listen("tcp", flow.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", flow.Addr, err)
	}

	srv := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("waiting for OAuth callback", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("error shutting down callback server", "error", err)
		}
	}()

	if flow.Open != nil {
		if err := flow.Open(flow.Config.AuthCodeURL(flow.State, oauth2.AccessTypeOffline)); err != nil {
			logger.Warn("failed to open authorization URL", "error", err)
		}
	}

	timer := time.NewTimer(flow.Timeout)
	defer timer.Stop()

	var result OAuthResult
	select {
	case result = <-handler.Result():
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timer.C:
		return nil, fmt.Errorf("%w after %s", ErrAuthTimeout, flow.Timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}
	if result.Token == nil {
		return nil, errors.New("no token received")
	}
	return result.Token, nil
}
