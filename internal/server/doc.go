// Package server runs the short-lived HTTP server that completes the Spotify authorization code flow.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
// [Logging] is the middleware the CLI installs; it writes one structured line per request.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # OAuth Callback Handler
//
// [OAuthHandler] validates the state parameter (CSRF protection), exchanges the authorization code for tokens,
// and sends the result through a channel. It only processes one callback to prevent replay attacks.
//
// # Flow
//
// [AwaitToken] starts a server on the configured callback address (localhost:3000 by default), hands the
// authorization URL to the caller, waits for the callback or a timeout, and shuts the server down again.
// The resulting token is persisted to config.toml by the CLI and refreshed automatically afterwards.
package server
