// Package services implements the remote collaborators of the pipeline: the [Catalog] backed by the
// Spotify Web API and the [Extractor] and [Classifier] backed by the analysis proxy.
//
// # Spotify Implementation
//
// [SpotifyService] uses OAuth2 for authentication with automatic token refresh.
// The token source refreshes expired access tokens using the refresh token; callers persist the
// current token with [SpotifyService.Token] after a run.
//
// Requests that fail at the transport level, or with 429 or 5xx, are retried with exponential
// backoff. A Retry-After header overrides the computed delay.
//
// # Analysis Proxy
//
// [AnalysisService] talks JSON to the HTTP service that downloads audio, computes features and
// hosts the trained model:
//   - POST /features : features for an (artist, title) pair
//   - GET /model : the model's label set
//   - POST /predict : the probability distribution for a feature vector
//
// # Error Handling
//
// Services wrap sentinel errors from the shared package:
//   - [shared.ErrNotAuthenticated] : Authenticate() not called
//   - [shared.ErrTokenExpired] : OAuth token rejected, reauthorization needed
//   - [shared.ErrCatalogUnavailable] : Spotify request failed
//   - [shared.ErrPlaylistNotFound] : Playlist ID not found
//   - [shared.ErrExtractionFailed] : Features could not be produced for a track
//   - [shared.ErrModelUnavailable] : The model could not be reached or answered badly
package services
