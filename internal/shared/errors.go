package shared

import "errors"

var (
	ErrNotImplemented = errors.New("not implemented")

	// Configuration errors
	ErrMissingConfig      = errors.New("configuration not found")
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrMissingCredentials = errors.New("missing credentials")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Authentication errors
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrTokenExpired     = errors.New("access token expired")
	ErrTimeout          = errors.New("operation timed out")

	// Pipeline errors
	ErrExtractionFailed   = errors.New("feature extraction failed")
	ErrCatalogUnavailable = errors.New("catalog unavailable")
	ErrPersistence        = errors.New("feature store write failed")
	ErrModelUnavailable   = errors.New("model unavailable")
	ErrStoreLocked        = errors.New("feature store is locked by another run")
	ErrPlaylistNotFound   = errors.New("playlist not found")
	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrServiceUnavailable = errors.New("service unavailable")

	// Input validation errors
	ErrInvalidInput    = errors.New("invalid input")
	ErrMissingArgument = errors.New("missing required argument")
	ErrInvalidArgument = errors.New("invalid argument")
)
