package service

import "errors"

// Sentinel errors returned by the service.
var (
	ErrNotStarted           = errors.New("service not started")
	ErrMissingUser          = errors.New("user id is required")
	ErrCatalogNotConfigured = errors.New("catalog base url is not configured")
	ErrLibraryUnavailable   = errors.New("library unavailable")
)
