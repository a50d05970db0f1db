package service

import "errors"

// Common service errors. The API layer maps them to HTTP status codes with
// errors.Is.
var (
	// ErrAdminRequired indicates the caller is not an administrator.
	// API layer should map this to HTTP 403 Forbidden.
	ErrAdminRequired = errors.New("administrator privileges required")

	// ErrInvalidRequest indicates the request parameters are unusable.
	// API layer should map this to HTTP 400 Bad Request.
	ErrInvalidRequest = errors.New("invalid request")
)
