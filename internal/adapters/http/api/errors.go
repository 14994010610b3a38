package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrMethodNotAllowed  = errors.New("method not allowed")
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidToken      = errors.New("invalid token")
	ErrClientUnavailable = errors.New("failed to obtain matching client")
)
