// Package apperr holds the sentinel errors shared across layers.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidInput  = errors.New("invalid input")

	// ErrWriteFailed is returned when the write endpoint answers status "error".
	ErrWriteFailed = errors.New("write failed")
	// ErrNotConfigured is returned when the write endpoint answers status
	// "skipped" or has no URL: a configuration problem, not a runtime failure.
	ErrNotConfigured = errors.New("server not configured")
)
