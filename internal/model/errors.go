package model

import "errors"

// Pipeline error taxonomy. Handlers map these to HTTP responses; anything not
// in this list is treated as an internal error.
var (
	// ErrInvalidInput rejects malformed or oversized messages before any
	// state mutation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSessionNotActive means the session is paused, completed or abandoned.
	ErrSessionNotActive = errors.New("session not active")

	// ErrSessionNotFound means the session token resolved to nothing.
	ErrSessionNotFound = errors.New("session not found")

	// ErrConflict means a concurrent request updated the session first; the
	// caller should not retry blindly.
	ErrConflict = errors.New("session updated concurrently")

	// ErrContentFiltered means the model backend refused the content.
	// Non-retryable; callers show a neutral message instead of retrying.
	ErrContentFiltered = errors.New("content filtered")

	// ErrTransient is a retryable backend hiccup. No state was mutated.
	ErrTransient = errors.New("transient backend error")

	// ErrClassifierDegraded marks a secondary signal (coverage, quality,
	// completion, compression) that fell back to its conservative default.
	// Logged, never surfaced to the respondent.
	ErrClassifierDegraded = errors.New("classifier degraded")
)
