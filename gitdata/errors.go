package gitdata

import (
	"errors"
	"fmt"
)

var (
	// ErrRemoteLookup marks a failed read of remote
	// state (branch or reference lookup).
	ErrRemoteLookup = errors.New("remote lookup failed")

	// ErrRemoteWrite marks a failed object creation or
	// reference update.
	ErrRemoteWrite = errors.New("remote write failed")

	// ErrMissingSHA is returned when a response lacks
	// the identifier field the caller needs.
	ErrMissingSHA = errors.New("missing sha in response")

	// ErrRefMoved is returned when a branch no longer
	// points at the expected parent commit.
	ErrRefMoved = errors.New("branch moved")

	// ErrBlobMismatch is returned when the service
	// reports a blob id different from the local one.
	ErrBlobMismatch = errors.New("blob id mismatch")
)

// StatusError reports a non-2xx response.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

// Error implements error.
func (e *StatusError) Error() string {
	return fmt.Sprintf(
		"%s %s: unexpected status %d",
		e.Method, e.URL, e.StatusCode,
	)
}

// LookupError wraps err as a remote lookup failure.
func LookupError(errCtx string, err error) error {
	return fmt.Errorf(
		"%s: %w: %w", errCtx, ErrRemoteLookup, err,
	)
}

// WriteError wraps err as a remote write failure.
func WriteError(errCtx string, err error) error {
	return fmt.Errorf(
		"%s: %w: %w", errCtx, ErrRemoteWrite, err,
	)
}
