package service

import (
	"errors"
	"fmt"
)

// Error taxonomy for the lifecycle engine. Handlers translate these to
// HTTP statuses: not found -> 404, forbidden -> 403, conflict -> 409,
// invalid document -> 400, upstream -> 502.
var (
	// ErrNotFound is returned for a missing contract or blob.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned for a valid request in the wrong
	// lifecycle state (e.g. access requested before signing).
	ErrForbidden = errors.New("forbidden")

	// ErrConflict is returned when a sign request loses the race for
	// the pending -> signed transition.
	ErrConflict = errors.New("contract already signed")

	// ErrUnavailable is returned when an optional external collaborator
	// is not configured.
	ErrUnavailable = errors.New("service not configured")
)

// InvalidDocumentError signals malformed input (PDF or signature
// image). Not retried.
type InvalidDocumentError struct {
	Reason string
	Err    error
}

func (e *InvalidDocumentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid document: %s: %v", e.Reason, e.Err)
	}
	return "invalid document: " + e.Reason
}

func (e *InvalidDocumentError) Unwrap() error { return e.Err }

// UpstreamError signals that every storage or notification strategy
// was exhausted. Safe to retry with backoff.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s failed: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
