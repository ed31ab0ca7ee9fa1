package domain

import "errors"

// Admission errors are surfaced synchronously to the caller and never
// mutate meeting state beyond the documented transition.
var (
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrPayloadTooLarge      = errors.New("payload too large")
	ErrInvalidState         = errors.New("invalid meeting state")
	ErrInvalidChunk         = errors.New("invalid chunk")
	ErrIncompleteTransfer   = errors.New("incomplete transfer")
)

var (
	// ErrNotFound covers unknown meetings, sessions and jobs, including
	// records that exist but belong to another owner.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a requested transition clashes with
	// the meeting's current state or an active job.
	ErrConflict = errors.New("conflicting state")

	// ErrNotReady is returned by summary reads before processing finished.
	ErrNotReady = errors.New("summary not ready")

	// ErrStaleTransition is returned when a compare-and-set state change
	// loses to a concurrent transition.
	ErrStaleTransition = errors.New("stale transition")
)
