package pipeline

import "errors"

// Error taxonomy. Lower-layer sentinels are wrapped alongside these, so
// errors.Is matches either.
var (
	// ErrConfiguration rejects a request before any work starts.
	ErrConfiguration = errors.New("configuration error")
	// ErrExtraction means the source could not be read; re-upload it.
	ErrExtraction = errors.New("extraction error")
	// ErrPersistence is a failed storage call. It is fatal to a running job.
	ErrPersistence = errors.New("persistence error")

	ErrJobNotFound      = errors.New("job not found")
	ErrJobNotPending    = errors.New("job is not pending")
	ErrMaterialNotFound = errors.New("material not found")
	// ErrInvalidTransition is a status change the state machine forbids.
	ErrInvalidTransition = errors.New("invalid job transition")
	ErrQueueFull         = errors.New("job queue is full")
)
