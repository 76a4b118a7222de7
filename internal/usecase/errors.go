package usecase

import "errors"

var (
	// ErrForbidden is returned when a principal addresses a record it does
	// not own and is not an admin.
	ErrForbidden = errors.New("forbidden")

	// ErrNotReady is returned when a download is requested for a job that
	// has not completed.
	ErrNotReady = errors.New("job output not ready")

	// ErrConflictingState is returned when an operation's status
	// precondition does not hold, e.g. requeueing a job that is not failed.
	ErrConflictingState = errors.New("conflicting job state")
)
