package trigger

import "errors"

var (
	// ErrRequest wraps transport failures and unexpected statuses.
	ErrRequest = errors.New("trigger request failed")
	// ErrRejected is returned when the server refuses a run.
	ErrRejected = errors.New("run rejected")
)
