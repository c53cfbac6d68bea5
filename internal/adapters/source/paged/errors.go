package paged

import "errors"

var (
	// ErrRetriesExhausted is returned when a page used up its attempt budget.
	ErrRetriesExhausted = errors.New("fetch retries exhausted")
	// ErrDeadlineExceeded is returned when a fetch ran past its deadline.
	ErrDeadlineExceeded = errors.New("fetch deadline exceeded")
	// ErrUnexpectedStatus describes a non-success HTTP response.
	ErrUnexpectedStatus = errors.New("unexpected status")
)
