package model

import "time"

// RunStatus is the lifecycle state of a pipeline run.
type RunStatus string

const (
	RunQueued    RunStatus = "queued"
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// Done reports whether the run reached a final state.
func (s RunStatus) Done() bool {
	return s == RunSucceeded || s == RunFailed || s == RunCancelled
}

// RunRequest asks for one pipeline run.
type RunRequest struct {
	ID          string
	RequestedAt time.Time
	// Origin says who asked, e.g. "http" or "cli".
	Origin string
}
