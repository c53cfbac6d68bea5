package service

import "errors"

var (
	// ErrNotStarted is returned when runs are submitted before Start.
	ErrNotStarted = errors.New("service not started")
	// ErrRunNotFound is returned for unknown or evicted run ids.
	ErrRunNotFound = errors.New("run not found")
	// ErrQueueFull is returned when no more runs can wait.
	ErrQueueFull = errors.New("run queue full")
	// ErrNoStore is returned by reads when no relational store is configured.
	ErrNoStore = errors.New("no store configured")
)
