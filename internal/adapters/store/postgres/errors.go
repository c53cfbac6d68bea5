package postgres

import "errors"

var (
	// ErrConnect is returned when the pool cannot reach the database.
	ErrConnect = errors.New("postgres connect failed")
	// ErrMigrate wraps schema migration failures.
	ErrMigrate = errors.New("postgres migrate failed")
	// ErrQuery wraps read query failures.
	ErrQuery = errors.New("postgres query failed")
)
