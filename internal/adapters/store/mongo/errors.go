package mongo

import "errors"

// ErrConnect is returned when the server cannot be reached.
var ErrConnect = errors.New("mongo connect failed")
