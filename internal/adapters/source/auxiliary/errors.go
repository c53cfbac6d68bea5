package auxiliary

import "errors"

// ErrMirror wraps failures of the SQLite team mirror.
var ErrMirror = errors.New("team mirror failed")
