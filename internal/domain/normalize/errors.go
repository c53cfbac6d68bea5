package normalize

import "errors"

// ErrInputMissing is reported when the raw API files of a run are absent.
var ErrInputMissing = errors.New("normalizer input missing")
