package pipeline

import "errors"

// ErrStage wraps the error of the stage that aborted a run.
var ErrStage = errors.New("pipeline stage failed")
