package app

import "errors"

// ErrUnknownJob is returned by Run for a job name it does not know.
var ErrUnknownJob = errors.New("unknown job")
