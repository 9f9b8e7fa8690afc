package worker

import "errors"

// ErrPanic wraps a panic raised while processing a session.
var ErrPanic = errors.New("session panicked")
