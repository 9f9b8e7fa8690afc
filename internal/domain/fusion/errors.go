package fusion

import (
	"errors"
)

// Sentinel kinds for pipeline errors.
var (
	ErrInvalidConfig = errors.New("invalid fusion config")
	ErrMissingSource = errors.New("missing session source")
	ErrEmptySession  = errors.New("session has no body or device samples")
)
