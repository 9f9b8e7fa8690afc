package filter

import (
	"errors"
)

// Sentinel configuration errors. Filters reject them at construction time.
var (
	ErrInvalidAlpha     = errors.New("alpha must be in (0, 1]")
	ErrInvalidFrequency = errors.New("frequency must be > 0")
	ErrInvalidCutoff    = errors.New("cutoff must be > 0")
	ErrInvalidBeta      = errors.New("beta must be >= 0")
)
