package logfiles

import "errors"

// Sentinel kinds for session log errors.
var (
	ErrSessionNotFound = errors.New("session directory not found")
	ErrMissingLog      = errors.New("session log missing")
)
