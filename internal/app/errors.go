package service

import "errors"

// Sentinel kinds for batch run errors.
var (
	ErrNotStarted     = errors.New("service not started")
	ErrNoSessions     = errors.New("no sessions found")
	ErrSessionsFailed = errors.New("sessions failed")
)
