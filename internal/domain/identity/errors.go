package identity

import "errors"

// Sentinel kinds for identity errors.
var (
	ErrInvalidConfig = errors.New("invalid identity config")
	ErrUnsorted      = errors.New("stream not sorted by time")
)
