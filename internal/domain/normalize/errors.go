package normalize

import "errors"

// Sentinel kinds for normalization errors. Every decoding failure wraps one
// of them together with the row and column it happened at.
var (
	ErrEmptyTable     = errors.New("log has no header")
	ErrMissingColumn  = errors.New("missing column")
	ErrMalformedValue = errors.New("malformed value")
)
