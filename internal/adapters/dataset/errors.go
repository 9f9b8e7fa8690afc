package dataset

import "errors"

// ErrUnknownArtifact is returned for an artifact name the writer has no layout for.
var ErrUnknownArtifact = errors.New("unknown dataset artifact")
