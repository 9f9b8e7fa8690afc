package normalize

import (
	"time"

	"github.com/okian/wallsync/internal/domain/model"
	"github.com/okian/wallsync/internal/domain/wall"
)

// Option applies a configuration option to the Normalizer.
type Option func(*Normalizer)

// WithLocation sets the time zone the day and time columns are logged in.
func WithLocation(loc *time.Location) Option {
	return func(n *Normalizer) {
		if loc != nil {
			n.location = loc
		}
	}
}

// WithCalibration sets the camera to wall mapping applied to body positions.
func WithCalibration(c wall.Calibration) Option {
	return func(n *Normalizer) {
		n.calibration = c
	}
}

// WithDeviceAliases replaces the device alias table. Keys are raw ids,
// values the canonical ids they stand for.
func WithDeviceAliases(aliases map[string]string) Option {
	return func(n *Normalizer) {
		n.aliases = make(map[model.DeviceID]model.DeviceID, len(aliases))
		for k, v := range aliases {
			n.aliases[model.DeviceID(k)] = model.DeviceID(v)
		}
	}
}
