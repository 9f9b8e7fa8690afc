package fusion

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/okian/wallsync/internal/domain/filter"
	"github.com/okian/wallsync/internal/domain/identity"
	"github.com/okian/wallsync/internal/domain/resample"
	"github.com/okian/wallsync/internal/domain/stroke"
)

// Joints used by the study.
const (
	DefaultBodyDeviceJoint = "OKS_SPINE_MID"
	DefaultBodyTouchJoint  = "OKS_SPINE_SHOULDER"
)

// Config describes one session run.
type Config struct {
	Session string

	// BodyDeviceJoint is the joint correlated with device positions and
	// emitted as the user's head trajectory. BodyTouchJoint is the joint
	// used to attribute touches.
	BodyDeviceJoint string
	BodyTouchJoint  string

	Identity identity.Config

	Filter        filter.Params
	FilterUsers   bool
	FilterDevices bool

	// TimeStep is the tick of the resampled trajectories, in seconds.
	TimeStep float64
	// SessionTimeOffset shifts the start of the tick grid past the first
	// body sample, in seconds.
	SessionTimeOffset float64
	HeadPadding       resample.Padding
	DevicePadding     resample.Padding

	StrokeGap  float64
	StrokeBase float64

	Location      *time.Location
	DeviceAliases map[string]string
	// Seed is a mapping table from an earlier run. Seeded tracking ids keep
	// their user.
	Seed []identity.Entry
}

// DefaultConfig returns the settings of the study at 30 Hz.
func DefaultConfig() Config {
	return Config{
		BodyDeviceJoint: DefaultBodyDeviceJoint,
		BodyTouchJoint:  DefaultBodyTouchJoint,
		Identity:        identity.DefaultConfig(),
		Filter:          filter.DefaultParams(),
		FilterUsers:     true,
		FilterDevices:   true,
		TimeStep:        1.0 / 30,
		HeadPadding:     resample.DefaultPadding(),
		DevicePadding: resample.Padding{
			Position: r3.Vec{X: 2, Y: 1, Z: 2},
			Extra:    []float64{-1, -1},
		},
		StrokeGap:  stroke.DefaultGap,
		StrokeBase: stroke.DefaultBase,
		Location:   time.UTC,
		DeviceAliases: map[string]string{
			"3": "2",
		},
	}
}

// Validate rejects a configuration before any input is read.
func (c Config) Validate() error {
	if c.BodyDeviceJoint == "" || c.BodyTouchJoint == "" {
		return fmt.Errorf("%w: joint names must be set", ErrInvalidConfig)
	}
	if !(c.TimeStep > 0) {
		return fmt.Errorf("%w: time step %v", ErrInvalidConfig, c.TimeStep)
	}
	if c.SessionTimeOffset < 0 {
		return fmt.Errorf("%w: negative session time offset", ErrInvalidConfig)
	}
	if c.StrokeGap < 0 || c.StrokeBase < 0 {
		return fmt.Errorf("%w: negative stroke gap or base", ErrInvalidConfig)
	}
	if c.FilterUsers || c.FilterDevices {
		if err := c.Filter.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	if err := c.Identity.Validate(); err != nil {
		return err
	}
	return nil
}
