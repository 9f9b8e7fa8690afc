package identity

import (
	"fmt"
	"time"

	"github.com/okian/wallsync/internal/domain/model"
	"github.com/okian/wallsync/internal/domain/wall"
)

// Config carries the per-session thresholds of the resolver.
type Config struct {
	// VoteThreshold is the minimum co-occurrence count binding a tracking id
	// to a device.
	VoteThreshold int
	// BodyDeviceWindow and BodyDeviceDistance bound device voting. The
	// distance is planar (x and z).
	BodyDeviceWindow   time.Duration
	BodyDeviceDistance float64

	TouchInjectionWindow time.Duration
	InjectionEventWindow time.Duration
	BodyTouchWindow      time.Duration
	// MinWallDistance and ArmSpan bound how far from the wall a body may
	// stand to reach a touch, in metres.
	MinWallDistance float64
	ArmSpan         float64
	// BorderDistance is the reach, in metres, within which a body is
	// considered able to have made a touch.
	BorderDistance float64

	IgnoreTrackings []model.TrackingID
	DropUnresolved  bool

	Borders     wall.Borders
	Calibration wall.Calibration
}

// DefaultConfig returns the thresholds used in the study.
func DefaultConfig() Config {
	return Config{
		VoteThreshold:        5,
		BodyDeviceWindow:     150 * time.Millisecond,
		BodyDeviceDistance:   0.6,
		TouchInjectionWindow: 150 * time.Millisecond,
		InjectionEventWindow: 2 * time.Millisecond,
		BodyTouchWindow:      75 * time.Millisecond,
		MinWallDistance:      0.7,
		ArmSpan:              0.8,
		BorderDistance:       1.5,
		Borders:              wall.DefaultBorders(),
		Calibration:          wall.DefaultCalibration(),
	}
}

// Validate rejects thresholds outside their domain.
func (c Config) Validate() error {
	if c.VoteThreshold < 1 {
		return fmt.Errorf("%w: vote threshold %d", ErrInvalidConfig, c.VoteThreshold)
	}
	for name, d := range map[string]time.Duration{
		"body/device window":     c.BodyDeviceWindow,
		"touch/injection window": c.TouchInjectionWindow,
		"injection/event window": c.InjectionEventWindow,
		"body/touch window":      c.BodyTouchWindow,
	} {
		if d < 0 {
			return fmt.Errorf("%w: negative %s", ErrInvalidConfig, name)
		}
	}
	if c.BodyDeviceDistance <= 0 || c.ArmSpan <= 0 || c.BorderDistance <= 0 {
		return fmt.Errorf("%w: distances must be positive", ErrInvalidConfig)
	}
	return nil
}
