// Package synth generates the raw logs of a scripted two-user session:
// two people walking in front of the wall, each holding a device, one
// touching the wall with a finger and one injecting touches from the device.
// The logs have the layout of the recorded study logs, and the script is
// known, so a fused result can be checked against it.
package synth

import (
	"time"

	"github.com/okian/wallsync/internal/domain/wall"
)

// Log kinds, as used in session file names.
const (
	KindBody           = "body_tracking"
	KindDevicePosition = "device_position"
	KindTouch          = "touch"
	KindInjection      = "touch_injection"
	KindDeviceEvent    = "device_event"
)

// Kinds lists every log kind of a session.
var Kinds = []string{KindBody, KindDevicePosition, KindTouch, KindInjection, KindDeviceEvent}

// Config controls the generated session.
type Config struct {
	Session string
	// Start is the wall clock time of the first sample.
	Start    time.Time
	Duration time.Duration
	// Rate is the body and device sampling rate in Hz.
	Rate float64
	// Noise is the standard deviation, in metres, of the tracker jitter.
	Noise float64
	Seed  int64
	// Gestures is the number of touch gestures each user makes.
	Gestures int

	BodyDeviceJoint string
	BodyTouchJoint  string
	Calibration     wall.Calibration
}

// DefaultConfig returns a 20 second session at 30 Hz.
func DefaultConfig() Config {
	return Config{
		Session:         "1",
		Start:           time.Date(2017, time.March, 14, 10, 0, 0, 0, time.UTC),
		Duration:        20 * time.Second,
		Rate:            30,
		Noise:           0.005,
		Seed:            1,
		Gestures:        5,
		BodyDeviceJoint: "OKS_SPINE_MID",
		BodyTouchJoint:  "OKS_SPINE_SHOULDER",
		Calibration:     wall.DefaultCalibration(),
	}
}
