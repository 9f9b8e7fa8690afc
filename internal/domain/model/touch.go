package model

import (
	"fmt"
	"strings"
)

// UserID is the small stable per-study id a tracking entity resolves to.
type UserID int

// Sentinel user ids.
const (
	// Neutral is emitted for touches that stayed unresolved.
	Neutral UserID = 0
	// Unresolved marks a touch no resolution stage has claimed yet.
	Unresolved UserID = -1
	// Ignored marks a touch on a display border. It is terminal.
	Ignored UserID = -2
)

// Resolved reports whether id names a real user.
func (id UserID) Resolved() bool { return id > 0 }

// TouchType is the phase of a touch contact.
type TouchType string

// Touch phases.
const (
	TouchDown   TouchType = "DOWN"
	TouchMotion TouchType = "MOTION"
	TouchUp     TouchType = "UP"
)

// ParseTouchType accepts "DOWN", "TOUCH_DOWN", "CURSOR DOWN" and friends.
func ParseTouchType(raw string) (TouchType, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if i := strings.LastIndexAny(s, "_ "); i >= 0 {
		s = s[i+1:]
	}
	switch TouchType(s) {
	case TouchDown, TouchMotion, TouchUp:
		return TouchType(s), nil
	default:
		return "", fmt.Errorf("unknown touch type %q", raw)
	}
}

// Touch is one wall touch row. User starts Unresolved and is set at most
// once by the identity resolver.
type Touch struct {
	Time     float64
	Position Pixel
	Duration float64
	Injected bool
	Type     TouchType
	User     UserID
}

// Timestamp implements Timed.
func (t Touch) Timestamp() float64 { return t.Time }

// DeviceTouch is a cursor event on a device, attributed to the device's user.
type DeviceTouch struct {
	Time     float64
	User     UserID
	Position Pixel
	Type     TouchType
}

// Timestamp implements Timed.
func (t DeviceTouch) Timestamp() float64 { return t.Time }
