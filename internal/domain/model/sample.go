// Package model holds the typed samples, identifiers and fused records shared
// by the normalizer, the identity resolver and the resampler.
package model

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Timed is implemented by every sample kind flowing through a Stream.
type Timed interface {
	Timestamp() float64
}

// TrackingID is an anonymous skeleton id reported by the body tracker.
type TrackingID string

// DeviceID is the id a handheld device reports in its own logs.
type DeviceID string

// Pixel is an integer position on the wall display.
type Pixel struct {
	X int
	Y int
}

// Body is one tracked joint of one skeleton at one instant.
// Position is in wall coordinates: metres, origin at the lower left corner
// of the wall, x to the right, y up, z away from the wall.
type Body struct {
	Time     float64
	Tracking TrackingID
	Position r3.Vec
}

// Timestamp implements Timed.
func (b Body) Timestamp() float64 { return b.Time }

// DevicePosition is a pose sample of a handheld device.
type DevicePosition struct {
	Time        float64
	Device      DeviceID
	Screen      Pixel
	ScreenX     float64
	ScreenY     float64
	Space       r3.Vec
	Orientation r3.Vec // pitch, yaw, roll in radians
}

// Timestamp implements Timed.
func (d DevicePosition) Timestamp() float64 { return d.Time }

// Injection is a touch the wall received from a device rather than a finger.
type Injection struct {
	Time     float64
	Position Pixel
}

// Timestamp implements Timed.
func (i Injection) Timestamp() float64 { return i.Time }

// DeviceEvent is an interaction logged on the device itself.
type DeviceEvent struct {
	Time   float64
	Device DeviceID
	Canvas Pixel
	Kind   string // raw event type, e.g. "CURSOR DOWN"
}

// Timestamp implements Timed.
func (e DeviceEvent) Timestamp() float64 { return e.Time }
