package fusion

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/okian/wallsync/internal/domain/identity"
	"github.com/okian/wallsync/internal/domain/model"
	"github.com/okian/wallsync/internal/domain/resample"
	"github.com/okian/wallsync/internal/domain/stats"
)

// UserSample is one body sample of the device joint, labelled with its user.
type UserSample struct {
	Time        float64
	User        model.UserID
	Tracking    model.TrackingID
	Position    r3.Vec
	Orientation r3.Vec
}

// DeviceSample is one device pose, labelled with the device's user.
type DeviceSample struct {
	Time        float64
	User        model.UserID
	Screen      model.Pixel
	Space       r3.Vec
	Orientation r3.Vec
}

// Result is the fused dataset of one session.
type Result struct {
	Session string
	Range   resample.Range

	Users         []UserSample
	Touches       []model.Touch
	Devices       []DeviceSample
	DeviceTouches []model.DeviceTouch

	// Heads and DeviceTracks hold one resampled track per user, in user
	// order. Every track has Range.Count() points.
	Heads        []model.Track
	DeviceTracks []model.Track
	Strokes      []model.Touch

	Mapping    []identity.Entry
	Binding    identity.BindReport
	Resolution identity.Report
	Summary    stats.Summary
}
