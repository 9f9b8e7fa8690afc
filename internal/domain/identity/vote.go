package identity

import (
	"time"

	"github.com/okian/wallsync/internal/domain/join"
	"github.com/okian/wallsync/internal/domain/model"
)

// Pair keys a device vote.
type Pair struct {
	Tracking model.TrackingID
	Device   model.DeviceID
}

// Votes counts how often a tracking id was seen near a device.
type Votes = join.Tally[Pair]

// Vote tallies, for every body sample, the device positions within window
// whose planar (x, z) distance to the body is at most maxDist.
func Vote(bodies []model.Body, devices []model.DevicePosition, window time.Duration, maxDist float64) Votes {
	m := join.New(devices, model.DevicePosition.Timestamp, join.Symmetric(window.Seconds()))
	limit := maxDist * maxDist
	return join.Count(bodies, model.Body.Timestamp, m,
		func(b model.Body, d model.DevicePosition) bool {
			dx := b.Position.X - d.Space.X
			dz := b.Position.Z - d.Space.Z
			return dx*dx+dz*dz <= limit
		},
		func(b model.Body, d model.DevicePosition) Pair {
			return Pair{Tracking: b.Tracking, Device: d.Device}
		},
		nil)
}
