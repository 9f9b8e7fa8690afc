package model

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Frame is one irregular input sample of a trajectory, already smoothed.
// Extra carries additional channels interpolated alongside the position,
// e.g. the device's screen cursor.
type Frame struct {
	Time        float64
	Position    r3.Vec
	Orientation r3.Vec
	Extra       []float64
}

// Timestamp implements Timed.
func (f Frame) Timestamp() float64 { return f.Time }

// TrajectoryPoint is one fixed-rate tick of a user's fused trajectory.
type TrajectoryPoint struct {
	Time        float64
	Position    r3.Vec
	Orientation r3.Vec
	Extra       []float64
	// PrefixSum is the running sum of all non-synthetic positions up to and
	// including this tick.
	PrefixSum r3.Vec
	// Viewpoint is where the orientation ray meets the wall plane, if it does.
	Viewpoint    r3.Vec
	HasViewpoint bool
	Synthetic    bool
}

// Timestamp implements Timed.
func (p TrajectoryPoint) Timestamp() float64 { return p.Time }

// Track is the resampled trajectory of one user for one modality.
type Track struct {
	User   UserID
	Points []TrajectoryPoint
}
