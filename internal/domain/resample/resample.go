// Package resample turns an irregular, smoothed trajectory into one point per
// fixed tick over the whole session, padding the time before the first and
// after the last sample.
package resample

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/okian/wallsync/internal/domain/model"
)

// Sentinel kinds for resampling errors.
var (
	ErrInvalidRange = errors.New("invalid resample range")
	ErrUnsorted     = errors.New("frames not sorted by time")
)

// tickEpsilon absorbs float error when a duration is an exact multiple of
// the step.
const tickEpsilon = 1e-9

// Range is the tick grid: Start, Start+Step, ... up to Start+Duration.
type Range struct {
	Start    float64
	Duration float64
	Step     float64
}

// Validate rejects non-positive steps and negative durations.
func (r Range) Validate() error {
	if !(r.Step > 0) || math.IsInf(r.Step, 0) {
		return fmt.Errorf("%w: step %v", ErrInvalidRange, r.Step)
	}
	if r.Duration < 0 || math.IsNaN(r.Duration) || math.IsInf(r.Duration, 0) {
		return fmt.Errorf("%w: duration %v", ErrInvalidRange, r.Duration)
	}
	return nil
}

// Count is the number of ticks, floor(Duration/Step) + 1.
func (r Range) Count() int {
	return int(math.Floor(r.Duration/r.Step+tickEpsilon)) + 1
}

// Tick returns the time of tick k.
func (r Range) Tick(k int) float64 {
	return r.Start + float64(k)*r.Step
}

// Padding is what a tick outside the sampled span carries. The prefix sum
// is carried over unchanged.
type Padding struct {
	Position    r3.Vec
	Orientation r3.Vec
	Extra       []float64
}

// DefaultPadding places absent users behind the tracked area, facing the
// wall.
func DefaultPadding() Padding {
	return Padding{Position: r3.Vec{X: 2, Y: 1, Z: 2}}
}

// Resample returns exactly rng.Count() points. Ticks between two frames are
// linearly interpolated in every channel; ticks before the first or after
// the last frame are synthetic and carry pad.
func Resample(frames []model.Frame, rng Range, pad Padding) ([]model.TrajectoryPoint, error) {
	if err := rng.Validate(); err != nil {
		return nil, err
	}
	if !model.IsSorted(frames) {
		return nil, ErrUnsorted
	}

	n := rng.Count()
	out := make([]model.TrajectoryPoint, n)
	var sum r3.Vec
	j := 0
	for k := 0; k < n; k++ {
		t := rng.Tick(k)
		p := model.TrajectoryPoint{Time: t}

		if len(frames) == 0 || t < frames[0].Time || t > frames[len(frames)-1].Time {
			p.Position = pad.Position
			p.Orientation = pad.Orientation
			p.Extra = append([]float64(nil), pad.Extra...)
			p.Synthetic = true
			p.PrefixSum = sum
			out[k] = p
			continue
		}

		for j+1 < len(frames) && frames[j+1].Time <= t {
			j++
		}
		a := frames[j]
		if a.Time == t || j+1 == len(frames) {
			p.Position, p.Orientation = a.Position, a.Orientation
			p.Extra = append([]float64(nil), a.Extra...)
		} else {
			b := frames[j+1]
			f := (t - a.Time) / (b.Time - a.Time)
			p.Position = lerpVec(a.Position, b.Position, f)
			p.Orientation = lerpVec(a.Orientation, b.Orientation, f)
			p.Extra = lerpSlice(a.Extra, b.Extra, f)
		}
		sum = r3.Add(sum, p.Position)
		p.PrefixSum = sum
		out[k] = p
	}
	return out, nil
}

func lerpVec(a, b r3.Vec, f float64) r3.Vec {
	return r3.Add(a, r3.Scale(f, r3.Sub(b, a)))
}

func lerpSlice(a, b []float64, f float64) []float64 {
	if len(a) != len(b) {
		return append([]float64(nil), a...)
	}
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] + f*(b[i]-a[i])
	}
	return out
}
