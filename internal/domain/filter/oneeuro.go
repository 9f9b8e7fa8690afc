// Package filter smooths jittery scalar signals before they are fused.
//
// OneEuro is the adaptive low-pass filter by Casiez et al.: its cutoff rises
// with the signal's speed, so slow motion is smoothed hard and fast motion
// keeps little lag. Filters are stateful and must see samples in time order.
package filter

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// LowPass is a first order exponential smoother.
type LowPass struct {
	alpha    float64
	last     float64
	smoothed float64
	primed   bool
}

// NewLowPass returns a filter with the given smoothing factor.
func NewLowPass(alpha float64) (*LowPass, error) {
	lp := &LowPass{}
	if err := lp.setAlpha(alpha); err != nil {
		return nil, err
	}
	return lp, nil
}

func (lp *LowPass) setAlpha(alpha float64) error {
	if !(alpha > 0 && alpha <= 1) {
		return fmt.Errorf("%w: %v", ErrInvalidAlpha, alpha)
	}
	lp.alpha = alpha
	return nil
}

// Filter feeds one value. The first call returns value unchanged.
func (lp *LowPass) Filter(value float64) float64 {
	s := value
	if lp.primed {
		s = lp.alpha*value + (1-lp.alpha)*lp.smoothed
	}
	lp.last = value
	lp.smoothed = s
	lp.primed = true
	return s
}

// FilterWithAlpha changes alpha and then feeds value.
func (lp *LowPass) FilterWithAlpha(value, alpha float64) (float64, error) {
	if err := lp.setAlpha(alpha); err != nil {
		return 0, err
	}
	return lp.Filter(value), nil
}

// LastValue returns the last raw value fed and whether there was one.
func (lp *LowPass) LastValue() (float64, bool) { return lp.last, lp.primed }

// Params configure a OneEuro filter.
type Params struct {
	Frequency float64 `koanf:"frequency"`
	MinCutoff float64 `koanf:"min_cutoff"`
	Beta      float64 `koanf:"beta"`
	DCutoff   float64 `koanf:"d_cutoff"`
}

// DefaultParams are the values used for body and device positions at 30 Hz.
func DefaultParams() Params {
	return Params{Frequency: 30, MinCutoff: 1, Beta: 1, DCutoff: 1}
}

// Validate checks the parameters without building a filter.
func (p Params) Validate() error {
	if !(p.Frequency > 0) || math.IsInf(p.Frequency, 1) {
		return fmt.Errorf("%w: %v", ErrInvalidFrequency, p.Frequency)
	}
	if !(p.MinCutoff > 0) {
		return fmt.Errorf("%w: min cutoff %v", ErrInvalidCutoff, p.MinCutoff)
	}
	if !(p.DCutoff > 0) {
		return fmt.Errorf("%w: derivative cutoff %v", ErrInvalidCutoff, p.DCutoff)
	}
	if !(p.Beta >= 0) || math.IsInf(p.Beta, 1) {
		return fmt.Errorf("%w: %v", ErrInvalidBeta, p.Beta)
	}
	return nil
}

// OneEuro is the two stage adaptive filter: a value stage whose cutoff is
// driven by a smoothed derivative stage.
type OneEuro struct {
	freq      float64
	minCutoff float64
	beta      float64
	dCutoff   float64

	x  *LowPass
	dx *LowPass

	lastTime float64
	hasTime  bool
}

// NewOneEuro builds a filter from p.
func NewOneEuro(p Params) (*OneEuro, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	f := &OneEuro{
		freq:      p.Frequency,
		minCutoff: p.MinCutoff,
		beta:      p.Beta,
		dCutoff:   p.DCutoff,
	}
	var err error
	if f.x, err = NewLowPass(f.alpha(f.minCutoff)); err != nil {
		return nil, err
	}
	if f.dx, err = NewLowPass(f.alpha(f.dCutoff)); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *OneEuro) alpha(cutoff float64) float64 {
	te := 1.0 / f.freq
	tau := 1.0 / (2 * math.Pi * cutoff)
	return 1.0 / (1.0 + tau/te)
}

// Filter smooths x observed at timestamp (seconds).
func (f *OneEuro) Filter(x, timestamp float64) float64 {
	if f.hasTime && timestamp != f.lastTime {
		if dt := timestamp - f.lastTime; dt > 0 {
			f.freq = 1.0 / dt
		}
	}
	f.lastTime = timestamp
	f.hasTime = true

	dx := 0.0
	if prev, ok := f.x.LastValue(); ok {
		dx = (x - prev) * f.freq
	}
	// With validated params the cutoff is at least minCutoff, so alpha only
	// leaves (0, 1] on a non-finite sample. Such a sample passes through raw.
	edx, err := f.dx.FilterWithAlpha(dx, f.alpha(f.dCutoff))
	if err != nil {
		return x
	}
	cutoff := f.minCutoff + f.beta*math.Abs(edx)
	out, err := f.x.FilterWithAlpha(x, f.alpha(cutoff))
	if err != nil {
		return x
	}
	return out
}

// Vec3 filters each axis of a position with its own OneEuro filter.
type Vec3 struct {
	x, y, z *OneEuro
}

// NewVec3 builds three filters sharing p.
func NewVec3(p Params) (*Vec3, error) {
	var (
		v   Vec3
		err error
	)
	for _, dst := range []**OneEuro{&v.x, &v.y, &v.z} {
		if *dst, err = NewOneEuro(p); err != nil {
			return nil, err
		}
	}
	return &v, nil
}

// Filter smooths p observed at timestamp.
func (v *Vec3) Filter(p r3.Vec, timestamp float64) r3.Vec {
	return r3.Vec{
		X: v.x.Filter(p.X, timestamp),
		Y: v.y.Filter(p.Y, timestamp),
		Z: v.z.Filter(p.Z, timestamp),
	}
}
