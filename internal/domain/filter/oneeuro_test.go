package filter_test

import (
	"errors"
	"math"
	"testing"

	"github.com/okian/wallsync/internal/domain/filter"
	. "github.com/smartystreets/goconvey/convey"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestLowPass(t *testing.T) {
	Convey("Given LowPass construction", t, func() {
		Convey("When alpha is outside (0, 1]", func() {
			for _, alpha := range []float64{0, -0.1, 1.0001, math.NaN()} {
				_, err := filter.NewLowPass(alpha)
				So(errors.Is(err, filter.ErrInvalidAlpha), ShouldBeTrue)
			}
		})

		Convey("When alpha is valid and the signal is constant", func() {
			for _, alpha := range []float64{0.01, 0.5, 1} {
				lp, err := filter.NewLowPass(alpha)
				So(err, ShouldBeNil)

				first := lp.Filter(3.25)
				second := lp.Filter(3.25)

				So(first, ShouldEqual, 3.25)
				So(second, ShouldAlmostEqual, 3.25, 1e-12)
			}
		})

		Convey("When a step is fed", func() {
			lp, _ := filter.NewLowPass(0.25)
			lp.Filter(0)
			out := lp.Filter(4)

			Convey("Then it moves by alpha of the step", func() {
				So(out, ShouldAlmostEqual, 1.0, 1e-12)
				last, ok := lp.LastValue()
				So(ok, ShouldBeTrue)
				So(last, ShouldEqual, 4)
			})
		})
	})
}

func TestOneEuro(t *testing.T) {
	Convey("Given OneEuro parameters", t, func() {
		Convey("When frequency or cutoffs are not positive", func() {
			bad := []filter.Params{
				{Frequency: 0, MinCutoff: 1, DCutoff: 1},
				{Frequency: 30, MinCutoff: 0, DCutoff: 1},
				{Frequency: 30, MinCutoff: 1, DCutoff: -1},
			}
			for i, p := range bad {
				_, err := filter.NewOneEuro(p)
				So(err, ShouldNotBeNil)
				if i == 0 {
					So(errors.Is(err, filter.ErrInvalidFrequency), ShouldBeTrue)
				} else {
					So(errors.Is(err, filter.ErrInvalidCutoff), ShouldBeTrue)
				}
			}
		})

		Convey("When beta is negative or not finite", func() {
			for _, beta := range []float64{-1, -0.001, math.NaN(), math.Inf(1)} {
				_, err := filter.NewOneEuro(filter.Params{Frequency: 30, MinCutoff: 1, Beta: beta, DCutoff: 1})
				So(errors.Is(err, filter.ErrInvalidBeta), ShouldBeTrue)
			}
		})

		Convey("When a ramp is fed with a positive beta", func() {
			f, err := filter.NewOneEuro(filter.Params{Frequency: 30, MinCutoff: 1, Beta: 1, DCutoff: 1})
			So(err, ShouldBeNil)
			var out []float64
			for i := 0; i < 4; i++ {
				out = append(out, f.Filter(float64(10*i), float64(i)/30))
			}

			Convey("Then the output follows the ramp without overshooting", func() {
				for i := 1; i < len(out); i++ {
					So(out[i], ShouldBeGreaterThan, out[i-1])
					So(out[i], ShouldBeLessThanOrEqualTo, float64(10*i))
				}
			})
		})

		Convey("When beta is zero and the input is stationary", func() {
			f, err := filter.NewOneEuro(filter.Params{Frequency: 30, MinCutoff: 1, Beta: 0, DCutoff: 1})
			So(err, ShouldBeNil)

			Convey("Then the first output equals the input and never overshoots", func() {
				So(f.Filter(1.5, 0), ShouldEqual, 1.5)
				for i := 1; i < 50; i++ {
					So(f.Filter(1.5, float64(i)/30), ShouldAlmostEqual, 1.5, 1e-12)
				}
			})
		})

		Convey("When the signal jitters around a constant", func() {
			f, _ := filter.NewOneEuro(filter.DefaultParams())
			var maxDev float64
			for i := 0; i < 300; i++ {
				noise := 0.02
				if i%2 == 0 {
					noise = -0.02
				}
				out := f.Filter(2+noise, float64(i)/30)
				if i > 30 {
					maxDev = math.Max(maxDev, math.Abs(out-2))
				}
			}

			Convey("Then the output deviates less than the raw jitter", func() {
				So(maxDev, ShouldBeLessThan, 0.02)
			})
		})

		Convey("When the same sequence is replayed", func() {
			run := func() []float64 {
				f, _ := filter.NewOneEuro(filter.DefaultParams())
				var out []float64
				for i := 0; i < 20; i++ {
					out = append(out, f.Filter(math.Sin(float64(i)), float64(i)*0.04))
				}
				return out
			}

			So(run(), ShouldResemble, run())
		})
	})
}

func TestVec3(t *testing.T) {
	Convey("Given a Vec3 filter", t, func() {
		v, err := filter.NewVec3(filter.DefaultParams())
		So(err, ShouldBeNil)

		out := v.Filter(r3.Vec{X: 1, Y: 2, Z: 3}, 10)

		Convey("Then the first sample passes through", func() {
			So(out, ShouldResemble, r3.Vec{X: 1, Y: 2, Z: 3})
		})
	})
}
