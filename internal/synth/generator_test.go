package synth_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/wallsync/internal/domain/normalize"
	"github.com/okian/wallsync/internal/synth"
)

func TestGenerate(t *testing.T) {
	Convey("Given the default config", t, func() {
		cfg := synth.DefaultConfig()

		Convey("When generating a session", func() {
			s, err := synth.Generate(cfg)
			So(err, ShouldBeNil)

			Convey("Then every log kind is present and readable", func() {
				for _, kind := range synth.Kinds {
					tbl, err := normalize.ReadTable(bytes.NewReader(s.Logs[kind]))
					So(err, ShouldBeNil)
					So(tbl.Has("day"), ShouldBeTrue)
					So(tbl.Has("time"), ShouldBeTrue)
				}
			})

			Convey("Then the body log carries both joints", func() {
				header := strings.SplitN(string(s.Logs[synth.KindBody]), "\n", 2)[0]
				So(header, ShouldContainSubstring, "OKS_SPINE_MID_tracking-state")
				So(header, ShouldContainSubstring, "OKS_SPINE_SHOULDER_x")
			})

			Convey("Then the script is recorded", func() {
				So(len(s.Users), ShouldEqual, 3)
				So(s.FingerTouches, ShouldEqual, 3*cfg.Gestures)
				So(s.InjectedTouches, ShouldBeGreaterThanOrEqualTo, 2*cfg.Gestures)
				So(s.BorderTouches, ShouldEqual, 1)
			})

			Convey("Then the same seed yields the same logs", func() {
				again, err := synth.Generate(cfg)
				So(err, ShouldBeNil)
				for _, kind := range synth.Kinds {
					So(bytes.Equal(again.Logs[kind], s.Logs[kind]), ShouldBeTrue)
				}
			})
		})

		Convey("When both joints are the same", func() {
			cfg.BodyTouchJoint = cfg.BodyDeviceJoint
			s, err := synth.Generate(cfg)
			So(err, ShouldBeNil)

			Convey("Then the joint columns appear once", func() {
				header := strings.SplitN(string(s.Logs[synth.KindBody]), "\n", 2)[0]
				So(strings.Count(header, "OKS_SPINE_MID_x"), ShouldEqual, 1)
			})
		})
	})

	Convey("Given an invalid config", t, func() {
		cfg := synth.DefaultConfig()
		cfg.Rate = 0

		_, err := synth.Generate(cfg)

		So(errors.Is(err, synth.ErrInvalidConfig), ShouldBeTrue)
	})
}
