package config_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/wallsync/internal/config"
	"github.com/okian/wallsync/internal/domain/fusion"
	"github.com/okian/wallsync/internal/domain/model"
	"github.com/okian/wallsync/internal/domain/wall"
)

func TestLoadSession(t *testing.T) {
	ctx := context.Background()

	Convey("Given a session without a threshold file", t, func() {
		s, err := config.LoadSession(ctx, t.TempDir(), "1")

		Convey("Then the study defaults apply", func() {
			So(err, ShouldBeNil)
			got := s.Fusion("1", time.UTC)
			want := fusion.DefaultConfig()
			So(got.Identity.BodyDeviceWindow, ShouldEqual, want.Identity.BodyDeviceWindow)
			So(got.TimeStep, ShouldEqual, want.TimeStep)
			So(got.DeviceAliases, ShouldResemble, want.DeviceAliases)
			So(got.Session, ShouldEqual, "1")
			So(got.Validate(), ShouldBeNil)
		})
	})

	Convey("Given a threshold file", t, func() {
		dir := t.TempDir()
		So(os.WriteFile(config.SessionPath(dir, "6"), []byte(`
level: 2
time_step: 0.05
filter_devices: false
filter:
  beta: 0.5
identity:
  body_device_window: 200ms
  body_touch_window: 0.1s
  vote_threshold: 9
  ignore_trackings: [72057594037927939]
`), 0o644), ShouldBeNil)

		s, err := config.LoadSession(ctx, dir, "6")
		So(err, ShouldBeNil)
		berlin, _ := time.LoadLocation("Europe/Berlin")
		cfg := s.Fusion("6", berlin)

		Convey("Then set keys override and the rest keep their defaults", func() {
			So(s.Level, ShouldEqual, 2)
			So(cfg.TimeStep, ShouldEqual, 0.05)
			So(cfg.FilterDevices, ShouldBeFalse)
			So(cfg.FilterUsers, ShouldBeTrue)
			So(cfg.Filter.Beta, ShouldEqual, 0.5)
			So(cfg.Filter.Frequency, ShouldEqual, 30)
			So(cfg.Identity.BodyDeviceWindow, ShouldEqual, 200*time.Millisecond)
			So(cfg.Identity.BodyTouchWindow, ShouldEqual, 100*time.Millisecond)
			So(cfg.Identity.VoteThreshold, ShouldEqual, 9)
			So(cfg.Identity.InjectionEventWindow, ShouldEqual, 2*time.Millisecond)
			So(cfg.Identity.IgnoreTrackings, ShouldResemble, []model.TrackingID{"72057594037927939"})
			So(cfg.Location, ShouldEqual, berlin)
		})
	})

	Convey("Given a threshold file with its own tile seams", t, func() {
		dir := t.TempDir()
		So(os.WriteFile(config.SessionPath(dir, "8"), []byte(`
identity:
  borders:
    margin: 4
    vertical: [0, 3840]
    keep:
      - {min_x: 100, min_y: 1070, max_x: 300, max_y: 1090}
`), 0o644), ShouldBeNil)

		s, err := config.LoadSession(ctx, dir, "8")
		So(err, ShouldBeNil)
		b := s.Fusion("8", time.UTC).Identity.Borders

		Convey("Then listed seams replace the defaults and the rest are kept", func() {
			So(b.Margin, ShouldEqual, 4)
			So(b.Vertical, ShouldResemble, []int{0, 3840})
			So(b.Horizontal, ShouldResemble, wall.DefaultBorders().Horizontal)
			So(len(b.Keep), ShouldEqual, 1)
		})

		Convey("Then the exclusion zones follow them", func() {
			So(b.Excluded(model.Pixel{X: 1962, Y: 500}), ShouldBeFalse)
			So(b.Excluded(model.Pixel{X: 3843, Y: 500}), ShouldBeTrue)
			So(b.Excluded(model.Pixel{X: 200, Y: 1080}), ShouldBeFalse)
			So(b.Excluded(model.Pixel{X: 400, Y: 1080}), ShouldBeTrue)
		})
	})

	Convey("Given a malformed threshold file", t, func() {
		dir := t.TempDir()
		So(os.WriteFile(config.SessionPath(dir, "6"), []byte("identity: [\n"), 0o644), ShouldBeNil)

		_, err := config.LoadSession(ctx, dir, "6")

		So(errors.Is(err, config.ErrLoadConfig), ShouldBeTrue)
	})
}
