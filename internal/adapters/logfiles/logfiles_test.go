package logfiles_test

import (
	"context"
	"errors"
	"os"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/wallsync/internal/adapters/logfiles"
	"github.com/okian/wallsync/internal/domain/fusion"
	"github.com/okian/wallsync/internal/synth"
	"github.com/okian/wallsync/pkg/logger"
)

func TestOpen(t *testing.T) {
	_ = logger.Init()

	Convey("Given a data directory with a generated session", t, func() {
		root := t.TempDir()
		s, err := synth.Generate(synth.DefaultConfig())
		So(err, ShouldBeNil)
		So(logfiles.Write(root, s.ID, s.Logs), ShouldBeNil)

		Convey("When the session is opened", func() {
			sess, err := logfiles.Open(root, s.ID)
			So(err, ShouldBeNil)
			defer sess.Close()

			Convey("Then the pipeline can fuse it", func() {
				cfg := fusion.DefaultConfig()
				cfg.Session = s.ID
				p, err := fusion.New(cfg)
				So(err, ShouldBeNil)
				res, err := p.Run(context.Background(), sess.Sources)
				So(err, ShouldBeNil)
				So(len(res.Heads), ShouldEqual, 3)
			})
		})

		Convey("When the optional logs are missing", func() {
			So(os.Remove(logfiles.Path(root, s.ID, fusion.SourceInjection)), ShouldBeNil)
			So(os.Remove(logfiles.Path(root, s.ID, fusion.SourceDeviceEvent)), ShouldBeNil)

			sess, err := logfiles.Open(root, s.ID)
			So(err, ShouldBeNil)
			defer sess.Close()

			Convey("Then their sources are nil", func() {
				So(sess.Sources.Injection, ShouldBeNil)
				So(sess.Sources.DeviceEvent, ShouldBeNil)
				So(sess.Sources.Body, ShouldNotBeNil)
			})
		})

		Convey("When a required log is missing", func() {
			So(os.Remove(logfiles.Path(root, s.ID, fusion.SourceTouch)), ShouldBeNil)

			_, err := logfiles.Open(root, s.ID)

			So(errors.Is(err, logfiles.ErrMissingLog), ShouldBeTrue)
		})

		Convey("When the session does not exist", func() {
			_, err := logfiles.Open(root, "42")

			So(errors.Is(err, logfiles.ErrSessionNotFound), ShouldBeTrue)
		})
	})
}

func TestDiscover(t *testing.T) {
	Convey("Given several session directories", t, func() {
		root := t.TempDir()
		for _, id := range []string{"10", "2", "pilot", "1"} {
			So(os.MkdirAll(logfiles.Dir(root, id), 0o755), ShouldBeNil)
		}
		So(os.MkdirAll(root+"/notes", 0o755), ShouldBeNil)

		ids, err := logfiles.Discover(root)

		So(err, ShouldBeNil)
		So(ids, ShouldResemble, []string{"1", "2", "10", "pilot"})
	})

	Convey("Given a missing data directory", t, func() {
		_, err := logfiles.Discover(t.TempDir() + "/absent")

		So(err, ShouldNotBeNil)
	})
}
