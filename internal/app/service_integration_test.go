package service_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	service "github.com/okian/wallsync/internal/app"
	"github.com/okian/wallsync/internal/adapters/dataset"
	"github.com/okian/wallsync/internal/adapters/logfiles"
	"github.com/okian/wallsync/internal/adapters/mapping"
	"github.com/okian/wallsync/internal/adapters/repository"
	"github.com/okian/wallsync/internal/config"
	"github.com/okian/wallsync/internal/domain/fusion"
	"github.com/okian/wallsync/internal/domain/identity"
	"github.com/okian/wallsync/internal/synth"
)

func writeSession(root, id string) *synth.Session {
	cfg := synth.DefaultConfig()
	cfg.Session = id
	cfg.Duration = 8 * time.Second
	cfg.Gestures = 2
	s, err := synth.Generate(cfg)
	So(err, ShouldBeNil)
	So(logfiles.Write(root, s.ID, s.Logs), ShouldBeNil)
	return s
}

func TestServiceIntegration(t *testing.T) {
	Convey("Given a data directory with two sessions", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		data, out := t.TempDir(), t.TempDir()
		writeSession(data, "1")
		s2 := writeSession(data, "2")

		store, err := repository.Open(ctx, ":memory:")
		So(err, ShouldBeNil)
		defer store.Close()

		textfile := filepath.Join(t.TempDir(), "wallsync.prom")
		svc := service.New(
			service.WithDataDir(data),
			service.WithOutputDir(out),
			service.WithStore(store),
			service.WithWorkerCount(2),
			service.WithMetricsTextfile(textfile),
		)

		Convey("When every session is processed", func() {
			rep, err := svc.Run(ctx)

			Convey("Then both sessions succeed under one run id", func() {
				So(err, ShouldBeNil)
				So(rep.Succeeded, ShouldResemble, []string{"1", "2"})
				So(rep.Failed, ShouldBeEmpty)
				So(rep.RunID, ShouldNotBeEmpty)
			})

			Convey("Then datasets and mappings are written", func() {
				w := dataset.NewWriter(out)
				for _, id := range []string{"1", "2"} {
					for _, a := range dataset.Artifacts {
						_, err := os.Stat(w.Path(id, a))
						So(err, ShouldBeNil)
					}
					entries, err := mapping.Read(out, id)
					So(err, ShouldBeNil)
					So(len(entries), ShouldEqual, len(s2.Users))
				}
			})

			Convey("Then the runs are persisted", func() {
				runs, err := store.Runs(ctx, "2")
				So(err, ShouldBeNil)
				So(len(runs), ShouldEqual, 1)
				So(runs[0].ID, ShouldEqual, rep.RunID)
				So(runs[0].Status, ShouldEqual, repository.StatusSucceeded)
				heads, _ := store.Count(ctx, repository.TableHead, "2")
				So(heads, ShouldBeGreaterThan, 0)
			})

			Convey("Then the metrics textfile is written", func() {
				raw, err := os.ReadFile(textfile)
				So(err, ShouldBeNil)
				So(string(raw), ShouldContainSubstring, "wallsync_fusion_sessions_processed_total")
			})
		})

		Convey("When a session is listed twice", func() {
			svc := service.New(service.WithDataDir(data), service.WithOutputDir(out),
				service.WithStore(store), service.WithSessions("2", "2"))

			rep, err := svc.Run(ctx)

			Convey("Then it is processed once", func() {
				So(err, ShouldBeNil)
				So(rep.Succeeded, ShouldResemble, []string{"2"})
				runs, _ := store.Runs(ctx, "2")
				So(len(runs), ShouldEqual, 1)
			})
		})

		Convey("When one session has a broken body log", func() {
			path := logfiles.Path(data, "2", fusion.SourceBody)
			raw, err := os.ReadFile(path)
			So(err, ShouldBeNil)
			So(os.WriteFile(path, []byte(strings.Replace(string(raw), ",2\n", ",x\n", 1)), 0o644), ShouldBeNil)

			rep, err := svc.Run(ctx)

			Convey("Then only that session fails and the failure is recorded", func() {
				So(errors.Is(err, service.ErrSessionsFailed), ShouldBeTrue)
				So(rep.Succeeded, ShouldResemble, []string{"1"})
				So(rep.Failed["2"], ShouldNotBeNil)
				runs, _ := store.Runs(ctx, "2")
				So(len(runs), ShouldEqual, 1)
				So(runs[0].Status, ShouldEqual, repository.StatusFailed)
			})
		})

		Convey("When a seed mapping sits next to the logs", func() {
			So(mapping.Write(logfiles.Dir(data, "1"), "1", []identity.Entry{
				{Tracking: "72057594037927938", User: 2},
			}), ShouldBeNil)
			svc := service.New(service.WithDataDir(data), service.WithOutputDir(out),
				service.WithSessions("1"))

			_, err := svc.Run(ctx)

			Convey("Then the emitted mapping keeps the seeded binding", func() {
				So(err, ShouldBeNil)
				entries, err := mapping.Read(out, "1")
				So(err, ShouldBeNil)
				So(entries[0].Tracking, ShouldEqual, "72057594037927938")
				So(int(entries[0].User), ShouldEqual, 2)
			})
		})

		Convey("When a per-session config is present", func() {
			So(os.WriteFile(config.SessionPath(logfiles.Dir(data, "1"), "1"),
				[]byte("time_step: 0.1\nlevel: 3\n"), 0o644), ShouldBeNil)

			_, err := svc.Run(ctx)

			Convey("Then its thresholds and level apply", func() {
				So(err, ShouldBeNil)
				runs, _ := store.Runs(ctx, "1")
				So(runs[0].Level, ShouldEqual, 3)
			})
		})
	})

	Convey("Given an empty data directory", t, func() {
		svc := service.New(service.WithDataDir(t.TempDir()))

		_, err := svc.Run(context.Background())

		So(errors.Is(err, service.ErrNoSessions), ShouldBeTrue)
	})
}
