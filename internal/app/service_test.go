package service_test

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	service "github.com/okian/wallsync/internal/app"
	"github.com/okian/wallsync/internal/config"
	"github.com/okian/wallsync/pkg/logger"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it should report sensible defaults", func() {
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, false)
			So(stats["queueSize"], ShouldEqual, 1024)
		})
	})

	Convey("Given a new service with custom options", t, func() {
		svc := service.New(
			service.WithWorkerCount(3),
			service.WithQueueSize(8),
			service.WithWorkerCount(-1),
		)

		Convey("Then valid options apply and invalid ones are ignored", func() {
			stats := svc.GetStats()
			So(stats["workerCount"], ShouldEqual, 3)
			So(stats["queueSize"], ShouldEqual, 8)
		})
	})
}

func TestService_FromConfig(t *testing.T) {
	Convey("Given a loaded process config", t, func() {
		cfg := config.New(context.Background())
		cfg.WorkerCount, cfg.QueueSize = 5, 9

		Convey("When it is turned into options", func() {
			opts, err := service.FromConfig(cfg)
			So(err, ShouldBeNil)
			svc := service.New(opts...)

			Convey("Then the service uses its settings", func() {
				stats := svc.GetStats()
				So(stats["workerCount"], ShouldEqual, 5)
				So(stats["queueSize"], ShouldEqual, 9)
			})
		})

		Convey("When the timezone is unknown", func() {
			cfg.Timezone = "Nowhere/Else"

			_, err := service.FromConfig(cfg)

			So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
		})
	})
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a service without persistence", t, func() {
		svc := service.New(service.WithWorkerCount(1), service.WithOutputDir(t.TempDir()))
		ctx := context.Background()

		Convey("When enqueueing before start", func() {
			err := svc.Enqueue(ctx, "1")

			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
		})

		Convey("When starting and stopping", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.GetStats()["started"], ShouldEqual, true)

			svc.Stop(ctx)

			Convey("Then it is stopped and a second stop is harmless", func() {
				So(svc.GetStats()["started"], ShouldEqual, false)
				svc.Stop(ctx)
			})
		})
	})
}
