package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/wallsync/internal/config"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.LogLevel, convey.ShouldEqual, "info")
				convey.So(cfg.LogFormat, convey.ShouldEqual, "text")
				convey.So(cfg.DataDir, convey.ShouldEqual, "data_logs")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
				convey.So(cfg.QueueSize, convey.ShouldEqual, 1024)
				convey.So(cfg.Sessions, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("WALLSYNC_DATA_DIR", "/srv/study")
			_ = os.Setenv("WALLSYNC_WORKER_COUNT", "3")
			_ = os.Setenv("WALLSYNC_SESSIONS", "1, 2,,7")
			_ = os.Setenv("WALLSYNC_TIMEZONE", "Europe/Berlin")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.DataDir, convey.ShouldEqual, "/srv/study")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 3)
				convey.So(cfg.Sessions, convey.ShouldResemble, []string{"1", "2", "7"})
				loc, err := cfg.Location()
				convey.So(err, convey.ShouldBeNil)
				convey.So(loc.String(), convey.ShouldEqual, "Europe/Berlin")
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			tmpFile := createTempConfigFile(t, `
output_dir: /tmp/fused
queue_size: 16
worker_count: 2
sessions: ["4", "5"]
log_format: json
`)
			_ = os.Setenv("WALLSYNC_CONFIG", tmpFile)
			_ = os.Setenv("WALLSYNC_WORKER_COUNT", "8")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.OutputDir, convey.ShouldEqual, "/tmp/fused")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 16)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 8)
				convey.So(cfg.Sessions, convey.ShouldResemble, []string{"4", "5"})
				convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			_ = os.Setenv("WALLSYNC_CONFIG", createTempConfigFile(t, `invalid: yaml: content: [`))
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("WALLSYNC_CONFIG", "/non/existent/wallsync.yaml")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
		})
	})
}

func TestConfigValidation(t *testing.T) {
	convey.Convey("Given the defaults", t, func() {
		cfg := config.New(context.Background())

		convey.So(cfg.Validate(), convey.ShouldBeNil)

		cases := []struct {
			name   string
			mutate func(c *config.Config)
		}{
			{"zero workers", func(c *config.Config) { c.WorkerCount = 0 }},
			{"zero queue", func(c *config.Config) { c.QueueSize = 0 }},
			{"empty data dir", func(c *config.Config) { c.DataDir = "" }},
			{"empty output dir", func(c *config.Config) { c.OutputDir = "" }},
			{"unknown log format", func(c *config.Config) { c.LogFormat = "xml" }},
			{"unknown timezone", func(c *config.Config) { c.Timezone = "Mars/Olympus" }},
			{"path in session id", func(c *config.Config) { c.Sessions = []string{"../1"} }},
		}
		for _, tc := range cases {
			convey.Convey("When the config has "+tc.name, func() {
				bad := *cfg
				tc.mutate(&bad)

				convey.So(errors.Is(bad.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}
	})
}

func clearConfigEnvVars() {
	for _, name := range []string{
		"WALLSYNC_CONFIG", "WALLSYNC_DATA_DIR", "WALLSYNC_OUTPUT_DIR", "WALLSYNC_WORKER_COUNT",
		"WALLSYNC_QUEUE_SIZE", "WALLSYNC_SESSIONS", "WALLSYNC_TIMEZONE", "WALLSYNC_LOG_FORMAT",
		"WALLSYNC_LOG_LEVEL", "WALLSYNC_DB_PATH", "WALLSYNC_METRICS_TEXTFILE",
	} {
		_ = os.Unsetenv(name)
	}
}

func createTempConfigFile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "wallsync.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
