// Package config defines process configuration and the per-session
// threshold files, both loaded with koanf.
//
// Conventions:
//   - New(ctx) builds a Config with defaults.
//   - Loading layers defaults, an optional YAML file and env vars.
//   - External errors are wrapped with this package's sentinels.
package config

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format"`

	// DataDir holds one session_<id> directory per recorded session.
	DataDir string `koanf:"data_dir"`
	// OutputDir receives the fused CSV datasets.
	OutputDir string `koanf:"output_dir"`
	// DBPath is the SQLite database. Empty disables persistence.
	DBPath string `koanf:"db_path"`

	// Sessions lists the session ids to process. Empty means every session
	// found in DataDir.
	Sessions []string `koanf:"sessions"`

	// WorkerCount sets the number of sessions processed in parallel.
	WorkerCount int `koanf:"worker_count"`
	// QueueSize bounds the in-memory session queue.
	QueueSize int `koanf:"queue_size"`

	// MetricsTextfile, when set, receives the metrics in the node exporter
	// textfile format after a run.
	MetricsTextfile string `koanf:"metrics_textfile"`

	// Timezone is the IANA zone the log day columns were recorded in.
	Timezone string `koanf:"timezone"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:    "info",
		LogFormat:   "text",
		DataDir:     "data_logs",
		OutputDir:   "fused",
		DBPath:      "wallsync.db",
		WorkerCount: runtime.NumCPU(),
		QueueSize:   1024,
		Timezone:    "UTC",
	}
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, c.Timezone, err)
	}
	return loc, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	switch {
	case c.DataDir == "":
		return fmt.Errorf("%w: data_dir must not be empty", ErrInvalidConfig)
	case c.OutputDir == "":
		return fmt.Errorf("%w: output_dir must not be empty", ErrInvalidConfig)
	case c.WorkerCount < 1:
		return fmt.Errorf("%w: worker_count %d", ErrInvalidConfig, c.WorkerCount)
	case c.QueueSize < 1:
		return fmt.Errorf("%w: queue_size %d", ErrInvalidConfig, c.QueueSize)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format %q", ErrInvalidConfig, c.LogFormat)
	}
	for _, id := range c.Sessions {
		if strings.TrimSpace(id) == "" || strings.ContainsAny(id, `/\`) {
			return fmt.Errorf("%w: session id %q", ErrInvalidConfig, id)
		}
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}
