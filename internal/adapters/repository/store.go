// Package repository persists fused sessions for the analysis tools. Rows of
// every table are keyed by session, level, user and time.
package repository

import (
	"context"
	"time"

	"github.com/okian/wallsync/internal/domain/fusion"
)

// Run statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Run is one processing attempt of a session.
type Run struct {
	ID       string
	Session  string
	Level    int
	Status   string
	Error    string
	Started  time.Time
	Finished time.Time
	Users    int
	Touches  int
}

// Store provides write access to the fused dataset tables.
type Store interface {
	// Save replaces the rows of run.Session and run.Level with res and
	// records the run, in one transaction.
	Save(ctx context.Context, run Run, res *fusion.Result) error
	// RecordRun records a run without touching the data tables.
	RecordRun(ctx context.Context, run Run) error
	// Runs lists the recorded runs of a session, oldest first.
	Runs(ctx context.Context, session string) ([]Run, error)
	// Close releases the database.
	Close() error
}
