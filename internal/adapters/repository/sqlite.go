package repository

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/okian/wallsync/internal/domain/fusion"
	"github.com/okian/wallsync/internal/domain/model"
	"github.com/okian/wallsync/pkg/logger"
	"github.com/okian/wallsync/pkg/metrics"
)

//go:embed migrations/*.sql
var migrations embed.FS

const defaultBatchSize = 200

// Table names.
const (
	TableHead        = "head"
	TableTouch       = "touch"
	TableDevice      = "device"
	TableDeviceTouch = "device_touch"
	TableSessionRuns = "session_runs"
)

var dataTables = []string{TableHead, TableTouch, TableDevice, TableDeviceTouch}

// SQLiteStore is a Store on a single SQLite file.
type SQLiteStore struct {
	db    *sql.DB
	log   logger.Logger
	batch int

	mu     sync.Mutex
	closed bool
}

var _ Store = (*SQLiteStore)(nil)

// Open opens the database at path and applies pending migrations.
// ":memory:" opens a private in-memory database.
func Open(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// One connection keeps an in-memory database alive and serializes writers.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure %s: %w", path, err)
	}

	s := &SQLiteStore{db: db, batch: defaultBatchSize}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Get().Named("repository")
	}
	if err := s.MigrateUp(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// MigrateUp applies all pending migrations.
func (s *SQLiteStore) MigrateUp() error {
	m, err := s.newMigrate()
	if err != nil {
		return err
	}
	// m is not closed: closing it closes the shared database handle.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%w: up: %v", ErrMigration, err)
	}
	return nil
}

// MigrateDown rolls back the most recent migration.
func (s *SQLiteStore) MigrateDown() error {
	m, err := s.newMigrate()
	if err != nil {
		return err
	}
	if err := m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%w: down: %v", ErrMigration, err)
	}
	return nil
}

// MigrateVersion returns the applied schema version and its dirty flag.
// A fresh database reports version 0.
func (s *SQLiteStore) MigrateVersion() (uint, bool, error) {
	m, err := s.newMigrate()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func (s *SQLiteStore) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("%w: source: %v", ErrMigration, err)
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("%w: driver: %v", ErrMigration, err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMigration, err)
	}
	m.Log = migrateLogger{log: s.log}
	return m, nil
}

type migrateLogger struct{ log logger.Logger }

func (l migrateLogger) Printf(format string, v ...interface{}) {
	l.log.Debug(context.Background(), strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l migrateLogger) Verbose() bool { return false }

// Save implements Store.
func (s *SQLiteStore) Save(ctx context.Context, run Run, res *fusion.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	start := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range dataTables {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM "+table+" WHERE session = ? AND level = ?", run.Session, run.Level); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	rows := map[string][][]any{
		TableHead:        headRows(run, res.Heads),
		TableTouch:       touchRows(run, res.Strokes),
		TableDevice:      deviceRows(run, res.DeviceTracks),
		TableDeviceTouch: deviceTouchRows(run, res.DeviceTouches),
	}
	for _, table := range dataTables {
		if err := s.insert(ctx, tx, table, columns[table], rows[table]); err != nil {
			return err
		}
	}
	if err := insertRun(ctx, tx, run); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	for _, table := range dataTables {
		metrics.RecordRepositoryRows(table, len(rows[table]))
	}
	metrics.RecordRepositoryLatency(float64(time.Since(start).Milliseconds()))
	s.log.Debug(ctx, "session stored",
		logger.String("session", run.Session),
		logger.Int("head_rows", len(rows[TableHead])),
		logger.Int("touch_rows", len(rows[TableTouch])),
		logger.Duration("took", time.Since(start)))
	return nil
}

// RecordRun implements Store.
func (s *SQLiteStore) RecordRun(ctx context.Context, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := insertRun(ctx, s.db, run); err != nil {
		return err
	}
	metrics.RecordRepositoryRows(TableSessionRuns, 1)
	return nil
}

// Runs implements Store.
func (s *SQLiteStore) Runs(ctx context.Context, session string) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	rs, err := s.db.QueryContext(ctx, `
		SELECT run_id, session, level, status, error, started_at, finished_at, users, touches
		FROM session_runs WHERE session = ? ORDER BY started_at, run_id`, session)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rs.Close()

	var out []Run
	for rs.Next() {
		var r Run
		var started, finished int64
		if err := rs.Scan(&r.ID, &r.Session, &r.Level, &r.Status, &r.Error,
			&started, &finished, &r.Users, &r.Touches); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Started = time.UnixMicro(started).UTC()
		r.Finished = time.UnixMicro(finished).UTC()
		out = append(out, r)
	}
	return out, rs.Err()
}

// Count returns the number of rows of table stored for session.
func (s *SQLiteStore) Count(ctx context.Context, table, session string) (int, error) {
	if _, ok := columns[table]; !ok && table != TableSessionRuns {
		return 0, fmt.Errorf("unknown table %q", table)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table+" WHERE session = ?", session).Scan(&n)
	return n, err
}

// Close implements Store. It is safe to call more than once.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertRun(ctx context.Context, db execer, run Run) error {
	_, err := db.ExecContext(ctx, `
		INSERT OR REPLACE INTO session_runs
			(run_id, session, level, status, error, started_at, finished_at, users, touches)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Session, run.Level, run.Status, run.Error,
		run.Started.UnixMicro(), run.Finished.UnixMicro(), run.Users, run.Touches)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// insert writes rows in multi-row statements of at most s.batch rows.
func (s *SQLiteStore) insert(ctx context.Context, tx *sql.Tx, table string, cols []string, rows [][]any) error {
	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?,", len(cols)), ",") + ")"
	for lo := 0; lo < len(rows); lo += s.batch {
		hi := min(lo+s.batch, len(rows))
		var b strings.Builder
		b.WriteString("INSERT INTO " + table + " (" + strings.Join(cols, ", ") + ") VALUES ")
		args := make([]any, 0, (hi-lo)*len(cols))
		for i, r := range rows[lo:hi] {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(placeholder)
			args = append(args, r...)
		}
		if _, err := tx.ExecContext(ctx, b.String(), args...); err != nil {
			return fmt.Errorf("insert %s: %w", table, err)
		}
	}
	return nil
}

var columns = map[string][]string{
	TableHead: {"session", "level", "user", "x", "y", "z", "pitch", "yaw", "roll", "time",
		"x_sum", "y_sum", "z_sum", "view_x", "view_y", "synthetic"},
	TableTouch: {"session", "level", "user", "x", "y", "time", "duration", "injected", "type"},
	TableDevice: {"session", "level", "user", "screen_x", "screen_y", "space_x", "space_y", "space_z",
		"pitch", "yaw", "roll", "time", "view_x", "view_y", "synthetic"},
	TableDeviceTouch: {"session", "level", "user", "x", "y", "time", "type"},
}

func viewpoint(p model.TrajectoryPoint) (any, any) {
	if !p.HasViewpoint {
		return nil, nil
	}
	return p.Viewpoint.X, p.Viewpoint.Y
}

func headRows(run Run, tracks []model.Track) [][]any {
	var out [][]any
	for _, tr := range tracks {
		for _, p := range tr.Points {
			vx, vy := viewpoint(p)
			out = append(out, []any{run.Session, run.Level, int(tr.User),
				p.Position.X, p.Position.Y, p.Position.Z,
				p.Orientation.X, p.Orientation.Y, p.Orientation.Z, p.Time,
				p.PrefixSum.X, p.PrefixSum.Y, p.PrefixSum.Z, vx, vy, p.Synthetic})
		}
	}
	return out
}

func deviceRows(run Run, tracks []model.Track) [][]any {
	var out [][]any
	for _, tr := range tracks {
		for _, p := range tr.Points {
			var sx, sy float64
			if len(p.Extra) >= 2 {
				sx, sy = p.Extra[0], p.Extra[1]
			}
			vx, vy := viewpoint(p)
			out = append(out, []any{run.Session, run.Level, int(tr.User), sx, sy,
				p.Position.X, p.Position.Y, p.Position.Z,
				p.Orientation.X, p.Orientation.Y, p.Orientation.Z, p.Time, vx, vy, p.Synthetic})
		}
	}
	return out
}

func touchRows(run Run, strokes []model.Touch) [][]any {
	out := make([][]any, 0, len(strokes))
	for _, t := range strokes {
		user := t.User
		if !user.Resolved() {
			user = model.Neutral
		}
		out = append(out, []any{run.Session, run.Level, int(user),
			t.Position.X, t.Position.Y, t.Time, t.Duration, t.Injected, string(t.Type)})
	}
	return out
}

func deviceTouchRows(run Run, touches []model.DeviceTouch) [][]any {
	out := make([][]any, 0, len(touches))
	for _, t := range touches {
		out = append(out, []any{run.Session, run.Level, int(t.User),
			t.Position.X, t.Position.Y, t.Time, string(t.Type)})
	}
	return out
}
