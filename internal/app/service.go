// Package service runs batches of recorded sessions through the fusion
// pipeline and writes their datasets.
package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/okian/wallsync/internal/adapters/dataset"
	"github.com/okian/wallsync/internal/adapters/logfiles"
	"github.com/okian/wallsync/internal/adapters/mapping"
	eventqueue "github.com/okian/wallsync/internal/adapters/mq/queue"
	workerpool "github.com/okian/wallsync/internal/adapters/mq/worker"
	"github.com/okian/wallsync/internal/adapters/repository"
	"github.com/okian/wallsync/internal/config"
	"github.com/okian/wallsync/internal/domain/dedupe"
	"github.com/okian/wallsync/internal/domain/fusion"
	"github.com/okian/wallsync/pkg/logger"
	"github.com/okian/wallsync/pkg/metrics"
)

// Session outcome labels.
const (
	StatusSucceeded = "succeeded"
	StatusPartial   = "partial"
	StatusFailed    = "failed"
)

// Output artifact labels beyond the dataset files.
const (
	ArtifactMapping    = "mapping"
	ArtifactRepository = "repository"
)

// Report summarizes one batch run.
type Report struct {
	RunID     string
	Succeeded []string
	Failed    map[string]error
	Took      time.Duration
}

// Service processes sessions on a worker pool.
type Service struct {
	mu sync.Mutex

	// Core components
	queue  *eventqueue.InMemoryQueue
	pool   *workerpool.Pool
	store  repository.Store
	writer *dataset.Writer
	seen   dedupe.Deduper

	// Configuration
	dataDir         string
	outputDir       string
	dbPath          string
	metricsTextfile string
	sessions        []string
	workerCount     int
	queueSize       int
	location        *time.Location

	// State
	runID     string
	started   bool
	ownsStore bool
	succeeded []string

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		dataDir:     "data_logs",
		outputDir:   "fused",
		workerCount: runtime.NumCPU(),
		queueSize:   1024,
		location:    time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FromConfig translates process configuration into options.
func FromConfig(cfg *config.Config) ([]Option, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return []Option{
		WithDataDir(cfg.DataDir),
		WithOutputDir(cfg.OutputDir),
		WithDBPath(cfg.DBPath),
		WithSessions(cfg.Sessions...),
		WithWorkerCount(cfg.WorkerCount),
		WithQueueSize(cfg.QueueSize),
		WithMetricsTextfile(cfg.MetricsTextfile),
		WithLocation(loc),
	}, nil
}

// Start opens the store and starts the worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	if s.store == nil && s.dbPath != "" {
		store, err := repository.Open(ctx, s.dbPath, repository.WithLogger(s.logger.Named("repository")))
		if err != nil {
			return fmt.Errorf("open repository: %w", err)
		}
		s.store, s.ownsStore = store, true
	}

	s.runID = uuid.NewString()
	s.succeeded = nil
	s.writer = dataset.NewWriter(s.outputDir)
	s.seen = dedupe.NewInMemoryDeduper()
	s.queue = eventqueue.NewInMemoryQueue(
		eventqueue.WithCapacity(s.queueSize),
		eventqueue.WithBufferSize(s.queueSize),
	)
	s.pool = workerpool.NewPool(s.workerCount, s.queue, workerpool.ProcessorFunc(s.Process),
		workerpool.WithLogger(s.logger))
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "service started",
		logger.String("run_id", s.runID),
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Bool("persist", s.store != nil),
	)
	return nil
}

// Enqueue submits one session for processing. A session already
// submitted in the current run is skipped.
func (s *Service) Enqueue(ctx context.Context, session string) error {
	s.mu.Lock()
	q, runID, seen, started := s.queue, s.runID, s.seen, s.started
	s.mu.Unlock()
	if !started {
		return ErrNotStarted
	}
	key := dedupe.Key(runID, session)
	if seen.SeenAndRecord(ctx, key) {
		s.logger.Debug(ctx, "duplicate session skipped", logger.String("session", session))
		return nil
	}
	if err := eventqueue.Submit(ctx, q, eventqueue.Job{RunID: runID, Session: session}); err != nil {
		seen.Unrecord(ctx, key)
		return fmt.Errorf("enqueue session %s: %w", session, err)
	}
	return nil
}

// Run processes the configured sessions, or every session in the data
// directory when none are configured, and waits for all of them.
func (s *Service) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	sessions := s.sessions
	if len(sessions) == 0 {
		found, err := logfiles.Discover(s.dataDir)
		if err != nil {
			return Report{}, err
		}
		sessions = found
	}
	if len(sessions) == 0 {
		return Report{}, fmt.Errorf("%w in %s", ErrNoSessions, s.dataDir)
	}

	if err := s.Start(ctx); err != nil {
		return Report{}, err
	}
	defer s.Stop(context.Background())

	for _, id := range sessions {
		if err := s.Enqueue(ctx, id); err != nil {
			return Report{}, err
		}
	}
	if err := s.pool.Drain(ctx); err != nil {
		return Report{}, err
	}

	s.mu.Lock()
	rep := Report{
		RunID:     s.runID,
		Succeeded: append([]string(nil), s.succeeded...),
		Failed:    s.pool.Failed(),
		Took:      time.Since(start),
	}
	s.mu.Unlock()
	sort.Strings(rep.Succeeded)

	if s.metricsTextfile != "" {
		if err := metrics.WriteTextfile(s.metricsTextfile); err != nil {
			s.logger.Warn(ctx, "metrics textfile not written", logger.Error(err))
		}
	}

	s.logger.Info(ctx, "run finished",
		logger.String("run_id", rep.RunID),
		logger.Int("succeeded", len(rep.Succeeded)),
		logger.Int("failed", len(rep.Failed)),
		logger.Duration("took", rep.Took),
	)
	if len(rep.Failed) > 0 {
		return rep, fmt.Errorf("%w: %d of %d", ErrSessionsFailed, len(rep.Failed), len(sessions))
	}
	return rep, nil
}

// Process fuses one session and writes its outputs. It is the pool's
// processor and is safe for concurrent use.
func (s *Service) Process(ctx context.Context, job eventqueue.Job) error {
	start := time.Now()
	run := repository.Run{ID: job.RunID, Session: job.Session, Started: start}
	log := s.logger.Named("session")

	res, level, err := s.fuse(ctx, job.Session)
	run.Level = level
	if err != nil {
		run.Status, run.Error, run.Finished = repository.StatusFailed, err.Error(), time.Now()
		if s.store != nil {
			if rerr := s.store.RecordRun(ctx, run); rerr != nil {
				log.Warn(ctx, "failed run not recorded", logger.String("session", job.Session), logger.Error(rerr))
			}
		}
		metrics.RecordSessionProcessed(StatusFailed)
		metrics.RecordErrorByComponent("pipeline", "session_failed")
		return err
	}

	run.Users, run.Touches = len(res.Heads), len(res.Touches)
	outErr := s.writeOutputs(ctx, run, res)

	status := StatusSucceeded
	if outErr != nil {
		status = StatusPartial
	} else {
		s.mu.Lock()
		s.succeeded = append(s.succeeded, job.Session)
		s.mu.Unlock()
	}
	metrics.RecordSessionProcessed(status)
	metrics.RecordSessionProcessing(time.Since(start).Seconds())

	log.Info(ctx, "session processed",
		logger.String("session", job.Session),
		logger.String("status", status),
		logger.Int("users", run.Users),
		logger.Int("touches", run.Touches),
		logger.Int("strokes", len(res.Strokes)),
		logger.Duration("took", time.Since(start)),
	)
	return outErr
}

func (s *Service) fuse(ctx context.Context, id string) (*fusion.Result, int, error) {
	dir := logfiles.Dir(s.dataDir, id)
	sess, err := config.LoadSession(ctx, dir, id)
	if err != nil {
		return nil, 0, err
	}
	cfg := sess.Fusion(id, s.location)

	seed, err := mapping.Read(dir, id)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, sess.Level, err
	default:
		cfg.Seed = seed
	}

	p, err := fusion.New(cfg, fusion.WithLogger(s.logger.Named("fusion")))
	if err != nil {
		return nil, sess.Level, err
	}
	logs, err := logfiles.Open(s.dataDir, id)
	if err != nil {
		return nil, sess.Level, err
	}
	defer func() { _ = logs.Close() }()

	res, err := p.Run(ctx, logs.Sources)
	if err != nil {
		return nil, sess.Level, err
	}
	return res, sess.Level, nil
}

// writeOutputs writes every artifact of res. Each failure is logged and
// collected; no failure stops the remaining artifacts.
func (s *Service) writeOutputs(ctx context.Context, run repository.Run, res *fusion.Result) error {
	var errs error
	fail := func(artifact string, err error) {
		metrics.RecordOutputError(artifact)
		s.logger.Error(ctx, "output not written",
			logger.String("session", run.Session),
			logger.String("artifact", artifact),
			logger.Error(err))
		errs = multierr.Append(errs, fmt.Errorf("%s: %w", artifact, err))
	}

	for _, a := range dataset.Artifacts {
		if err := s.writer.Write(res, a); err != nil {
			fail(string(a), err)
		}
	}
	if err := mapping.Write(s.outputDir, res.Session, res.Mapping); err != nil {
		fail(ArtifactMapping, err)
	}
	if s.store != nil {
		run.Finished = time.Now()
		run.Status = repository.StatusSucceeded
		if errs != nil {
			run.Status, run.Error = StatusPartial, errs.Error()
		}
		if err := s.store.Save(ctx, run, res); err != nil {
			fail(ArtifactRepository, err)
		}
	}
	return errs
}

// Stop shuts the pool down and closes the store the service opened.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "pool shutdown incomplete", logger.Error(err))
	}
	if s.ownsStore && s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn(ctx, "repository close failed", logger.Error(err))
		}
		s.store, s.ownsStore = nil, false
	}
	s.started = false
	s.logger.Info(ctx, "service stopped", logger.String("run_id", s.runID))
}

// GetStats returns service state for logging.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
	}
	if s.started {
		stats["runID"] = s.runID
		stats["queueLength"] = s.queue.Len(context.Background())
		stats["enqueued"] = s.seen.Size()
		stats["succeeded"] = len(s.succeeded)
		stats["failed"] = len(s.pool.Failed())
	}
	return stats
}
