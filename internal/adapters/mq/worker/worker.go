// Package worker runs session jobs off the queue, one session per worker at
// a time.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/wallsync/internal/adapters/mq/queue"
	"github.com/okian/wallsync/pkg/logger"
	"github.com/okian/wallsync/pkg/metrics"
)

// Default worker configuration constants.
const (
	poolShutdownTimeout = 30 * time.Second
)

// Job is what workers read off the queue.
type Job = queue.Job

// Processor fuses one session and writes its outputs.
type Processor interface {
	Process(ctx context.Context, job Job) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, job Job) error

// Process implements Processor.
func (f ProcessorFunc) Process(ctx context.Context, job Job) error { return f(ctx, job) }

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// Worker processes jobs.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue drains.
	Run(ctx context.Context)

	// Shutdown stops the worker after the job in progress.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue     Queue
	processor Processor
	name      string

	// onDone is called after every job with its outcome.
	onDone func(Job, error)

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, processor Processor, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     queue,
		processor: processor,
		name:      "worker",
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.logger == nil {
		w.logger = logger.Get().Named("worker")
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	dctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := w.queue.Dequeue(dctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			err := w.processJob(ctx, job)
			if w.onDone != nil {
				w.onDone(job, err)
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processJob runs one session. A panicking session fails alone.
func (w *InMemoryWorker) processJob(ctx context.Context, job Job) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
		if err != nil {
			metrics.RecordWorkerError()
			metrics.RecordErrorByComponent("worker", "session_failed")
			w.logger.Error(ctx, "session failed",
				logger.String("session", job.Session),
				logger.String("run_id", job.RunID),
				logger.Error(err),
			)
			err = fmt.Errorf("session %s: %w", job.Session, err)
			return
		}
		w.logger.Debug(ctx, "session processed",
			logger.String("session", job.Session),
			logger.Duration("waited", start.Sub(job.Enqueued)),
			logger.Duration("took", time.Since(start)),
		)
	}()

	return w.processor.Process(ctx, job)
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	busy atomic.Int64

	mu     sync.Mutex
	failed map[string]error

	logger logger.Logger
}

// NewPool creates a new worker pool. A non-positive count uses one worker
// per CPU; sessions are CPU bound.
func NewPool(workerCount int, queue Queue, processor Processor, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   queue,
		failed:  make(map[string]error),
	}

	tracked := ProcessorFunc(func(ctx context.Context, job Job) error {
		pool.setBusy(pool.busy.Add(1))
		defer func() { pool.setBusy(pool.busy.Add(-1)) }()
		return processor.Process(ctx, job)
	})

	for i := 0; i < workerCount; i++ {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		w := NewInMemoryWorker(queue, tracked, wopts...)
		w.onDone = pool.recordOutcome
		pool.workers[i] = w
	}
	pool.logger = pool.workers[0].logger.Named("pool")

	pool.setBusy(0)

	return pool
}

func (p *Pool) setBusy(n int64) {
	metrics.UpdateWorkerActiveCount(int(n))
	metrics.UpdateWorkerIdleCount(len(p.workers) - int(n))
}

func (p *Pool) recordOutcome(job Job, err error) {
	if err == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed[job.Session] = err
}

// Failed returns the error of every session that failed so far.
func (p *Pool) Failed() map[string]error {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]error, len(p.failed))
	for k, v := range p.failed {
		out[k] = v
	}
	return out
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, worker := range p.workers {
		go worker.Run(ctx)
	}
}

// Drain closes the queue and waits until every queued job is processed.
func (p *Pool) Drain(ctx context.Context) error {
	p.closeQueue(ctx)
	for _, worker := range p.workers {
		select {
		case <-worker.done:
		case <-ctx.Done():
			return fmt.Errorf("drain interrupted: %w", ctx.Err())
		}
	}
	return nil
}

// Shutdown stops all workers after their current job. Queued jobs are left
// unprocessed.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.closeQueue(ctx)

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, worker := range p.workers {
		if err := worker.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			return err
		}
	}
	return nil
}

func (p *Pool) closeQueue(ctx context.Context) {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}
}
