package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"
	"go.uber.org/goleak"

	queue "github.com/okian/wallsync/internal/adapters/mq/queue"
	worker "github.com/okian/wallsync/internal/adapters/mq/worker"
	logging "github.com/okian/wallsync/pkg/logger"
)

// Mock implementations for testing.
type mockQueue struct {
	jobs chan queue.Job
	once sync.Once
}

func newMockQueue() *mockQueue {
	return &mockQueue{jobs: make(chan queue.Job, 10)}
}

func (mq *mockQueue) Dequeue(ctx context.Context) <-chan queue.Job {
	return mq.jobs
}

func (mq *mockQueue) Close() error {
	mq.once.Do(func() { close(mq.jobs) })
	return nil
}

type recorder struct {
	mu   sync.Mutex
	seen []string
	fail map[string]error
	boom map[string]bool
}

func newRecorder() *recorder {
	return &recorder{fail: make(map[string]error), boom: make(map[string]bool)}
}

func (r *recorder) Process(ctx context.Context, job queue.Job) error {
	r.mu.Lock()
	r.seen = append(r.seen, job.Session)
	err, explode := r.fail[job.Session], r.boom[job.Session]
	r.mu.Unlock()
	if explode {
		panic("corrupt session")
	}
	return err
}

func (r *recorder) sessions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.seen...)
}

func TestInMemoryWorker(t *testing.T) {
	defer goleak.VerifyNone(t)

	convey.Convey("Given a new InMemoryWorker", t, func() {
		_ = logging.Init()

		q := newMockQueue()
		rec := newRecorder()

		convey.Convey("When creating a worker with custom options", func() {
			w := worker.NewInMemoryWorker(q, rec, worker.WithName("test-worker"), worker.WithLogger(logging.Get()))

			convey.Convey("Then it should be created successfully", func() {
				convey.So(w, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When running a worker until the queue closes", func() {
			w := worker.NewInMemoryWorker(q, rec)
			q.jobs <- queue.Job{Session: "1"}
			q.jobs <- queue.Job{Session: "2"}
			_ = q.Close()

			done := make(chan struct{})
			go func() {
				w.Run(context.Background())
				close(done)
			}()

			convey.Convey("Then it processes every job and stops", func() {
				stopped := false
				select {
				case <-done:
					stopped = true
				case <-time.After(time.Second):
				}
				convey.So(stopped, convey.ShouldBeTrue)
				convey.So(rec.sessions(), convey.ShouldResemble, []string{"1", "2"})
			})
		})

		convey.Convey("When shutting a worker down", func() {
			w := worker.NewInMemoryWorker(q, rec)
			go w.Run(context.Background())

			err := w.Shutdown(context.Background())

			convey.Convey("Then it stops and a second shutdown is harmless", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(w.Shutdown(context.Background()), convey.ShouldBeNil)
			})
		})
	})
}

func TestPool(t *testing.T) {
	defer goleak.VerifyNone(t)

	convey.Convey("Given a pool over a real queue", t, func() {
		_ = logging.Init()

		q := queue.NewInMemoryQueue(queue.WithCapacity(32))
		rec := newRecorder()
		rec.fail["3"] = errors.New("malformed log")
		rec.boom["5"] = true

		p := worker.NewPool(3, q, rec)
		ctx := context.Background()
		p.Start(ctx)

		for i := 1; i <= 8; i++ {
			convey.So(queue.Submit(ctx, q, queue.Job{RunID: "run", Session: fmt.Sprint(i)}), convey.ShouldBeNil)
		}

		convey.Convey("When the pool drains", func() {
			err := p.Drain(ctx)

			convey.Convey("Then every session ran once", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(len(rec.sessions()), convey.ShouldEqual, 8)
			})

			convey.Convey("Then failures stay with their session", func() {
				failed := p.Failed()
				convey.So(len(failed), convey.ShouldEqual, 2)
				convey.So(failed["3"], convey.ShouldNotBeNil)
				convey.So(errors.Is(failed["5"], worker.ErrPanic), convey.ShouldBeTrue)
			})

			convey.Convey("Then shutdown after drain is a no-op", func() {
				convey.So(p.Shutdown(ctx), convey.ShouldBeNil)
			})
		})
	})

	convey.Convey("Given a pool whose context is cancelled", t, func() {
		_ = logging.Init()

		q := queue.NewInMemoryQueue()
		p := worker.NewPool(2, q, newRecorder())
		ctx, cancel := context.WithCancel(context.Background())
		p.Start(ctx)
		cancel()

		convey.Convey("Then shutdown returns once the workers stop", func() {
			convey.So(p.Shutdown(context.Background()), convey.ShouldBeNil)
		})
	})
}
