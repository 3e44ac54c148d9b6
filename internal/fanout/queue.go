package fanout

import (
	"context"
	"log/slog"
	"sync"
)

const DefaultSize = 64

// Queue runs jobs in order on a single worker goroutine. Push never blocks:
// when the buffer is full the job is dropped and logged.
type Queue struct {
	name   string
	jobs   chan func(context.Context)
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// New starts the worker. Jobs run with ctx stripped of cancellation so a
// finished request does not abort a sink write already queued for it.
func New(ctx context.Context, name string, size int, logger *slog.Logger) *Queue {
	if size <= 0 {
		size = DefaultSize
	}
	q := &Queue{
		name:   name,
		jobs:   make(chan func(context.Context), size),
		logger: logger,
		done:   make(chan struct{}),
	}
	go q.run(context.WithoutCancel(ctx))
	return q
}

func (q *Queue) Push(job func(ctx context.Context)) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return false
	}
	select {
	case q.jobs <- job:
		return true
	default:
		q.logger.Warn("event queue full, dropping", "queue", q.name)
		return false
	}
}

// Flush waits until every job pushed before it has run.
func (q *Queue) Flush() {
	ran := make(chan struct{})
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		<-q.done
		return
	}
	q.jobs <- func(context.Context) { close(ran) }
	q.mu.RUnlock()
	<-ran
}

// Close stops accepting jobs, drains what is queued and waits for the worker.
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()
	<-q.done
}

func (q *Queue) run(ctx context.Context) {
	defer close(q.done)
	for job := range q.jobs {
		q.safeRun(ctx, job)
	}
}

func (q *Queue) safeRun(ctx context.Context, job func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("event job panic", "queue", q.name, "panic", r)
		}
	}()
	job(ctx)
}
