// Package worker runs the book matcher over queued jobs.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"

	"github.com/okian/bookmatch/internal/adapters/mq/queue"
	"github.com/okian/bookmatch/internal/domain/matching"
	"github.com/okian/bookmatch/internal/domain/model"
	"github.com/okian/bookmatch/pkg/logger"
	"github.com/okian/bookmatch/pkg/metrics"
)

const defaultWorkerMultiplier = 2

// Pass outcomes recorded per book.
const (
	OutcomeMatched = "matched"
	OutcomeNoMatch = "no_match"
	OutcomeError   = "error"
)

// Matcher resolves one source book.
type Matcher interface {
	Match(ctx context.Context, userID string, book *model.SourceBook) (matching.Outcome, error)
}

// Sink receives the outcome of every processed job. It is called from
// many workers at once.
type Sink interface {
	Deliver(ctx context.Context, j queue.Job, outcome matching.Outcome, err error)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker processes jobs until its queue closes.
type Worker interface {
	Run(ctx context.Context)
	Shutdown(ctx context.Context) error
}

// InMemoryWorker matches books read off a queue.
type InMemoryWorker struct {
	queue   Queue
	matcher Matcher
	sink    Sink
	name    string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, matcher Matcher, sink Sink, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		matcher:  matcher,
		sink:     sink,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop. It returns when the queue is drained, ctx
// is cancelled or Shutdown is called.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			w.process(ctx, j)
		}
	}
}

// Shutdown stops the worker after its current job.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process matches one book. A panicking matcher is reported to the sink
// as an error so the pass can account for every job.
func (w *InMemoryWorker) process(ctx context.Context, j queue.Job) {
	outcome, err := w.match(ctx, j)
	switch {
	case err != nil:
		metrics.RecordPassBook(OutcomeError)
		w.logger.Error(ctx, "match failed",
			logger.String("pass_id", j.PassID),
			logger.Int("seq", j.Seq),
			logger.Error(err))
	case outcome.Matched():
		metrics.RecordPassBook(OutcomeMatched)
	default:
		metrics.RecordPassBook(OutcomeNoMatch)
	}
	if w.sink != nil {
		w.sink.Deliver(ctx, j, outcome, err)
	}
}

func (w *InMemoryWorker) match(ctx context.Context, j queue.Job) (outcome matching.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("matcher panicked: %v", r)
		}
	}()
	if j.Book == nil {
		return matching.Outcome{}, errors.New("job has no book")
	}
	return w.matcher.Match(ctx, j.UserID, j.Book)
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates a worker pool. A non-positive count defaults to twice
// the number of CPUs.
func NewPool(workerCount int, q Queue, matcher Matcher, sink Sink) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}
	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range workerCount {
		pool.workers[i] = NewInMemoryWorker(q, matcher, sink, WithName("worker-"+strconv.Itoa(i)))
	}
	metrics.UpdateWorkerCount(workerCount)
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Wait blocks until every worker has exited or ctx is done.
func (p *Pool) Wait(ctx context.Context) error {
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-ctx.Done():
			p.logger.Warn(ctx, "worker wait interrupted", logger.Int("worker_id", i))
			return ctx.Err()
		}
	}
	return nil
}

// Drain closes the queue and waits for the workers to finish what is
// already queued.
func (p *Pool) Drain(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}
	return p.Wait(ctx)
}
