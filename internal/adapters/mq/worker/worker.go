// Package worker executes queued pipeline runs in the background.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/okian/nbaetl/internal/adapters/mq/queue"
	"github.com/okian/nbaetl/pkg/logger"
	"github.com/okian/nbaetl/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// Runner executes one pipeline run.
type Runner interface {
	Execute(ctx context.Context, job queue.Job) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, job queue.Job) error

func (f RunnerFunc) Execute(ctx context.Context, job queue.Job) error { return f(ctx, job) }

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker processes jobs one at a time.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the loop after the current job.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue  Queue
	runner Runner
	name   string

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker reading from q.
func NewInMemoryWorker(q Queue, runner Runner, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		runner:   runner,
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

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
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
			_ = w.process(ctx, job)
		}
	}
}

// Shutdown signals the loop and waits for it to end.
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

// Done is closed when the loop has exited.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

func (w *InMemoryWorker) process(ctx context.Context, job queue.Job) error {
	metrics.AddRunsInFlight(1)
	defer metrics.AddRunsInFlight(-1)

	start := time.Now()
	w.logger.Info(ctx, "pipeline run started", logger.String("run_id", job.ID), logger.String("origin", job.Origin))

	err := w.runner.Execute(ctx, job)
	outcome := Outcome(err)
	metrics.RecordPipelineRun(outcome)

	fields := []logger.Field{
		logger.String("run_id", job.ID),
		logger.String("outcome", outcome),
		logger.Duration("took", time.Since(start)),
	}
	if err != nil {
		metrics.RecordErrorByComponent("worker", outcome)
		w.logger.Error(ctx, "pipeline run ended", append(fields, logger.Error(err))...)
		return fmt.Errorf("run %s: %w", job.ID, err)
	}
	w.logger.Info(ctx, "pipeline run ended", fields...)
	return nil
}

// Outcome labels a run result for metrics and run status.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "succeeded"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "failed"
	}
}

// Pool manages the workers and the context their runs execute under.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	cancel context.CancelFunc
	logger logger.Logger
}

// NewPool creates workerCount workers; at least one.
func NewPool(workerCount int, q Queue, runner Runner) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		cancel:  func() {},
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range p.workers {
		p.workers[i] = NewInMemoryWorker(q, runner, WithName("worker-"+strconv.Itoa(i)))
	}
	return p
}

// Start launches every worker. Runs inherit ctx and are cancelled by
// Shutdown.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue, cancels in-flight runs and waits for the
// workers to exit.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}
	p.cancel()

	waitCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut error
	for i, w := range p.workers {
		select {
		case <-w.Done():
		case <-waitCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			timedOut = fmt.Errorf("worker %d: %w", i, waitCtx.Err())
		}
	}
	return timedOut
}
