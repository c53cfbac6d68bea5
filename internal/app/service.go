// Package service runs pipeline executions in the background and serves the
// read side of the stores. It implements the dependencies of the HTTP API.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/nbaetl/internal/adapters/mq/queue"
	"github.com/okian/nbaetl/internal/adapters/mq/worker"
	"github.com/okian/nbaetl/internal/domain/catalog"
	"github.com/okian/nbaetl/internal/domain/model"
	"github.com/okian/nbaetl/internal/pipeline"
	"github.com/okian/nbaetl/pkg/logger"
	"github.com/okian/nbaetl/pkg/metrics"
)

const (
	defaultWorkerCount = 1
	defaultQueueSize   = 16
	defaultHistory     = 100
)

// Executor performs one pipeline run.
type Executor interface {
	Run(ctx context.Context, runID string) (pipeline.Report, error)
}

// Run is the externally visible state of one pipeline run.
type Run struct {
	ID          string           `json:"run_id"`
	Status      model.RunStatus  `json:"status"`
	Origin      string           `json:"origin,omitempty"`
	RequestedAt time.Time        `json:"requested_at"`
	StartedAt   *time.Time       `json:"started_at,omitempty"`
	FinishedAt  *time.Time       `json:"finished_at,omitempty"`
	Error       string           `json:"error,omitempty"`
	Report      *pipeline.Report `json:"report,omitempty"`
}

// Service owns the run queue, the workers and the run registry.
type Service struct {
	mu sync.RWMutex

	executor Executor
	reader   catalog.Reader
	queue    *queue.InMemoryQueue
	pool     *worker.Pool

	workerCount int
	queueSize   int
	history     int

	runs  map[string]*Run
	order []string

	started bool
	now     func() time.Time
	logger  logger.Logger
}

// New constructs a Service. reader may be nil when no store is configured;
// the read methods then fail with ErrNoStore.
func New(executor Executor, reader catalog.Reader, opts ...Option) *Service {
	s := &Service{
		executor:    executor,
		reader:      reader,
		workerCount: defaultWorkerCount,
		queueSize:   defaultQueueSize,
		history:     defaultHistory,
		runs:        make(map[string]*Run),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start creates the queue and launches the workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.queue, worker.RunnerFunc(s.execute))
	s.pool.Start(context.WithoutCancel(ctx))

	s.started = true
	s.logger.Info(ctx, "etl service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize))
	return nil
}

// Stop closes the queue, cancels running pipelines and marks every
// unfinished run as cancelled.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	pool := s.pool
	s.mu.Unlock()

	ctx := context.Background()
	s.logger.Info(ctx, "stopping etl service...")
	if err := pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown incomplete", logger.Error(err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.runs {
		if !r.Status.Done() {
			s.finish(r, model.RunCancelled, "service stopped")
		}
	}
	s.logger.Info(ctx, "etl service stopped")
}

// Submit registers a run and queues it. It never waits for the run.
func (s *Service) Submit(ctx context.Context, origin string) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return Run{}, ErrNotStarted
	}
	if err := ctx.Err(); err != nil {
		return Run{}, err
	}

	r := &Run{
		ID:          uuid.NewString(),
		Status:      model.RunQueued,
		Origin:      origin,
		RequestedAt: s.now(),
	}
	job := model.RunRequest{ID: r.ID, RequestedAt: r.RequestedAt, Origin: origin}
	if !s.queue.Enqueue(ctx, job) {
		return Run{}, fmt.Errorf("%w: %d runs waiting", ErrQueueFull, s.queue.Len(ctx))
	}

	s.runs[r.ID] = r
	s.order = append(s.order, r.ID)
	s.evict()
	s.logger.Info(ctx, "run queued", logger.String("run_id", r.ID), logger.String("origin", origin))
	return *r, nil
}

// Lookup returns the state of a run.
func (s *Service) Lookup(_ context.Context, id string) (Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.runs[id]
	if !ok {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return *r, nil
}

// execute is the worker's view of a run.
func (s *Service) execute(ctx context.Context, job queue.Job) error {
	s.mu.Lock()
	r, ok := s.runs[job.ID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrRunNotFound, job.ID)
	}
	if r.Status.Done() {
		s.mu.Unlock()
		return nil
	}
	started := s.now()
	r.Status = model.RunRunning
	r.StartedAt = &started
	s.mu.Unlock()

	rep, err := s.executor.Run(ctx, job.ID)

	s.mu.Lock()
	defer s.mu.Unlock()
	r.Report = &rep
	switch worker.Outcome(err) {
	case "succeeded":
		s.finish(r, model.RunSucceeded, "")
	case "cancelled":
		s.finish(r, model.RunCancelled, err.Error())
	default:
		s.finish(r, model.RunFailed, err.Error())
	}
	return err
}

func (s *Service) finish(r *Run, status model.RunStatus, msg string) {
	at := s.now()
	r.Status = status
	r.FinishedAt = &at
	r.Error = msg
}

// evict drops the oldest finished runs beyond the history size.
func (s *Service) evict() {
	for len(s.order) > s.history {
		evicted := false
		for i, id := range s.order {
			if s.runs[id].Status.Done() {
				delete(s.runs, id)
				s.order = append(s.order[:i], s.order[i+1:]...)
				evicted = true
				break
			}
		}
		if !evicted {
			return
		}
	}
}

// Players lists stored players.
func (s *Service) Players(ctx context.Context, f catalog.PlayerFilter) (catalog.Page[catalog.Player], error) {
	if s.reader == nil {
		return catalog.Page[catalog.Player]{}, ErrNoStore
	}
	return s.reader.Players(ctx, f)
}

// Teams lists stored teams.
func (s *Service) Teams(ctx context.Context, p catalog.Paging) (catalog.Page[catalog.Team], error) {
	if s.reader == nil {
		return catalog.Page[catalog.Team]{}, ErrNoStore
	}
	return s.reader.Teams(ctx, p)
}

// Games lists stored games.
func (s *Service) Games(ctx context.Context, f catalog.GameFilter) (catalog.Page[catalog.Game], error) {
	if s.reader == nil {
		return catalog.Page[catalog.Game]{}, ErrNoStore
	}
	return s.reader.Games(ctx, f)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byStatus := map[model.RunStatus]int{}
	for _, r := range s.runs {
		byStatus[r.Status]++
	}
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"runs":        byStatus,
	}
	if s.started {
		n := s.queue.Len(context.Background())
		stats["queueLength"] = n
		metrics.UpdateRunQueueSize(n)
	}
	return stats
}
