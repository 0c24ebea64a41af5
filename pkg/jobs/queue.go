package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ErrQueueFull is returned by TryEnqueue when the buffer has no room.
var ErrQueueFull = errors.New("queue buffer full")

// Job represents a queued background task.
type Job struct {
	ID       string
	Type     string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// Handler processes a job.
type Handler func(context.Context, Job) error

// QueueConfig configures worker pool behaviour.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	// DrainTimeout bounds how long Stop keeps processing buffered jobs.
	DrainTimeout time.Duration
	Logger       *zap.Logger
}

// Queue is a lightweight in-memory job dispatcher backed by goroutines.
type Queue struct {
	name    string
	handler Handler

	workers      int
	maxRetries   int
	retryDelay   time.Duration
	drainTimeout time.Duration
	logger       *zap.Logger

	jobs chan Job
	// outstanding counts jobs that are buffered, running or waiting for a retry.
	outstanding int64

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
	stopped bool
}

// NewQueue builds a new queue with the provided handler.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 64
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Queue{
		name:         name,
		handler:      handler,
		workers:      cfg.Workers,
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay,
		drainTimeout: cfg.DrainTimeout,
		logger:       cfg.Logger,
		jobs:         make(chan Job, cfg.BufferSize),
	}
}

// Start begins worker consumption. Safe to call once.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.started = true
	q.logger.Sugar().Infow("queue started", "queue", q.name, "workers", q.workers)
}

// Stop stops accepting jobs, keeps processing outstanding ones (retries
// included) for at most the drain timeout, then cancels the workers and waits
// for them to exit.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started || q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	q.mu.Unlock()

	deadline := time.Now().Add(q.drainTimeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for q.Outstanding() > 0 && time.Now().Before(deadline) {
		<-ticker.C
	}
	if pending := q.Outstanding(); pending > 0 {
		q.logger.Sugar().Warnw("queue drain timed out", "queue", q.name, "outstanding", pending)
	}

	q.cancel()
	q.wg.Wait()
	q.logger.Sugar().Infow("queue stopped", "queue", q.name)
}

// Enqueue pushes a job onto the queue, blocking while the buffer is full.
func (q *Queue) Enqueue(ctx context.Context, job Job) error {
	return q.enqueue(ctx, job, true)
}

// TryEnqueue pushes a job without blocking and returns ErrQueueFull when the
// buffer has no room.
func (q *Queue) TryEnqueue(job Job) error {
	return q.enqueue(context.Background(), job, false)
}

// Outstanding reports jobs that are buffered, running or awaiting a retry.
func (q *Queue) Outstanding() int {
	return int(atomic.LoadInt64(&q.outstanding))
}

func (q *Queue) enqueue(ctx context.Context, job Job, block bool) error {
	q.mu.Lock()
	started, stopped, queueCtx := q.started, q.stopped, q.ctx
	q.mu.Unlock()

	if !started {
		return fmt.Errorf("queue %s not started", q.name)
	}
	if stopped {
		return fmt.Errorf("queue %s stopped", q.name)
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}

	atomic.AddInt64(&q.outstanding, 1)
	if !block {
		select {
		case q.jobs <- job:
			return nil
		default:
			atomic.AddInt64(&q.outstanding, -1)
			return fmt.Errorf("queue %s: %w", q.name, ErrQueueFull)
		}
	}

	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		atomic.AddInt64(&q.outstanding, -1)
		return ctx.Err()
	case <-queueCtx.Done():
		atomic.AddInt64(&q.outstanding, -1)
		return fmt.Errorf("queue %s stopped: %w", q.name, queueCtx.Err())
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.jobs:
			if err := q.handler(q.ctx, job); err != nil {
				q.handleFailure(job, err)
				continue
			}
			atomic.AddInt64(&q.outstanding, -1)
		}
	}
}

func (q *Queue) handleFailure(job Job, err error) {
	job.Attempt++
	if job.Attempt > q.maxRetries {
		atomic.AddInt64(&q.outstanding, -1)
		q.logger.Sugar().Errorw("job exceeded retries", "queue", q.name, "job_id", job.ID, "type", job.Type, "error", err)
		return
	}
	q.logger.Sugar().Warnw("job failed, retrying", "queue", q.name, "job_id", job.ID, "type", job.Type, "attempt", job.Attempt, "error", err)

	go func(j Job) {
		timer := time.NewTimer(q.retryDelay * time.Duration(j.Attempt))
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
			atomic.AddInt64(&q.outstanding, -1)
			return
		case <-timer.C:
		}
		// Retries bypass the stopped flag so they still run while Stop drains.
		select {
		case q.jobs <- j:
		case <-q.ctx.Done():
			atomic.AddInt64(&q.outstanding, -1)
			q.logger.Sugar().Errorw("failed to requeue job", "queue", q.name, "job_id", j.ID, "error", q.ctx.Err())
		}
	}(job)
}
