package events

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-consultation-api/pkg/jobs"
)

const publishJobType = "event.publish"

// AsyncPublisher hands events to a background queue so request handlers never
// wait on the bus. Failed publishes are retried by the queue.
type AsyncPublisher struct {
	next    Publisher
	queue   *jobs.Queue
	timeout time.Duration
	logger  *zap.Logger
}

// AsyncConfig configures NewAsyncPublisher.
type AsyncConfig struct {
	Workers        int
	Retries        int
	PublishTimeout time.Duration
	Logger         *zap.Logger
}

// NewAsyncPublisher wraps next. Call Start before publishing and Close on shutdown.
func NewAsyncPublisher(next Publisher, cfg AsyncConfig) *AsyncPublisher {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 3 * time.Second
	}
	p := &AsyncPublisher{next: next, timeout: cfg.PublishTimeout, logger: cfg.Logger}
	p.queue = jobs.NewQueue("events", p.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.Retries,
		RetryDelay: 500 * time.Millisecond,
		Logger:     cfg.Logger,
	})
	return p
}

// Start launches the dispatch workers.
func (p *AsyncPublisher) Start(ctx context.Context) {
	p.queue.Start(ctx)
}

// Publish enqueues the event. It fails only when the queue is full or stopped.
func (p *AsyncPublisher) Publish(_ context.Context, event Event) error {
	return p.queue.TryEnqueue(jobs.Job{ID: event.ID, Type: publishJobType, Payload: event})
}

// Close drains the queue and closes the underlying publisher.
func (p *AsyncPublisher) Close() error {
	p.queue.Stop()
	return p.next.Close()
}

func (p *AsyncPublisher) handle(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(Event)
	if !ok {
		p.logger.Error("unexpected event payload", zap.String("job_id", job.ID), zap.String("type", fmt.Sprintf("%T", job.Payload)))
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.next.Publish(ctx, event)
}
