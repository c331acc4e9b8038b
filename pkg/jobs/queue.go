package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RenderJob references one committed certificate awaiting PDF production.
type RenderJob struct {
	CertificateID string
	BatchID       string
	Attempt       int
	Enqueued      time.Time
}

// Handler renders the certificate artifact for a job.
type Handler func(context.Context, RenderJob) error

// QueueConfig configures worker pool behaviour.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// RenderQueue is an in-memory dispatcher that produces certificate PDFs after
// the issuance transaction has committed. A failed render is retried with a
// delay; it never affects the committed issuance records.
type RenderQueue struct {
	handler Handler

	workers    int
	bufferSize int
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger

	jobs    chan RenderJob
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewRenderQueue builds a queue with the provided handler.
func NewRenderQueue(handler Handler, cfg QueueConfig) *RenderQueue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 8
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &RenderQueue{
		handler:    handler,
		workers:    cfg.Workers,
		bufferSize: cfg.BufferSize,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     cfg.Logger,
		jobs:       make(chan RenderJob, cfg.BufferSize),
	}
}

// Start begins worker consumption. Safe to call once.
func (q *RenderQueue) Start(ctx context.Context) {
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
	q.logger.Sugar().Infow("render queue started", "workers", q.workers)
}

// Stop cancels workers and waits for them to exit.
func (q *RenderQueue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.cancel()
	q.mu.Unlock()
	q.wg.Wait()
	q.logger.Sugar().Infow("render queue stopped")
}

// Enqueue pushes a render job onto the queue.
func (q *RenderQueue) Enqueue(job RenderJob) error {
	q.mu.Lock()
	ctx := q.ctx
	started := q.started
	q.mu.Unlock()

	if !started {
		return fmt.Errorf("render queue not started")
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("render queue stopped: %w", ctx.Err())
	case q.jobs <- job:
		return nil
	}
}

func (q *RenderQueue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.jobs:
			if err := q.handler(q.ctx, job); err != nil {
				q.handleFailure(job, err)
			}
		}
	}
}

func (q *RenderQueue) handleFailure(job RenderJob, err error) {
	job.Attempt++
	if job.Attempt > q.maxRetries {
		q.logger.Sugar().Errorw("certificate render exceeded retries",
			"certificate_id", job.CertificateID, "batch_id", job.BatchID, "error", err)
		return
	}
	q.logger.Sugar().Warnw("certificate render failed, retrying",
		"certificate_id", job.CertificateID, "batch_id", job.BatchID, "attempt", job.Attempt, "error", err)

	go func(j RenderJob) {
		timer := time.NewTimer(q.retryDelay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
			return
		case <-timer.C:
			if err := q.Enqueue(j); err != nil {
				q.logger.Sugar().Errorw("failed to requeue render job", "certificate_id", j.CertificateID, "error", err)
			}
		}
	}(job)
}
