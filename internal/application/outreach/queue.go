package outreach

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/go-employment-verify/internal/domain"
	"github.com/go-employment-verify/internal/obs"
)

var (
	// ErrQueueFull indicates the outreach queue is currently saturated.
	ErrQueueFull = errors.New("outreach queue full")
	// ErrQueueStopped is returned by Enqueue after Stop.
	ErrQueueStopped = errors.New("outreach queue stopped")
)

type beginner interface {
	Begin(ctx context.Context, verificationID string) error
	Retry(ctx context.Context, verificationID string) error
}

type job struct {
	verificationID string
	retry          bool
}

// Queue runs Begin for approved verifications on a bounded worker pool.
type Queue struct {
	runner     beginner
	jobs       chan job
	workers    int
	jobTimeout time.Duration

	mu      sync.RWMutex
	stopped bool

	ctx       context.Context
	cancel    context.CancelFunc
	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// NewQueue constructs a worker pool.
func NewQueue(runner beginner, workers, queueSize int, jobTimeout time.Duration) *Queue {
	if workers <= 0 {
		workers = 2
	}
	if queueSize <= 0 {
		queueSize = 128
	}
	if jobTimeout <= 0 {
		jobTimeout = 2 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		runner:     runner,
		jobs:       make(chan job, queueSize),
		workers:    workers,
		jobTimeout: jobTimeout,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start launches worker goroutines.
func (q *Queue) Start() {
	q.startOnce.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go q.workerLoop()
		}
	})
}

func (q *Queue) workerLoop() {
	defer q.wg.Done()
	for j := range q.jobs {
		obs.SetQueueDepth(len(q.jobs))
		q.run(j)
	}
}

func (q *Queue) run(j job) {
	ctx, cancel := context.WithTimeout(q.ctx, q.jobTimeout)
	defer cancel()
	begin := q.runner.Begin
	if j.retry {
		begin = q.runner.Retry
	}
	verificationID := j.verificationID
	err := begin(ctx, verificationID)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrConflict):
		slog.Debug("outreach skipped", "verification_id", verificationID, "err", err)
	default:
		slog.Warn("outreach failed", "verification_id", verificationID, "err", err)
	}
}

// Stop drains queued jobs and waits for workers to finish. Jobs still
// running when ctx is done are cancelled.
func (q *Queue) Stop(ctx context.Context) {
	q.stopOnce.Do(func() {
		q.mu.Lock()
		q.stopped = true
		close(q.jobs)
		q.mu.Unlock()

		done := make(chan struct{})
		go func() {
			q.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			q.cancel()
			<-done
		}
		q.cancel()
	})
}

// Enqueue submits a verification for outreach without blocking.
func (q *Queue) Enqueue(verificationID string) error {
	return q.submit(job{verificationID: verificationID})
}

// EnqueueRetry submits an operator retry, which may place a call that
// failed before.
func (q *Queue) EnqueueRetry(verificationID string) error {
	return q.submit(job{verificationID: verificationID, retry: true})
}

func (q *Queue) submit(j job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.stopped {
		return ErrQueueStopped
	}
	select {
	case q.jobs <- j:
		obs.SetQueueDepth(len(q.jobs))
		return nil
	default:
		return ErrQueueFull
	}
}
