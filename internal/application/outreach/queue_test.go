package outreach

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRunner struct {
	mu      sync.Mutex
	seen    []string
	retries []string
	block   chan struct{}
}

func (r *recordingRunner) Retry(_ context.Context, verificationID string) error {
	r.mu.Lock()
	r.retries = append(r.retries, verificationID)
	r.mu.Unlock()
	return nil
}

func (r *recordingRunner) Begin(ctx context.Context, verificationID string) error {
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.mu.Lock()
	r.seen = append(r.seen, verificationID)
	r.mu.Unlock()
	return nil
}

func (r *recordingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

func TestQueue_ProcessesJobs(t *testing.T) {
	runner := &recordingRunner{}
	q := NewQueue(runner, 2, 4, time.Second)
	q.Start()

	require.NoError(t, q.Enqueue("a"))
	require.NoError(t, q.Enqueue("b"))

	assert.Eventually(t, func() bool { return runner.count() == 2 }, time.Second, 5*time.Millisecond)
	q.Stop(context.Background())
}

func TestQueue_RetryJobsRunRetry(t *testing.T) {
	runner := &recordingRunner{}
	q := NewQueue(runner, 1, 4, time.Second)
	q.Start()

	require.NoError(t, q.Enqueue("a"))
	require.NoError(t, q.EnqueueRetry("b"))
	q.Stop(context.Background())

	assert.Equal(t, []string{"a"}, runner.seen)
	assert.Equal(t, []string{"b"}, runner.retries)
}

func TestQueue_Full(t *testing.T) {
	runner := &recordingRunner{block: make(chan struct{})}
	q := NewQueue(runner, 1, 1, time.Second)

	require.NoError(t, q.Enqueue("a"))
	assert.ErrorIs(t, q.Enqueue("b"), ErrQueueFull)

	close(runner.block)
	q.Start()
	q.Stop(context.Background())
	assert.Equal(t, 1, runner.count())
}

func TestQueue_EnqueueAfterStop(t *testing.T) {
	q := NewQueue(&recordingRunner{}, 1, 1, time.Second)
	q.Start()
	q.Stop(context.Background())

	assert.ErrorIs(t, q.Enqueue("a"), ErrQueueStopped)
}

func TestQueue_StopCancelsRunningJobs(t *testing.T) {
	runner := &recordingRunner{block: make(chan struct{})}
	q := NewQueue(runner, 1, 1, time.Minute)
	q.Start()
	require.NoError(t, q.Enqueue("a"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	q.Stop(ctx)

	assert.Zero(t, runner.count())
}
