package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockOutreach struct{ mock.Mock }

func (m *mockOutreach) PollCalls(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockOutreach) ExpireEmails(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockOutreach) ResumeStalled(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}

type mockConsent struct{ mock.Mock }

func (m *mockConsent) Reconcile(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type mockQueue struct{ mock.Mock }

func (m *mockQueue) Enqueue(verificationID string) error {
	return m.Called(verificationID).Error(0)
}

func newTestScheduler(o *mockOutreach, c *mockConsent, q *mockQueue) *Scheduler {
	return New(Deps{
		Outreach: o,
		Consent:  c,
		Queue:    q,
		Config:   Config{CallPollInterval: time.Second, SweepInterval: time.Hour},
	})
}

func TestResumeOutreach(t *testing.T) {
	t.Run("reconciles consent then enqueues stalled ids", func(t *testing.T) {
		o, c, q := &mockOutreach{}, &mockConsent{}, &mockQueue{}
		c.On("Reconcile", mock.Anything).Return(1, nil).Once()
		o.On("ResumeStalled", mock.Anything).Return([]string{"v1", "v2"}, nil).Once()
		q.On("Enqueue", "v1").Return(nil).Once()
		q.On("Enqueue", "v2").Return(nil).Once()

		newTestScheduler(o, c, q).resumeOutreach(context.Background())

		o.AssertExpectations(t)
		c.AssertExpectations(t)
		q.AssertExpectations(t)
	})

	t.Run("stops enqueueing once the queue refuses", func(t *testing.T) {
		o, c, q := &mockOutreach{}, &mockConsent{}, &mockQueue{}
		c.On("Reconcile", mock.Anything).Return(0, nil)
		o.On("ResumeStalled", mock.Anything).Return([]string{"v1", "v2"}, nil)
		q.On("Enqueue", "v1").Return(errors.New("queue full")).Once()

		newTestScheduler(o, c, q).resumeOutreach(context.Background())

		q.AssertNotCalled(t, "Enqueue", "v2")
	})

	t.Run("reconcile failure does not block resume", func(t *testing.T) {
		o, c, q := &mockOutreach{}, &mockConsent{}, &mockQueue{}
		c.On("Reconcile", mock.Anything).Return(0, errors.New("dynamo down"))
		o.On("ResumeStalled", mock.Anything).Return([]string{"v1"}, nil).Once()
		q.On("Enqueue", "v1").Return(nil).Once()

		newTestScheduler(o, c, q).resumeOutreach(context.Background())

		q.AssertExpectations(t)
	})
}

func TestPollAndExpire(t *testing.T) {
	o, c, q := &mockOutreach{}, &mockConsent{}, &mockQueue{}
	o.On("PollCalls", mock.Anything).Return(2, nil).Once()
	o.On("ExpireEmails", mock.Anything).Return(0, errors.New("boom")).Once()

	s := newTestScheduler(o, c, q)
	s.pollCalls(context.Background())
	s.expireEmails(context.Background())

	o.AssertExpectations(t)
}

func TestStartStop(t *testing.T) {
	o, c, q := &mockOutreach{}, &mockConsent{}, &mockQueue{}
	o.On("PollCalls", mock.Anything).Return(0, nil).Maybe()

	s := newTestScheduler(o, c, q)
	require.NoError(t, s.Start(context.Background()))
	assert.Len(t, s.cron.Entries(), 3)
	assert.Error(t, s.Start(context.Background()), "second start")

	s.Stop()
	s.Stop()
	assert.False(t, s.running)
}

func TestRunJobCarriesTimeout(t *testing.T) {
	s := newTestScheduler(&mockOutreach{}, &mockConsent{}, &mockQueue{})
	s.cfg.JobTimeout = 50 * time.Millisecond
	s.ctx = context.Background()

	var deadline time.Time
	var ok bool
	s.runJob("deadline-check", func(ctx context.Context) {
		deadline, ok = ctx.Deadline()
	})
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(50*time.Millisecond), deadline, 50*time.Millisecond)
}
