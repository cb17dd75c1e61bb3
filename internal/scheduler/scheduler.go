package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

type outreachJobs interface {
	PollCalls(ctx context.Context) (int, error)
	ExpireEmails(ctx context.Context) (int, error)
	ResumeStalled(ctx context.Context) ([]string, error)
}

type consentReconciler interface {
	Reconcile(ctx context.Context) (int, error)
}

type enqueuer interface {
	Enqueue(verificationID string) error
}

// Scheduler runs the background workflow jobs: call polling, email expiry
// and stalled-outreach resumption.
type Scheduler struct {
	cron     *cron.Cron
	outreach outreachJobs
	consent  consentReconciler
	queue    enqueuer
	cfg      Config

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
}

type Config struct {
	CallPollInterval time.Duration
	SweepInterval    time.Duration
	JobTimeout       time.Duration
}

type Deps struct {
	Outreach outreachJobs
	Consent  consentReconciler
	Queue    enqueuer
	Config   Config
}

func New(deps Deps) *Scheduler {
	cfg := deps.Config
	if cfg.CallPollInterval <= 0 {
		cfg.CallPollInterval = 5 * time.Second
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = time.Minute
	}
	logger := slogLogger{}
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		outreach: deps.Outreach,
		consent:  deps.Consent,
		queue:    deps.Queue,
		cfg:      cfg,
	}
}

// Start registers the jobs and starts the cron runner.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("scheduler already running")
	}

	jobs := []struct {
		name  string
		every time.Duration
		run   func(context.Context)
	}{
		{"poll_calls", s.cfg.CallPollInterval, s.pollCalls},
		{"expire_emails", s.cfg.SweepInterval, s.expireEmails},
		{"resume_outreach", s.cfg.SweepInterval, s.resumeOutreach},
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	for _, j := range jobs {
		spec := "@every " + j.every.String()
		if _, err := s.cron.AddFunc(spec, func() { s.runJob(j.name, j.run) }); err != nil {
			s.cancel()
			return fmt.Errorf("schedule %s: %w", j.name, err)
		}
	}
	s.cron.Start()
	s.running = true
	slog.Info("scheduler started", "call_poll_interval", s.cfg.CallPollInterval, "sweep_interval", s.cfg.SweepInterval)
	return nil
}

// Stop waits for running jobs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.cancel()
	<-s.cron.Stop().Done()
	s.running = false
	slog.Info("scheduler stopped")
}

func (s *Scheduler) runJob(name string, run func(context.Context)) {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.JobTimeout)
	defer cancel()
	start := time.Now()
	run(ctx)
	slog.Debug("job finished", "job", name, "took", time.Since(start))
}

func (s *Scheduler) pollCalls(ctx context.Context) {
	n, err := s.outreach.PollCalls(ctx)
	if err != nil {
		slog.Warn("poll calls", "err", err)
	}
	if n > 0 {
		slog.Info("calls completed", "count", n)
	}
}

func (s *Scheduler) expireEmails(ctx context.Context) {
	n, err := s.outreach.ExpireEmails(ctx)
	if err != nil {
		slog.Warn("expire employer emails", "err", err)
	}
	if n > 0 {
		slog.Info("employer emails expired", "count", n)
	}
}

func (s *Scheduler) resumeOutreach(ctx context.Context) {
	if s.consent != nil {
		if n, err := s.consent.Reconcile(ctx); err != nil {
			slog.Warn("reconcile consents", "err", err)
		} else if n > 0 {
			slog.Info("consent decisions reconciled", "count", n)
		}
	}
	ids, err := s.outreach.ResumeStalled(ctx)
	if err != nil {
		slog.Warn("find stalled outreach", "err", err)
	}
	for _, id := range ids {
		if err := s.queue.Enqueue(id); err != nil {
			slog.Warn("re-enqueue outreach", "verification_id", id, "err", err)
			return
		}
	}
	if len(ids) > 0 {
		slog.Info("stalled outreach re-enqueued", "count", len(ids))
	}
}

// slogLogger adapts cron's logger interface to slog.
type slogLogger struct{}

func (slogLogger) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (slogLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}
