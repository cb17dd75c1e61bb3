package records

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-employment-verify/internal/domain"
	"github.com/go-employment-verify/internal/obs"
)

const defaultMaxAttempts = 5

type verificationStore interface {
	Get(ctx context.Context, verificationID string) (*domain.Verification, error)
	Update(ctx context.Context, v *domain.Verification) error
}

type eventPublisher interface {
	Publish(ctx context.Context, ev domain.LifecycleEvent) error
}

// Mutator edits a freshly read Verification before it is written back.
// Returning an error aborts the write.
type Mutator func(v *domain.Verification) error

// Tracker is the single writer of Verification records. Every write is a
// read-modify-write conditional on the record version and is retried on
// conflict against fresh state.
type Tracker struct {
	repo        verificationStore
	publisher   eventPublisher
	now         func() time.Time
	maxAttempts int
}

type TrackerDeps struct {
	VerificationRepo verificationStore
	// Publisher is optional; lifecycle events are dropped when nil.
	Publisher   eventPublisher
	Now         func() time.Time
	MaxAttempts int
}

func NewTracker(deps TrackerDeps) *Tracker {
	t := &Tracker{
		repo:        deps.VerificationRepo,
		publisher:   deps.Publisher,
		now:         deps.Now,
		maxAttempts: deps.MaxAttempts,
	}
	if t.now == nil {
		t.now = func() time.Time { return time.Now().UTC() }
	}
	if t.maxAttempts <= 0 {
		t.maxAttempts = defaultMaxAttempts
	}
	return t
}

// Get reads the current record.
func (t *Tracker) Get(ctx context.Context, verificationID string) (*domain.Verification, error) {
	return t.repo.Get(ctx, verificationID)
}

// Advance moves the record along ev and applies mutate in the same write.
// The edge is re-validated on every attempt, so a concurrent writer that
// already moved the record yields ErrInvalidTransition rather than a
// duplicate transition.
func (t *Tracker) Advance(ctx context.Context, verificationID string, ev domain.Event, mutate Mutator) (*domain.Verification, error) {
	var from domain.Status
	v, err := t.write(ctx, verificationID, func(v *domain.Verification, now time.Time) error {
		from = v.Status
		if err := domain.Transition(v, ev, now); err != nil {
			return err
		}
		to := v.Status
		if mutate != nil {
			if err := mutate(v); err != nil {
				return err
			}
		}
		if v.Status != to {
			return fmt.Errorf("mutation changed status of %s: %w", verificationID, domain.ErrInvalidTransition)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	obs.ObserveTransition(string(from), string(v.Status), string(ev))
	t.publish(ctx, domain.LifecycleEvent{
		VerificationID: v.VerificationID,
		Event:          ev,
		From:           from,
		To:             v.Status,
		FinalResult:    v.FinalResult,
		At:             v.UpdatedAt,
	})
	return v, nil
}

// Update applies mutate without a status change. Terminal records are
// immutable; use RecordAttestation for the attestation pointer.
func (t *Tracker) Update(ctx context.Context, verificationID string, mutate Mutator) (*domain.Verification, error) {
	return t.write(ctx, verificationID, func(v *domain.Verification, now time.Time) error {
		if v.Status.Terminal() {
			return fmt.Errorf("verification %s is %s: %w", verificationID, v.Status, domain.ErrConflict)
		}
		status := v.Status
		v.UpdatedAt = now
		if err := mutate(v); err != nil {
			return err
		}
		if v.Status != status {
			return fmt.Errorf("mutation changed status of %s: %w", verificationID, domain.ErrInvalidTransition)
		}
		return nil
	})
}

// RecordAttestation stores the attestation outcome on a COMPLETED record.
// An empty uid with a non-empty failure records the error instead.
func (t *Tracker) RecordAttestation(ctx context.Context, verificationID, uid, failure string) (*domain.Verification, error) {
	return t.write(ctx, verificationID, func(v *domain.Verification, now time.Time) error {
		if v.Status != domain.StatusCompleted {
			return fmt.Errorf("attestation on %s verification %s: %w", v.Status, verificationID, domain.ErrInvalidTransition)
		}
		if v.AttestationUID != "" {
			return fmt.Errorf("verification %s already attested: %w", verificationID, domain.ErrAlreadyProcessed)
		}
		if uid != "" {
			v.AttestationUID = uid
			v.AttestationDate = &now
			v.AttestationError = ""
		} else {
			v.AttestationError = failure
		}
		v.UpdatedAt = now
		return nil
	})
}

func (t *Tracker) write(ctx context.Context, verificationID string, apply func(*domain.Verification, time.Time) error) (*domain.Verification, error) {
	for attempt := 1; ; attempt++ {
		v, err := t.repo.Get(ctx, verificationID)
		if err != nil {
			return nil, err
		}
		if err := apply(v, t.now()); err != nil {
			return nil, err
		}
		err = t.repo.Update(ctx, v)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, domain.ErrConflict) || attempt >= t.maxAttempts {
			return nil, fmt.Errorf("write verification %s: %w", verificationID, err)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

func (t *Tracker) publish(ctx context.Context, ev domain.LifecycleEvent) {
	if t.publisher == nil {
		return
	}
	if err := t.publisher.Publish(ctx, ev); err != nil {
		slog.Warn("publish lifecycle event", "verification_id", ev.VerificationID, "event", ev.Event, "err", err)
	}
}
