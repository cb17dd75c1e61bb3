package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-employment-verify/internal/domain"
)

type EmailVerificationRepo struct {
	mu    sync.RWMutex
	items map[string]domain.EmployerEmailVerification // keyed by email_verification_id
}

func NewEmailVerificationRepo() *EmailVerificationRepo {
	return &EmailVerificationRepo{items: make(map[string]domain.EmployerEmailVerification)}
}

func (r *EmailVerificationRepo) Create(_ context.Context, e *domain.EmployerEmailVerification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[e.EmailVerificationID]; ok {
		return fmt.Errorf("email verification %s exists: %w", e.EmailVerificationID, domain.ErrConflict)
	}
	r.items[e.EmailVerificationID] = *e
	return nil
}

func (r *EmailVerificationRepo) ListByVerification(_ context.Context, verificationID string) ([]domain.EmployerEmailVerification, error) {
	return r.filter(func(e *domain.EmployerEmailVerification) bool { return e.VerificationID == verificationID }), nil
}

func (r *EmailVerificationRepo) ListPending(_ context.Context) ([]domain.EmployerEmailVerification, error) {
	return r.filter(func(e *domain.EmployerEmailVerification) bool { return e.Status == domain.EmailPending }), nil
}

func (r *EmailVerificationRepo) GetByTokenHash(_ context.Context, hash string) (*domain.EmployerEmailVerification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.items {
		if e.TokenHash == hash {
			return &e, nil
		}
	}
	return nil, fmt.Errorf("email verification token not found: %w", domain.ErrNotFound)
}

func (r *EmailVerificationRepo) Resolve(_ context.Context, _, emailVerificationID string, status domain.EmailStatus, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.items[emailVerificationID]
	if !ok || e.Status != domain.EmailPending {
		return fmt.Errorf("email verification %s already resolved: %w", emailVerificationID, domain.ErrAlreadyProcessed)
	}
	e.Status = status
	e.RespondedAt = &at
	r.items[emailVerificationID] = e
	return nil
}

// Reissue swaps the token of a pending, unsent attempt.
func (r *EmailVerificationRepo) Reissue(_ context.Context, _, emailVerificationID, tokenHash string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.items[emailVerificationID]
	if !ok || !e.Unsent() {
		return fmt.Errorf("email verification %s already sent or resolved: %w", emailVerificationID, domain.ErrAlreadyProcessed)
	}
	e.TokenHash = tokenHash
	e.ExpiresAt = expiresAt
	r.items[emailVerificationID] = e
	return nil
}

func (r *EmailVerificationRepo) MarkSent(_ context.Context, _, emailVerificationID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.items[emailVerificationID]
	if !ok {
		return fmt.Errorf("email verification %s: %w", emailVerificationID, domain.ErrNotFound)
	}
	e.SentAt = &at
	r.items[emailVerificationID] = e
	return nil
}

func (r *EmailVerificationRepo) filter(keep func(*domain.EmployerEmailVerification) bool) []domain.EmployerEmailVerification {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.EmployerEmailVerification, 0)
	for _, e := range r.items {
		if keep(&e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmailVerificationID < out[j].EmailVerificationID })
	return out
}
