package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-employment-verify/internal/domain"
)

type ConsentRepo struct {
	mu    sync.RWMutex
	items map[string]domain.Consent
}

func NewConsentRepo() *ConsentRepo {
	return &ConsentRepo{items: make(map[string]domain.Consent)}
}

func (r *ConsentRepo) Create(_ context.Context, c *domain.Consent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[c.VerificationID]; ok {
		return fmt.Errorf("consent for %s exists: %w", c.VerificationID, domain.ErrConflict)
	}
	r.items[c.VerificationID] = *c
	return nil
}

func (r *ConsentRepo) Get(_ context.Context, verificationID string) (*domain.Consent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.items[verificationID]
	if !ok {
		return nil, fmt.Errorf("consent not found: %w", domain.ErrNotFound)
	}
	return &c, nil
}

func (r *ConsentRepo) GetByTokenHash(_ context.Context, hash string) (*domain.Consent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.items {
		if c.TokenHash == hash {
			return &c, nil
		}
	}
	return nil, fmt.Errorf("consent token not found: %w", domain.ErrNotFound)
}

func (r *ConsentRepo) Decide(_ context.Context, verificationID string, status domain.ConsentStatus, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.items[verificationID]
	if !ok || c.Status != domain.ConsentPending {
		return fmt.Errorf("consent for %s already decided: %w", verificationID, domain.ErrAlreadyProcessed)
	}
	c.Status = status
	c.ActedAt = &at
	c.UpdatedAt = at
	r.items[verificationID] = c
	return nil
}
