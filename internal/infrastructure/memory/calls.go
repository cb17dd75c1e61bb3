package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/go-employment-verify/internal/domain"
)

type CallRepo struct {
	mu    sync.RWMutex
	items map[string]domain.Call // keyed by call_id
}

func NewCallRepo() *CallRepo {
	return &CallRepo{items: make(map[string]domain.Call)}
}

func (r *CallRepo) Create(_ context.Context, c *domain.Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[c.CallID]; ok {
		return fmt.Errorf("call %s exists: %w", c.CallID, domain.ErrConflict)
	}
	r.items[c.CallID] = *c
	return nil
}

func (r *CallRepo) ListByVerification(_ context.Context, verificationID string) ([]domain.Call, error) {
	return r.filter(func(c *domain.Call) bool { return c.VerificationID == verificationID }), nil
}

func (r *CallRepo) ListInProgress(_ context.Context) ([]domain.Call, error) {
	return r.filter(func(c *domain.Call) bool { return c.Status == domain.CallInProgress }), nil
}

func (r *CallRepo) GetByExternalID(_ context.Context, externalID string) (*domain.Call, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.items {
		if externalID != "" && c.ExternalCallID == externalID {
			return &c, nil
		}
	}
	return nil, fmt.Errorf("call not found: %w", domain.ErrNotFound)
}

func (r *CallRepo) Complete(_ context.Context, c *domain.Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.items[c.CallID]
	if !ok || cur.Status != domain.CallInProgress {
		return fmt.Errorf("call %s already completed: %w", c.CallID, domain.ErrAlreadyProcessed)
	}
	r.items[c.CallID] = *c
	return nil
}

func (r *CallRepo) filter(keep func(*domain.Call) bool) []domain.Call {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Call, 0)
	for _, c := range r.items {
		if keep(&c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CallID < out[j].CallID })
	return out
}
