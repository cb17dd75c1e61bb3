package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-employment-verify/internal/domain"
)

// VerificationRepo is an in-memory mirror of dynamo.VerificationRepo with
// the same conditional-write semantics.
type VerificationRepo struct {
	mu    sync.RWMutex
	items map[string]*domain.Verification
}

func NewVerificationRepo() *VerificationRepo {
	return &VerificationRepo{items: make(map[string]*domain.Verification)}
}

func (r *VerificationRepo) Create(_ context.Context, v *domain.Verification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[v.VerificationID]; ok {
		return fmt.Errorf("verification %s exists: %w", v.VerificationID, domain.ErrConflict)
	}
	v.Version = 1
	r.items[v.VerificationID] = v.Clone()
	return nil
}

func (r *VerificationRepo) Get(_ context.Context, verificationID string) (*domain.Verification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.items[verificationID]
	if !ok {
		return nil, fmt.Errorf("verification not found: %w", domain.ErrNotFound)
	}
	return v.Clone(), nil
}

func (r *VerificationRepo) Update(_ context.Context, v *domain.Verification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.items[v.VerificationID]
	if !ok || cur.Version != v.Version {
		return fmt.Errorf("verification %s version %d is stale: %w", v.VerificationID, v.Version, domain.ErrConflict)
	}
	next := v.Clone()
	next.Version = v.Version + 1
	r.items[v.VerificationID] = next
	v.Version = next.Version
	return nil
}

func (r *VerificationRepo) ClaimOutreach(_ context.Context, verificationID string, now, staleBefore time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.items[verificationID]
	if !ok || cur.Status != domain.StatusConsentApproved ||
		(cur.OutreachClaimedAt != nil && !cur.OutreachClaimedAt.Before(staleBefore)) {
		return fmt.Errorf("outreach for %s already claimed or not approved: %w", verificationID, domain.ErrConflict)
	}
	t := now.UTC()
	cur.OutreachClaimedAt = &t
	cur.Version++
	return nil
}

func (r *VerificationRepo) List(_ context.Context, f domain.ListFilter) ([]domain.Verification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Verification, 0)
	for _, v := range r.items {
		if f.Matches(v) {
			out = append(out, *v.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VerificationID > out[j].VerificationID })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *VerificationRepo) ListByStatus(ctx context.Context, status domain.Status) ([]domain.Verification, error) {
	return r.List(ctx, domain.ListFilter{Status: status})
}

func (r *VerificationRepo) CountByRequesterSince(_ context.Context, userID string, since time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, v := range r.items {
		if v.RequestedBy == userID && !v.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}
