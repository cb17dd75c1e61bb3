package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-employment-verify/internal/domain"
)

type EvidenceRepo struct {
	mu    sync.RWMutex
	items map[string]domain.Evidence // keyed by evidence_id
}

func NewEvidenceRepo() *EvidenceRepo {
	return &EvidenceRepo{items: make(map[string]domain.Evidence)}
}

func (r *EvidenceRepo) Put(_ context.Context, e *domain.Evidence) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[e.EvidenceID] = *e
	return nil
}

func (r *EvidenceRepo) ListByVerification(_ context.Context, verificationID string) ([]domain.Evidence, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Evidence, 0)
	for _, e := range r.items {
		if e.VerificationID == verificationID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EvidenceID < out[j].EvidenceID })
	return out, nil
}

func (r *EvidenceRepo) GetByTokenHash(_ context.Context, hash string) (*domain.Evidence, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.items {
		if hash != "" && e.TokenHash == hash {
			return &e, nil
		}
	}
	return nil, fmt.Errorf("evidence token not found: %w", domain.ErrNotFound)
}

func (r *EvidenceRepo) MarkVerified(_ context.Context, _, evidenceID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.items[evidenceID]
	if !ok || e.Status != domain.EvidencePending {
		return fmt.Errorf("evidence %s already verified: %w", evidenceID, domain.ErrAlreadyProcessed)
	}
	e.Status = domain.EvidenceVerified
	e.VerifiedAt = &at
	r.items[evidenceID] = e
	return nil
}
