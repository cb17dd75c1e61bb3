package records

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-employment-verify/internal/domain"
	"github.com/go-employment-verify/internal/infrastructure/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, ev domain.LifecycleEvent) error {
	return m.Called(ctx, ev).Error(0)
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func seed(t *testing.T, repo *memory.VerificationRepo, status domain.Status) *domain.Verification {
	t.Helper()
	v := &domain.Verification{
		VerificationID: "01V",
		RequestedBy:    "u1",
		CandidateName:  "Ada",
		CompanyName:    "Acme",
		Status:         status,
		CreatedAt:      fixedNow,
		UpdatedAt:      fixedNow,
	}
	require.NoError(t, repo.Create(context.Background(), v))
	return v
}

func newTracker(repo verificationStore, pub eventPublisher) *Tracker {
	return NewTracker(TrackerDeps{
		VerificationRepo: repo,
		Publisher:        pub,
		Now:              func() time.Time { return fixedNow },
	})
}

func TestAdvance_AppliesTransitionAndMutation(t *testing.T) {
	repo := memory.NewVerificationRepo()
	seed(t, repo, domain.StatusPendingConsent)
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, mock.MatchedBy(func(ev domain.LifecycleEvent) bool {
		return ev.From == domain.StatusPendingConsent && ev.To == domain.StatusConsentApproved
	})).Return(nil)

	v, err := newTracker(repo, pub).Advance(context.Background(), "01V", domain.EventConsentApproved, func(v *domain.Verification) error {
		v.SetProgress(domain.StepConsentResponse, domain.StepCompleted, "approved", fixedNow)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, domain.StatusConsentApproved, v.Status)
	assert.Equal(t, int64(2), v.Version)
	stored, _ := repo.Get(context.Background(), "01V")
	assert.True(t, stored.HasProgress(domain.StepConsentResponse))
	pub.AssertExpectations(t)
}

func TestAdvance_InvalidEdgeLeavesRecordUntouched(t *testing.T) {
	repo := memory.NewVerificationRepo()
	seed(t, repo, domain.StatusConsentDenied)

	_, err := newTracker(repo, nil).Advance(context.Background(), "01V", domain.EventCallDispatched, nil)

	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	stored, _ := repo.Get(context.Background(), "01V")
	assert.Equal(t, domain.StatusConsentDenied, stored.Status)
	assert.Equal(t, int64(1), stored.Version)
}

func TestAdvance_MutationCannotChangeStatus(t *testing.T) {
	repo := memory.NewVerificationRepo()
	seed(t, repo, domain.StatusPendingConsent)

	_, err := newTracker(repo, nil).Advance(context.Background(), "01V", domain.EventConsentApproved, func(v *domain.Verification) error {
		v.Status = domain.StatusCompleted
		return nil
	})

	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestAdvance_MutationErrorAborts(t *testing.T) {
	repo := memory.NewVerificationRepo()
	seed(t, repo, domain.StatusPendingConsent)
	boom := errors.New("boom")

	_, err := newTracker(repo, nil).Advance(context.Background(), "01V", domain.EventConsentApproved, func(*domain.Verification) error {
		return boom
	})

	assert.ErrorIs(t, err, boom)
	stored, _ := repo.Get(context.Background(), "01V")
	assert.Equal(t, domain.StatusPendingConsent, stored.Status)
}

func TestAdvance_PublishFailureIsNotFatal(t *testing.T) {
	repo := memory.NewVerificationRepo()
	seed(t, repo, domain.StatusPendingConsent)
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, mock.Anything).Return(errors.New("sns down"))

	v, err := newTracker(repo, pub).Advance(context.Background(), "01V", domain.EventConsentDenied, nil)

	require.NoError(t, err)
	assert.Equal(t, domain.StatusConsentDenied, v.Status)
}

// conflictingStore fails the first n updates with ErrConflict.
type conflictingStore struct {
	*memory.VerificationRepo
	mu        sync.Mutex
	conflicts int
	updates   int
}

func (s *conflictingStore) Update(ctx context.Context, v *domain.Verification) error {
	s.mu.Lock()
	s.updates++
	if s.conflicts > 0 {
		s.conflicts--
		s.mu.Unlock()
		return fmt.Errorf("stale: %w", domain.ErrConflict)
	}
	s.mu.Unlock()
	return s.VerificationRepo.Update(ctx, v)
}

func TestAdvance_RetriesOnConflict(t *testing.T) {
	repo := memory.NewVerificationRepo()
	seed(t, repo, domain.StatusPendingConsent)
	store := &conflictingStore{VerificationRepo: repo, conflicts: 2}

	v, err := newTracker(store, nil).Advance(context.Background(), "01V", domain.EventConsentApproved, nil)

	require.NoError(t, err)
	assert.Equal(t, domain.StatusConsentApproved, v.Status)
	assert.Equal(t, 3, store.updates)
}

func TestAdvance_GivesUpAfterMaxAttempts(t *testing.T) {
	repo := memory.NewVerificationRepo()
	seed(t, repo, domain.StatusPendingConsent)
	store := &conflictingStore{VerificationRepo: repo, conflicts: 100}

	_, err := newTracker(store, nil).Advance(context.Background(), "01V", domain.EventConsentApproved, nil)

	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, defaultMaxAttempts, store.updates)
}

func TestAdvance_ConcurrentWritersSingleTransition(t *testing.T) {
	repo := memory.NewVerificationRepo()
	seed(t, repo, domain.StatusPendingConsent)
	tr := newTracker(repo, nil)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := tr.Advance(context.Background(), "01V", domain.EventConsentApproved, nil); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestUpdate_RejectsTerminalRecords(t *testing.T) {
	repo := memory.NewVerificationRepo()
	seed(t, repo, domain.StatusCompleted)

	_, err := newTracker(repo, nil).Update(context.Background(), "01V", func(v *domain.Verification) error {
		v.FinalReason = "rewritten"
		return nil
	})

	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestUpdate_KeepsStatus(t *testing.T) {
	repo := memory.NewVerificationRepo()
	seed(t, repo, domain.StatusConsentApproved)

	v, err := newTracker(repo, nil).Update(context.Background(), "01V", func(v *domain.Verification) error {
		v.ContactPhone = "+14155550100"
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, domain.StatusConsentApproved, v.Status)
	assert.Equal(t, "+14155550100", v.ContactPhone)
}

func TestRecordAttestation(t *testing.T) {
	t.Run("stores uid on completed record", func(t *testing.T) {
		repo := memory.NewVerificationRepo()
		seed(t, repo, domain.StatusCompleted)

		v, err := newTracker(repo, nil).RecordAttestation(context.Background(), "01V", "0xabc", "")

		require.NoError(t, err)
		assert.Equal(t, "0xabc", v.AttestationUID)
		require.NotNil(t, v.AttestationDate)
		assert.Equal(t, fixedNow, *v.AttestationDate)
	})

	t.Run("records failure", func(t *testing.T) {
		repo := memory.NewVerificationRepo()
		seed(t, repo, domain.StatusCompleted)

		v, err := newTracker(repo, nil).RecordAttestation(context.Background(), "01V", "", "chain unavailable")

		require.NoError(t, err)
		assert.Empty(t, v.AttestationUID)
		assert.Equal(t, "chain unavailable", v.AttestationError)
	})

	t.Run("rejects non-completed record", func(t *testing.T) {
		repo := memory.NewVerificationRepo()
		seed(t, repo, domain.StatusEmployerEmailSent)

		_, err := newTracker(repo, nil).RecordAttestation(context.Background(), "01V", "0xabc", "")

		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("second attestation is already processed", func(t *testing.T) {
		repo := memory.NewVerificationRepo()
		seed(t, repo, domain.StatusCompleted)
		tr := newTracker(repo, nil)
		_, err := tr.RecordAttestation(context.Background(), "01V", "0xabc", "")
		require.NoError(t, err)

		_, err = tr.RecordAttestation(context.Background(), "01V", "0xdef", "")

		assert.ErrorIs(t, err, domain.ErrAlreadyProcessed)
	})
}
