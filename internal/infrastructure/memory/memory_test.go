package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-employment-verify/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVerification(id string) *domain.Verification {
	now := time.Now().UTC()
	return &domain.Verification{
		VerificationID: id,
		RequestedBy:    "u1",
		Status:         domain.StatusPendingConsent,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestVerificationRepo_OptimisticUpdate(t *testing.T) {
	ctx := context.Background()
	r := NewVerificationRepo()
	require.NoError(t, r.Create(ctx, newVerification("v1")))

	a, err := r.Get(ctx, "v1")
	require.NoError(t, err)
	b, err := r.Get(ctx, "v1")
	require.NoError(t, err)

	a.Status = domain.StatusConsentApproved
	require.NoError(t, r.Update(ctx, a))
	assert.Equal(t, int64(2), a.Version)

	b.Status = domain.StatusConsentDenied
	assert.ErrorIs(t, r.Update(ctx, b), domain.ErrConflict)

	got, _ := r.Get(ctx, "v1")
	assert.Equal(t, domain.StatusConsentApproved, got.Status)
}

func TestVerificationRepo_CreateTwiceConflicts(t *testing.T) {
	ctx := context.Background()
	r := NewVerificationRepo()
	require.NoError(t, r.Create(ctx, newVerification("v1")))
	assert.ErrorIs(t, r.Create(ctx, newVerification("v1")), domain.ErrConflict)
}

func TestVerificationRepo_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	r := NewVerificationRepo()
	require.NoError(t, r.Create(ctx, newVerification("v1")))

	got, _ := r.Get(ctx, "v1")
	got.SetProgress(domain.StepWebScan, domain.StepCompleted, "x", time.Now())

	again, _ := r.Get(ctx, "v1")
	assert.False(t, again.HasProgress(domain.StepWebScan))
}

func TestVerificationRepo_ClaimOutreach(t *testing.T) {
	ctx := context.Background()
	r := NewVerificationRepo()
	v := newVerification("v1")
	require.NoError(t, r.Create(ctx, v))
	now := time.Now().UTC()

	assert.ErrorIs(t, r.ClaimOutreach(ctx, "v1", now, now.Add(-time.Minute)), domain.ErrConflict, "not approved yet")

	v, _ = r.Get(ctx, "v1")
	v.Status = domain.StatusConsentApproved
	require.NoError(t, r.Update(ctx, v))

	var wg sync.WaitGroup
	wins := make(chan struct{}, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.ClaimOutreach(ctx, "v1", now, now.Add(-time.Minute)) == nil {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)
	assert.Len(t, wins, 1)

	later := now.Add(time.Hour)
	assert.NoError(t, r.ClaimOutreach(ctx, "v1", later, later.Add(-time.Minute)), "stale lease can be reclaimed")
}

func TestVerificationRepo_ListAndCount(t *testing.T) {
	ctx := context.Background()
	r := NewVerificationRepo()
	for _, id := range []string{"01A", "01B", "01C"} {
		require.NoError(t, r.Create(ctx, newVerification(id)))
	}
	other := newVerification("01D")
	other.RequestedBy = "u2"
	require.NoError(t, r.Create(ctx, other))

	mine, err := r.List(ctx, domain.ListFilter{RequestedBy: "u1"})
	require.NoError(t, err)
	require.Len(t, mine, 3)
	assert.Equal(t, "01C", mine[0].VerificationID)

	limited, _ := r.List(ctx, domain.ListFilter{Limit: 2})
	assert.Len(t, limited, 2)

	n, err := r.CountByRequesterSince(ctx, "u1", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestConsentRepo_DecideOnce(t *testing.T) {
	ctx := context.Background()
	r := NewConsentRepo()
	require.NoError(t, r.Create(ctx, &domain.Consent{VerificationID: "v1", TokenHash: "h", Status: domain.ConsentPending}))
	assert.ErrorIs(t, r.Create(ctx, &domain.Consent{VerificationID: "v1"}), domain.ErrConflict)

	now := time.Now().UTC()
	require.NoError(t, r.Decide(ctx, "v1", domain.ConsentApproved, now))
	assert.ErrorIs(t, r.Decide(ctx, "v1", domain.ConsentDenied, now), domain.ErrAlreadyProcessed)

	c, err := r.GetByTokenHash(ctx, "h")
	require.NoError(t, err)
	assert.Equal(t, domain.ConsentApproved, c.Status)
	require.NotNil(t, c.ActedAt)

	_, err = r.GetByTokenHash(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCallRepo_CompleteOnce(t *testing.T) {
	ctx := context.Background()
	r := NewCallRepo()
	c := &domain.Call{VerificationID: "v1", CallID: "c1", ExternalCallID: "ext", Status: domain.CallInProgress}
	require.NoError(t, r.Create(ctx, c))

	inProg, _ := r.ListInProgress(ctx)
	assert.Len(t, inProg, 1)

	yes := domain.ResultYes
	done := *c
	done.Status = domain.CallEnded
	done.Result = &yes
	require.NoError(t, r.Complete(ctx, &done))
	assert.ErrorIs(t, r.Complete(ctx, &done), domain.ErrAlreadyProcessed)

	got, err := r.GetByExternalID(ctx, "ext")
	require.NoError(t, err)
	assert.Equal(t, domain.CallEnded, got.Status)
	inProg, _ = r.ListInProgress(ctx)
	assert.Empty(t, inProg)
}

func TestEmailVerificationRepo_ResolveOnce(t *testing.T) {
	ctx := context.Background()
	r := NewEmailVerificationRepo()
	require.NoError(t, r.Create(ctx, &domain.EmployerEmailVerification{
		VerificationID: "v1", EmailVerificationID: "e1", TokenHash: "h", Status: domain.EmailPending,
	}))
	pending, _ := r.ListPending(ctx)
	assert.Len(t, pending, 1)

	now := time.Now().UTC()
	require.NoError(t, r.Resolve(ctx, "v1", "e1", domain.EmailYes, now))
	assert.ErrorIs(t, r.Resolve(ctx, "v1", "e1", domain.EmailNo, now), domain.ErrAlreadyProcessed)

	e, _ := r.GetByTokenHash(ctx, "h")
	assert.Equal(t, domain.EmailYes, e.Status)
}

func TestEvidenceRepo_MarkVerifiedOnce(t *testing.T) {
	ctx := context.Background()
	r := NewEvidenceRepo()
	require.NoError(t, r.Put(ctx, &domain.Evidence{
		VerificationID: "v1", EvidenceID: "ev1", Kind: domain.EvidenceWorkEmail, Status: domain.EvidencePending, TokenHash: "h",
	}))
	now := time.Now().UTC()
	require.NoError(t, r.MarkVerified(ctx, "v1", "ev1", now))
	assert.ErrorIs(t, r.MarkVerified(ctx, "v1", "ev1", now), domain.ErrAlreadyProcessed)

	list, _ := r.ListByVerification(ctx, "v1")
	require.Len(t, list, 1)
	assert.Equal(t, domain.EvidenceVerified, list[0].Status)
}
