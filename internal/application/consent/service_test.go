package consent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-employment-verify/internal/application/records"
	"github.com/go-employment-verify/internal/domain"
	"github.com/go-employment-verify/internal/infrastructure/memory"
	"github.com/go-employment-verify/internal/pkg/mailtmpl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockMailer struct{ mock.Mock }

func (m *mockMailer) SendEmail(ctx context.Context, to, subject, body string) error {
	return m.Called(ctx, to, subject, body).Error(0)
}

type mockQueue struct{ mock.Mock }

func (m *mockQueue) Enqueue(verificationID string) error {
	return m.Called(verificationID).Error(0)
}

// --- helpers ---

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc           Service
	consents      *memory.ConsentRepo
	verifications *memory.VerificationRepo
	mailer        *mockMailer
	queue         *mockQueue
	clock         *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := now
	f := &fixture{
		consents:      memory.NewConsentRepo(),
		verifications: memory.NewVerificationRepo(),
		mailer:        &mockMailer{},
		queue:         &mockQueue{},
		clock:         &clock,
	}
	nowFn := func() time.Time { return *f.clock }
	tr := records.NewTracker(records.TrackerDeps{VerificationRepo: f.verifications, Now: nowFn})
	f.svc = NewService(ServiceDeps{
		ConsentRepo:      f.consents,
		VerificationRepo: f.verifications,
		Tracker:          tr,
		Mailer:           f.mailer,
		Templates:        mailtmpl.NewStore(),
		Queue:            f.queue,
		PublicBaseURL:    "https://verify.example.com/",
		TokenTTL:         time.Hour,
		Now:              nowFn,
	})
	require.NoError(t, f.verifications.Create(context.Background(), &domain.Verification{
		VerificationID: "01V",
		RequestedBy:    "u1",
		CandidateName:  "Ada",
		CandidateEmail: "ada@example.com",
		CompanyName:    "Acme",
		Status:         domain.StatusPendingConsent,
		CreatedAt:      now,
	}))
	return f
}

// request sends the consent email and returns the raw token from its body.
func (f *fixture) request(t *testing.T) string {
	t.Helper()
	var body string
	f.mailer.On("SendEmail", mock.Anything, "ada@example.com", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { body = args.String(3) }).Return(nil).Once()
	v, _ := f.verifications.Get(context.Background(), "01V")
	require.NoError(t, f.svc.Request(context.Background(), v))
	return tokenFrom(t, body)
}

func tokenFrom(t *testing.T, body string) string {
	t.Helper()
	const marker = "https://verify.example.com/v1/consent/"
	i := strings.Index(body, marker)
	require.GreaterOrEqual(t, i, 0, "consent link missing from body")
	rest := body[i+len(marker):]
	return rest[:strings.Index(rest, "?")]
}

// --- tests ---

func TestParseDecision(t *testing.T) {
	d, err := ParseDecision(" Approve ")
	require.NoError(t, err)
	assert.Equal(t, DecisionApprove, d)

	_, err = ParseDecision("maybe")
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestRequest_StoresHashedTokenAndMarksProgress(t *testing.T) {
	f := newFixture(t)

	tok := f.request(t)

	assert.Len(t, tok, 64)
	c, err := f.consents.Get(context.Background(), "01V")
	require.NoError(t, err)
	assert.Equal(t, domain.ConsentPending, c.Status)
	assert.NotEqual(t, tok, c.TokenHash)
	assert.Equal(t, now.Add(time.Hour), c.ExpiresAt)
	v, _ := f.verifications.Get(context.Background(), "01V")
	assert.Equal(t, domain.StepCompleted, v.Progress[string(domain.StepConsentRequested)].Status)
}

func TestRequest_SendFailureRecorded(t *testing.T) {
	f := newFixture(t)
	f.mailer.On("SendEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("smtp down"))
	v, _ := f.verifications.Get(context.Background(), "01V")

	err := f.svc.Request(context.Background(), v)

	assert.ErrorIs(t, err, domain.ErrChannelDispatch)
	stored, _ := f.verifications.Get(context.Background(), "01V")
	assert.Equal(t, domain.StepFailed, stored.Progress[string(domain.StepConsentRequested)].Status)
}

func TestRecordDecision_ApproveEnqueuesOutreach(t *testing.T) {
	f := newFixture(t)
	tok := f.request(t)
	f.queue.On("Enqueue", "01V").Return(nil).Once()

	out, err := f.svc.RecordDecision(context.Background(), tok, DecisionApprove)

	require.NoError(t, err)
	assert.False(t, out.AlreadyProcessed)
	assert.Equal(t, domain.ConsentApproved, out.Status)
	v, _ := f.verifications.Get(context.Background(), "01V")
	assert.Equal(t, domain.StatusConsentApproved, v.Status)
	c, _ := f.consents.Get(context.Background(), "01V")
	require.NotNil(t, c.ActedAt)
	f.queue.AssertExpectations(t)
}

func TestRecordDecision_DenyStopsWorkflow(t *testing.T) {
	f := newFixture(t)
	tok := f.request(t)

	out, err := f.svc.RecordDecision(context.Background(), tok, DecisionDeny)

	require.NoError(t, err)
	assert.Equal(t, domain.ConsentDenied, out.Status)
	v, _ := f.verifications.Get(context.Background(), "01V")
	assert.Equal(t, domain.StatusConsentDenied, v.Status)
	assert.Empty(t, v.FinalResult)
	assert.Equal(t, DeniedReason, v.FinalReason)
	assert.Equal(t, domain.StepSkipped, v.Progress[string(domain.StepPhoneCall)].Status)
	f.queue.AssertNotCalled(t, "Enqueue", mock.Anything)
}

func TestRecordDecision_SecondSubmitIsAlreadyProcessed(t *testing.T) {
	f := newFixture(t)
	tok := f.request(t)
	f.queue.On("Enqueue", "01V").Return(nil).Once()
	_, err := f.svc.RecordDecision(context.Background(), tok, DecisionApprove)
	require.NoError(t, err)

	out, err := f.svc.RecordDecision(context.Background(), tok, DecisionDeny)

	require.NoError(t, err)
	assert.True(t, out.AlreadyProcessed)
	assert.Equal(t, domain.ConsentApproved, out.Status)
	v, _ := f.verifications.Get(context.Background(), "01V")
	assert.Equal(t, domain.StatusConsentApproved, v.Status)
	f.queue.AssertNumberOfCalls(t, "Enqueue", 1)
}

func TestRecordDecision_DecidedLinkIgnoresGarbledChoice(t *testing.T) {
	f := newFixture(t)
	tok := f.request(t)
	f.queue.On("Enqueue", "01V").Return(nil).Once()
	_, err := f.svc.RecordDecision(context.Background(), tok, DecisionApprove)
	require.NoError(t, err)

	for _, d := range []Decision{"", "maybe"} {
		out, err := f.svc.RecordDecision(context.Background(), tok, d)

		require.NoError(t, err, "decision %q", d)
		assert.True(t, out.AlreadyProcessed)
		assert.Equal(t, domain.ConsentApproved, out.Status)
	}
}

func TestRecordDecision_PendingLinkRejectsUnknownChoice(t *testing.T) {
	f := newFixture(t)
	tok := f.request(t)

	_, err := f.svc.RecordDecision(context.Background(), tok, Decision("maybe"))

	assert.ErrorIs(t, err, domain.ErrBadRequest)
	c, _ := f.consents.Get(context.Background(), "01V")
	assert.Equal(t, domain.ConsentPending, c.Status)
	f.queue.AssertNotCalled(t, "Enqueue", mock.Anything)
}

func TestRecordDecision_ConcurrentSubmitsDecideOnce(t *testing.T) {
	f := newFixture(t)
	tok := f.request(t)
	f.queue.On("Enqueue", "01V").Return(nil)

	var wg sync.WaitGroup
	var mu sync.Mutex
	fresh := 0
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := f.svc.RecordDecision(context.Background(), tok, DecisionApprove)
			if err == nil && !out.AlreadyProcessed {
				mu.Lock()
				fresh++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, fresh)
	f.queue.AssertNumberOfCalls(t, "Enqueue", 1)
}

func TestRecordDecision_UnknownToken(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.RecordDecision(context.Background(), "nope", DecisionApprove)

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecordDecision_ExpiredToken(t *testing.T) {
	f := newFixture(t)
	tok := f.request(t)
	*f.clock = now.Add(2 * time.Hour)

	_, err := f.svc.RecordDecision(context.Background(), tok, DecisionApprove)

	assert.ErrorIs(t, err, domain.ErrTokenExpired)
	v, _ := f.verifications.Get(context.Background(), "01V")
	assert.Equal(t, domain.StatusPendingConsent, v.Status)
}

func TestRecordDecision_QueueFullIsNotFatal(t *testing.T) {
	f := newFixture(t)
	tok := f.request(t)
	f.queue.On("Enqueue", "01V").Return(errors.New("queue full"))

	out, err := f.svc.RecordDecision(context.Background(), tok, DecisionApprove)

	require.NoError(t, err)
	assert.Equal(t, domain.ConsentApproved, out.Status)
}

func TestReconcile_AppliesLostDecision(t *testing.T) {
	f := newFixture(t)
	f.request(t)
	require.NoError(t, f.consents.Decide(context.Background(), "01V", domain.ConsentApproved, now))
	f.queue.On("Enqueue", "01V").Return(nil).Once()

	n, err := f.svc.Reconcile(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	v, _ := f.verifications.Get(context.Background(), "01V")
	assert.Equal(t, domain.StatusConsentApproved, v.Status)
	f.queue.AssertExpectations(t)
}

func TestReconcile_SkipsPendingConsents(t *testing.T) {
	f := newFixture(t)
	f.request(t)

	n, err := f.svc.Reconcile(context.Background())

	require.NoError(t, err)
	assert.Zero(t, n)
}
