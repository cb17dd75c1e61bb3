package consent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-employment-verify/internal/application/records"
	"github.com/go-employment-verify/internal/domain"
	"github.com/go-employment-verify/internal/pkg/mailtmpl"
	pkgtoken "github.com/go-employment-verify/internal/pkg/token"
)

// Decision is the candidate's answer on a consent link.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionDeny    Decision = "deny"
)

// ParseDecision accepts "approve" or "deny" in any case.
func ParseDecision(s string) (Decision, error) {
	switch d := Decision(strings.ToLower(strings.TrimSpace(s))); d {
	case DecisionApprove, DecisionDeny:
		return d, nil
	}
	return "", fmt.Errorf("decision must be approve or deny: %w", domain.ErrBadRequest)
}

// Outcome is returned by RecordDecision. AlreadyProcessed is set when the
// consent had been decided before this call.
type Outcome struct {
	VerificationID   string               `json:"verification_id"`
	Status           domain.ConsentStatus `json:"consent_status"`
	AlreadyProcessed bool                 `json:"already_processed"`
}

// DeniedReason is recorded as the final reason of a denied verification.
const DeniedReason = "not attempted: consent denied"

type Service interface {
	Request(ctx context.Context, v *domain.Verification) error
	RecordDecision(ctx context.Context, token string, decision Decision) (*Outcome, error)
	Reconcile(ctx context.Context) (int, error)
}

type consentStore interface {
	Create(ctx context.Context, c *domain.Consent) error
	Get(ctx context.Context, verificationID string) (*domain.Consent, error)
	GetByTokenHash(ctx context.Context, hash string) (*domain.Consent, error)
	Decide(ctx context.Context, verificationID string, status domain.ConsentStatus, at time.Time) error
}

type verificationLister interface {
	ListByStatus(ctx context.Context, status domain.Status) ([]domain.Verification, error)
}

type tracker interface {
	Advance(ctx context.Context, verificationID string, ev domain.Event, mutate records.Mutator) (*domain.Verification, error)
	Update(ctx context.Context, verificationID string, mutate records.Mutator) (*domain.Verification, error)
}

type mailer interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type renderer interface {
	Render(name string, data any) (string, string, error)
}

type outreachQueue interface {
	Enqueue(verificationID string) error
}

type service struct {
	repo          consentStore
	verifications verificationLister
	tracker       tracker
	mailer        mailer
	templates     renderer
	queue         outreachQueue
	baseURL       string
	tokenTTL      time.Duration
	now           func() time.Time
}

type ServiceDeps struct {
	ConsentRepo      consentStore
	VerificationRepo verificationLister
	Tracker          tracker
	Mailer           mailer
	Templates        renderer
	Queue            outreachQueue
	PublicBaseURL    string
	TokenTTL         time.Duration
	Now              func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		repo:          deps.ConsentRepo,
		verifications: deps.VerificationRepo,
		tracker:       deps.Tracker,
		mailer:        deps.Mailer,
		templates:     deps.Templates,
		queue:         deps.Queue,
		baseURL:       strings.TrimSuffix(deps.PublicBaseURL, "/"),
		tokenTTL:      deps.TokenTTL,
		now:           deps.Now,
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.tokenTTL <= 0 {
		s.tokenTTL = 14 * 24 * time.Hour
	}
	return s
}

// Request creates the pending consent and emails the candidate the approve
// and deny links. A send failure is recorded on the timeline and returned.
func (s *service) Request(ctx context.Context, v *domain.Verification) error {
	tok, err := pkgtoken.New()
	if err != nil {
		return err
	}
	now := s.now()
	c := &domain.Consent{
		VerificationID: v.VerificationID,
		TokenHash:      pkgtoken.Hash(tok),
		Status:         domain.ConsentPending,
		ExpiresAt:      now.Add(s.tokenTTL),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return fmt.Errorf("create consent: %w", err)
	}

	link := s.baseURL + "/v1/consent/" + tok
	subject, body, err := s.templates.Render(mailtmpl.ConsentRequest, mailtmpl.ConsentData{
		CandidateName: v.CandidateName,
		CompanyName:   v.CompanyName,
		ApproveURL:    link + "?decision=" + string(DecisionApprove),
		DenyURL:       link + "?decision=" + string(DecisionDeny),
	})
	if err == nil {
		err = s.mailer.SendEmail(ctx, v.CandidateEmail, subject, body)
	}

	status, msg := domain.StepCompleted, "Consent email sent to "+v.CandidateEmail
	if err != nil {
		slog.Warn("send consent email", "verification_id", v.VerificationID, "err", err)
		status, msg = domain.StepFailed, "Consent email could not be sent"
	}
	if _, uerr := s.tracker.Update(ctx, v.VerificationID, func(v *domain.Verification) error {
		v.Consent = &domain.ChannelSummary{Status: string(domain.ConsentPending), UpdatedAt: now}
		v.SetProgress(domain.StepConsentRequested, status, msg, now)
		return nil
	}); uerr != nil {
		slog.Warn("record consent request", "verification_id", v.VerificationID, "err", uerr)
	}
	if err != nil {
		return fmt.Errorf("send consent email: %w: %w", domain.ErrChannelDispatch, err)
	}
	return nil
}

// RecordDecision applies the candidate's decision once. The decision is
// parsed only while the consent is pending; a decided consent is reported
// as already processed whatever the link carried.
func (s *service) RecordDecision(ctx context.Context, token string, decision Decision) (*Outcome, error) {
	if token == "" {
		return nil, fmt.Errorf("empty consent token: %w", domain.ErrBadRequest)
	}
	c, err := s.repo.GetByTokenHash(ctx, pkgtoken.Hash(token))
	if err != nil {
		return nil, err
	}
	if c.Status != domain.ConsentPending {
		return &Outcome{VerificationID: c.VerificationID, Status: c.Status, AlreadyProcessed: true}, nil
	}
	now := s.now()
	if now.After(c.ExpiresAt) {
		return nil, fmt.Errorf("consent link for %s: %w", c.VerificationID, domain.ErrTokenExpired)
	}
	if decision, err = ParseDecision(string(decision)); err != nil {
		return nil, err
	}

	status := domain.ConsentDenied
	if decision == DecisionApprove {
		status = domain.ConsentApproved
	}
	if err := s.repo.Decide(ctx, c.VerificationID, status, now); err != nil {
		if errors.Is(err, domain.ErrAlreadyProcessed) {
			return s.alreadyProcessed(ctx, c.VerificationID)
		}
		return nil, err
	}

	if err := s.apply(ctx, c.VerificationID, status, now); err != nil {
		return nil, err
	}
	return &Outcome{VerificationID: c.VerificationID, Status: status}, nil
}

// Reconcile replays decisions whose verification transition was lost, such
// as a crash between the consent write and the verification write.
func (s *service) Reconcile(ctx context.Context) (int, error) {
	pending, err := s.verifications.ListByStatus(ctx, domain.StatusPendingConsent)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, v := range pending {
		c, err := s.repo.Get(ctx, v.VerificationID)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				slog.Warn("reconcile consent", "verification_id", v.VerificationID, "err", err)
			}
			continue
		}
		if c.Status == domain.ConsentPending {
			continue
		}
		at := s.now()
		if c.ActedAt != nil {
			at = *c.ActedAt
		}
		if err := s.apply(ctx, v.VerificationID, c.Status, at); err != nil {
			slog.Warn("reconcile consent", "verification_id", v.VerificationID, "err", err)
			continue
		}
		n++
	}
	return n, nil
}

// apply moves the verification to match a recorded decision and, on
// approval, hands it to outreach.
func (s *service) apply(ctx context.Context, verificationID string, status domain.ConsentStatus, at time.Time) error {
	ev, msg := domain.EventConsentDenied, "Candidate denied consent"
	if status == domain.ConsentApproved {
		ev, msg = domain.EventConsentApproved, "Candidate approved consent"
	}
	_, err := s.tracker.Advance(ctx, verificationID, ev, func(v *domain.Verification) error {
		v.Consent = &domain.ChannelSummary{Status: string(status), UpdatedAt: at}
		v.SetProgress(domain.StepConsentResponse, domain.StepCompleted, msg, at)
		if status == domain.ConsentDenied {
			v.FinalReason = DeniedReason
			for _, step := range []domain.Step{domain.StepWebScan, domain.StepContactDiscovery, domain.StepPhoneCall, domain.StepEmailOutreach, domain.StepFinalOutcome} {
				v.SetProgress(step, domain.StepSkipped, DeniedReason, at)
			}
		}
		return nil
	})
	if errors.Is(err, domain.ErrInvalidTransition) {
		// a concurrent reconcile already applied the decision
		return nil
	}
	if err != nil {
		return fmt.Errorf("apply consent %s: %w", status, err)
	}

	if status == domain.ConsentApproved && s.queue != nil {
		if err := s.queue.Enqueue(verificationID); err != nil {
			// the stalled-outreach sweeper picks it up later
			slog.Warn("enqueue outreach", "verification_id", verificationID, "err", err)
		}
	}
	return nil
}

func (s *service) alreadyProcessed(ctx context.Context, verificationID string) (*Outcome, error) {
	c, err := s.repo.Get(ctx, verificationID)
	if err != nil {
		return nil, err
	}
	return &Outcome{VerificationID: verificationID, Status: c.Status, AlreadyProcessed: true}, nil
}
