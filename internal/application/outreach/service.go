package outreach

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-employment-verify/internal/application/records"
	"github.com/go-employment-verify/internal/domain"
	"github.com/go-employment-verify/internal/pkg/id"
	"github.com/go-employment-verify/internal/pkg/mailtmpl"
	pkgtoken "github.com/go-employment-verify/internal/pkg/token"
)

// Service drives the phone and email channels of approved verifications.
type Service interface {
	Begin(ctx context.Context, verificationID string) error
	Retry(ctx context.Context, verificationID string) error
	HandleCallReport(ctx context.Context, report domain.CallReport) (*CallOutcome, error)
	PollCalls(ctx context.Context) (int, error)
	ProcessEmailResponse(ctx context.Context, token, response string) (*EmailOutcome, error)
	ExpireEmails(ctx context.Context) (int, error)
	ResumeStalled(ctx context.Context) ([]string, error)
}

// CallOutcome reports what a call completion did.
type CallOutcome struct {
	VerificationID   string        `json:"verification_id"`
	CallID           string        `json:"call_id"`
	Result           domain.Result `json:"result,omitempty"`
	Ended            bool          `json:"ended"`
	AlreadyProcessed bool          `json:"already_processed"`
}

// EmailOutcome reports what an employer response did.
type EmailOutcome struct {
	VerificationID   string             `json:"verification_id"`
	Status           domain.EmailStatus `json:"email_status"`
	AlreadyProcessed bool               `json:"already_processed"`
}

type verificationStore interface {
	ClaimOutreach(ctx context.Context, verificationID string, now, staleBefore time.Time) error
	ListByStatus(ctx context.Context, status domain.Status) ([]domain.Verification, error)
}

type tracker interface {
	Get(ctx context.Context, verificationID string) (*domain.Verification, error)
	Advance(ctx context.Context, verificationID string, ev domain.Event, mutate records.Mutator) (*domain.Verification, error)
	Update(ctx context.Context, verificationID string, mutate records.Mutator) (*domain.Verification, error)
}

type callStore interface {
	Create(ctx context.Context, c *domain.Call) error
	ListByVerification(ctx context.Context, verificationID string) ([]domain.Call, error)
	ListInProgress(ctx context.Context) ([]domain.Call, error)
	GetByExternalID(ctx context.Context, externalID string) (*domain.Call, error)
	Complete(ctx context.Context, c *domain.Call) error
}

type emailStore interface {
	Create(ctx context.Context, e *domain.EmployerEmailVerification) error
	ListByVerification(ctx context.Context, verificationID string) ([]domain.EmployerEmailVerification, error)
	ListPending(ctx context.Context) ([]domain.EmployerEmailVerification, error)
	GetByTokenHash(ctx context.Context, hash string) (*domain.EmployerEmailVerification, error)
	Resolve(ctx context.Context, verificationID, emailVerificationID string, status domain.EmailStatus, at time.Time) error
	Reissue(ctx context.Context, verificationID, emailVerificationID, tokenHash string, expiresAt time.Time) error
	MarkSent(ctx context.Context, verificationID, emailVerificationID string, at time.Time) error
}

type caller interface {
	PlaceCall(ctx context.Context, req domain.CallRequest) (string, error)
	GetCallStatus(ctx context.Context, externalCallID string) (*domain.CallState, error)
}

type contactDiscoverer interface {
	DiscoverHRContact(ctx context.Context, companyName, companyDomain string) (*domain.ContactInfo, error)
}

type siteScanner interface {
	Scan(ctx context.Context, companyDomain string) (*domain.ContactInfo, error)
}

type mailer interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type renderer interface {
	Render(name string, data any) (string, string, error)
}

type finalizer interface {
	Finalize(ctx context.Context, verificationID string, outcomes []domain.ChannelOutcome) (*domain.Verification, error)
}

type service struct {
	verifications verificationStore
	tracker       tracker
	calls         callStore
	emails        emailStore
	caller        caller
	discoverer    contactDiscoverer
	scanner       siteScanner
	mailer        mailer
	templates     renderer
	finalizer     finalizer
	baseURL       string
	emailTimeout  time.Duration
	lease         time.Duration
	now           func() time.Time
}

type ServiceDeps struct {
	VerificationRepo verificationStore
	Tracker          tracker
	CallRepo         callStore
	EmailRepo        emailStore
	Caller           caller
	// Discoverer and Scanner are optional contact sources.
	Discoverer           contactDiscoverer
	Scanner              siteScanner
	Mailer               mailer
	Templates            renderer
	Finalizer            finalizer
	PublicBaseURL        string
	EmailResponseTimeout time.Duration
	Lease                time.Duration
	Now                  func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		verifications: deps.VerificationRepo,
		tracker:       deps.Tracker,
		calls:         deps.CallRepo,
		emails:        deps.EmailRepo,
		caller:        deps.Caller,
		discoverer:    deps.Discoverer,
		scanner:       deps.Scanner,
		mailer:        deps.Mailer,
		templates:     deps.Templates,
		finalizer:     deps.Finalizer,
		baseURL:       strings.TrimSuffix(deps.PublicBaseURL, "/"),
		emailTimeout:  deps.EmailResponseTimeout,
		lease:         deps.Lease,
		now:           deps.Now,
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.emailTimeout <= 0 {
		s.emailTimeout = 72 * time.Hour
	}
	if s.lease <= 0 {
		s.lease = 10 * time.Minute
	}
	return s
}

// Begin claims outreach for an approved verification and dispatches the
// highest priority channel that has a contact. It returns ErrConflict when
// another worker holds the lease or the verification is not approved.
// A call that already failed to dispatch is not placed again.
func (s *service) Begin(ctx context.Context, verificationID string) error {
	return s.begin(ctx, verificationID, false)
}

// Retry is Begin on operator request: a failed call is placed again.
func (s *service) Retry(ctx context.Context, verificationID string) error {
	return s.begin(ctx, verificationID, true)
}

func (s *service) begin(ctx context.Context, verificationID string, retry bool) error {
	now := s.now()
	if err := s.verifications.ClaimOutreach(ctx, verificationID, now, now.Add(-s.lease)); err != nil {
		return fmt.Errorf("claim outreach: %w", err)
	}
	v, err := s.tracker.Get(ctx, verificationID)
	if err != nil {
		return err
	}

	c := s.discover(ctx, v)

	if c.Phone != "" {
		dispatched, err := s.dispatchCall(ctx, v, c.Phone, retry)
		if dispatched {
			return err
		}
		if !errors.Is(err, domain.ErrChannelDispatch) {
			return err
		}
		slog.Warn("phone channel failed, falling back to email", "verification_id", verificationID, "err", err)
	}
	if c.Email != "" {
		return s.dispatchEmail(ctx, v, c.Email)
	}
	return s.finalize(ctx, verificationID)
}

// dispatchCall reports true when the phone channel owns the verification
// from here on: a call was placed, is running, or already ended.
func (s *service) dispatchCall(ctx context.Context, v *domain.Verification, phone string, retry bool) (bool, error) {
	existing, err := s.calls.ListByVerification(ctx, v.VerificationID)
	if err != nil {
		return false, err
	}
	failed := false
	for _, c := range existing {
		switch c.Status {
		case domain.CallInProgress:
			// a prior attempt placed the call; make sure the record reflects it
			if v.Status == domain.StatusConsentApproved {
				if _, err := s.markCallInProgress(ctx, v.VerificationID, c.PhoneNumber); err != nil {
					return false, err
				}
			}
			return true, nil
		case domain.CallEnded:
			return true, s.resumeAfterCall(ctx, v)
		case domain.CallFailed:
			failed = true
		}
	}
	if failed && !retry {
		return false, fmt.Errorf("earlier call attempt failed: %w", domain.ErrChannelDispatch)
	}

	extID, err := s.caller.PlaceCall(ctx, domain.CallRequest{
		VerificationID:  v.VerificationID,
		PhoneNumber:     phone,
		CandidateName:   v.CandidateName,
		CompanyName:     v.CompanyName,
		JobTitle:        v.JobTitle,
		EmploymentDates: v.EmploymentDates,
	})
	now := s.now()
	call := &domain.Call{
		VerificationID: v.VerificationID,
		CallID:         id.NewAt(now),
		PhoneNumber:    phone,
		CreatedAt:      now,
	}
	if err != nil {
		call.Status = domain.CallFailed
		call.FailureReason = err.Error()
		call.EndedAt = &now
		if cerr := s.calls.Create(ctx, call); cerr != nil {
			slog.Warn("record failed call", "verification_id", v.VerificationID, "err", cerr)
		}
		observeChannel(domain.ChannelPhone, "failed")
		s.progress(ctx, v.VerificationID, func(v *domain.Verification) {
			v.Call = &domain.ChannelSummary{Status: string(domain.CallFailed), Detail: "call could not be placed", UpdatedAt: now}
			v.SetProgress(domain.StepPhoneCall, domain.StepFailed, "Call to "+phone+" could not be placed", now)
		})
		return false, fmt.Errorf("place call: %w: %w", domain.ErrChannelDispatch, err)
	}

	call.Status = domain.CallInProgress
	call.ExternalCallID = extID
	if err := s.calls.Create(ctx, call); err != nil {
		return false, fmt.Errorf("record call: %w", err)
	}
	if _, err := s.markCallInProgress(ctx, v.VerificationID, phone); err != nil {
		return false, err
	}
	slog.Info("call placed", "verification_id", v.VerificationID, "call_id", call.CallID, "external_call_id", extID)
	return true, nil
}

func (s *service) markCallInProgress(ctx context.Context, verificationID, phone string) (*domain.Verification, error) {
	return s.tracker.Advance(ctx, verificationID, domain.EventCallDispatched, func(v *domain.Verification) error {
		v.Call = &domain.ChannelSummary{Status: string(domain.CallInProgress), Detail: phone, UpdatedAt: v.UpdatedAt}
		v.SetProgress(domain.StepPhoneCall, domain.StepInProgress, "Calling "+phone, v.UpdatedAt)
		return nil
	})
}

// dispatchEmail persists the pending email verification and moves the
// record to EMPLOYER_EMAIL_SENT before sending. A send failure resolves the
// email as FAILED and finalizes with what the other channels produced. A
// pending attempt whose mail never left gets a fresh token and is sent.
func (s *service) dispatchEmail(ctx context.Context, v *domain.Verification, to string) error {
	existing, err := s.emails.ListByVerification(ctx, v.VerificationID)
	if err != nil {
		return err
	}
	for i := range existing {
		e := &existing[i]
		if e.Status != domain.EmailPending {
			continue
		}
		if e.Unsent() {
			return s.resendEmail(ctx, v, e)
		}
		if v.Status == domain.StatusConsentApproved || v.Status == domain.StatusPhoneCompleted {
			_, err := s.markEmailSent(ctx, v.VerificationID, e.EmployerEmail)
			return err
		}
		return nil
	}

	tok, err := pkgtoken.New()
	if err != nil {
		return err
	}
	now := s.now()
	e := &domain.EmployerEmailVerification{
		VerificationID:      v.VerificationID,
		EmailVerificationID: id.NewAt(now),
		EmployerEmail:       to,
		TokenHash:           pkgtoken.Hash(tok),
		Status:              domain.EmailPending,
		ExpiresAt:           now.Add(s.emailTimeout),
		CreatedAt:           now,
	}
	if err := s.emails.Create(ctx, e); err != nil {
		return fmt.Errorf("record email verification: %w", err)
	}
	return s.sendEmail(ctx, v, e, tok)
}

// resendEmail replaces the token of an unsent attempt; only the hash was
// stored, so the original link cannot be rebuilt.
func (s *service) resendEmail(ctx context.Context, v *domain.Verification, e *domain.EmployerEmailVerification) error {
	tok, err := pkgtoken.New()
	if err != nil {
		return err
	}
	expires := s.now().Add(s.emailTimeout)
	if err := s.emails.Reissue(ctx, v.VerificationID, e.EmailVerificationID, pkgtoken.Hash(tok), expires); err != nil {
		if errors.Is(err, domain.ErrAlreadyProcessed) {
			return nil
		}
		return fmt.Errorf("reissue email verification: %w", err)
	}
	e.TokenHash = pkgtoken.Hash(tok)
	e.ExpiresAt = expires
	slog.Info("resending employer email", "verification_id", v.VerificationID, "email_verification_id", e.EmailVerificationID)
	return s.sendEmail(ctx, v, e, tok)
}

func (s *service) sendEmail(ctx context.Context, v *domain.Verification, e *domain.EmployerEmailVerification, tok string) error {
	to := e.EmployerEmail
	if v.Status != domain.StatusEmployerEmailSent {
		if _, err := s.markEmailSent(ctx, v.VerificationID, to); err != nil {
			return err
		}
	}

	link := s.baseURL + "/v1/employer-responses/" + tok + "?response="
	subject, body, err := s.templates.Render(mailtmpl.EmployerRequest, mailtmpl.EmployerData{
		CandidateName:   v.CandidateName,
		CompanyName:     v.CompanyName,
		JobTitle:        v.JobTitle,
		EmploymentDates: v.EmploymentDates,
		ConfirmURL:      link + "yes",
		DenyURL:         link + "no",
		RefuseURL:       link + "refuse",
	})
	if err == nil {
		err = s.mailer.SendEmail(ctx, to, subject, body)
	}
	now := s.now()
	if err == nil {
		if merr := s.emails.MarkSent(ctx, v.VerificationID, e.EmailVerificationID, now); merr != nil {
			slog.Warn("mark employer email sent", "verification_id", v.VerificationID, "err", merr)
		}
		slog.Info("employer email sent", "verification_id", v.VerificationID, "email_verification_id", e.EmailVerificationID)
		return nil
	}

	slog.Warn("send employer email", "verification_id", v.VerificationID, "err", err)
	if rerr := s.emails.Resolve(ctx, v.VerificationID, e.EmailVerificationID, domain.EmailFailed, now); rerr != nil && !errors.Is(rerr, domain.ErrAlreadyProcessed) {
		return rerr
	}
	observeChannel(domain.ChannelEmail, "failed")
	s.progress(ctx, v.VerificationID, func(v *domain.Verification) {
		v.Email = &domain.ChannelSummary{Status: string(domain.EmailFailed), Detail: "email could not be sent", UpdatedAt: now}
		v.SetProgress(domain.StepEmailOutreach, domain.StepFailed, "Email to "+to+" could not be sent", now)
	})
	return s.finalize(ctx, v.VerificationID)
}

func (s *service) markEmailSent(ctx context.Context, verificationID, to string) (*domain.Verification, error) {
	return s.tracker.Advance(ctx, verificationID, domain.EventEmailSent, func(v *domain.Verification) error {
		v.Email = &domain.ChannelSummary{Status: string(domain.EmailPending), Detail: to, UpdatedAt: v.UpdatedAt}
		v.SetProgress(domain.StepEmailOutreach, domain.StepInProgress, "Verification request emailed to "+to, v.UpdatedAt)
		return nil
	})
}

func (s *service) HandleCallReport(ctx context.Context, report domain.CallReport) (*CallOutcome, error) {
	call, err := s.calls.GetByExternalID(ctx, report.ExternalCallID)
	if err != nil {
		return nil, err
	}
	if call.Terminal() {
		return &CallOutcome{VerificationID: call.VerificationID, CallID: call.CallID, Ended: true, AlreadyProcessed: true}, nil
	}
	if !report.Ended {
		return &CallOutcome{VerificationID: call.VerificationID, CallID: call.CallID}, nil
	}
	return s.completeCall(ctx, *call, report)
}

// PollCalls asks the call service about every in-progress call and
// completes those that ended.
func (s *service) PollCalls(ctx context.Context) (int, error) {
	inProgress, err := s.calls.ListInProgress(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, c := range inProgress {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		st, err := s.caller.GetCallStatus(ctx, c.ExternalCallID)
		if err != nil {
			slog.Warn("poll call status", "verification_id", c.VerificationID, "call_id", c.CallID, "err", err)
			continue
		}
		if !st.Ended {
			continue
		}
		out, err := s.completeCall(ctx, c, domain.CallReport{
			ExternalCallID:     c.ExternalCallID,
			Ended:              true,
			Result:             st.VerificationResult,
			FailureReason:      st.EndedReason,
			Transcript:         st.Transcript,
			RecordingURL:       st.RecordingURL,
			AttestationCreated: st.AttestationCreated,
			AttestationUID:     st.AttestationUID,
		})
		if err != nil {
			slog.Warn("complete call", "verification_id", c.VerificationID, "call_id", c.CallID, "err", err)
			continue
		}
		if !out.AlreadyProcessed {
			n++
		}
	}
	return n, nil
}

// completeCall is the convergence point of the poller and the webhook.
// The call write is conditional on in_progress, so only one path proceeds.
func (s *service) completeCall(ctx context.Context, call domain.Call, report domain.CallReport) (*CallOutcome, error) {
	res, ok := domain.ParseResult(report.Result)
	if !ok {
		res = domain.ResultInconclusive
	}
	now := s.now()
	call.Status = domain.CallEnded
	call.Result = &res
	call.FailureReason = report.FailureReason
	call.Transcript = report.Transcript
	call.RecordingURL = report.RecordingURL
	call.AttestationCreated = report.AttestationCreated && report.AttestationUID != ""
	call.AttestationUID = report.AttestationUID
	call.EndedAt = &now

	out := &CallOutcome{VerificationID: call.VerificationID, CallID: call.CallID, Result: res, Ended: true}
	if err := s.calls.Complete(ctx, &call); err != nil {
		if errors.Is(err, domain.ErrAlreadyProcessed) {
			out.AlreadyProcessed = true
			return out, nil
		}
		return nil, err
	}
	observeChannel(domain.ChannelPhone, string(res))

	v, err := s.markCallEnded(ctx, call.VerificationID, res)
	if err != nil {
		return nil, err
	}
	return out, s.afterPhone(ctx, v, res)
}

func (s *service) markCallEnded(ctx context.Context, verificationID string, res domain.Result) (*domain.Verification, error) {
	mutate := func(v *domain.Verification) error {
		v.Call = &domain.ChannelSummary{Status: string(domain.CallEnded), Result: res, UpdatedAt: v.UpdatedAt}
		v.SetProgress(domain.StepPhoneCall, domain.StepCompleted, "Employer answered: "+string(res), v.UpdatedAt)
		return nil
	}
	v, err := s.tracker.Advance(ctx, verificationID, domain.EventCallEnded, mutate)
	if !errors.Is(err, domain.ErrInvalidTransition) {
		return v, err
	}
	cur, gerr := s.tracker.Get(ctx, verificationID)
	if gerr != nil || cur.Status != domain.StatusConsentApproved {
		return nil, err
	}
	// the dispatch transition was lost; replay it before ending the call
	if _, err := s.markCallInProgress(ctx, verificationID, ""); err != nil {
		return nil, err
	}
	return s.tracker.Advance(ctx, verificationID, domain.EventCallEnded, mutate)
}

// afterPhone picks the next step once the phone channel is terminal:
// YES finalizes, otherwise the email channel runs if a contact is known.
func (s *service) afterPhone(ctx context.Context, v *domain.Verification, res domain.Result) error {
	if res != domain.ResultYes && v.ContactEmail != "" {
		return s.dispatchEmail(ctx, v, v.ContactEmail)
	}
	return s.finalize(ctx, v.VerificationID)
}

// ProcessEmailResponse records the employer's answer and finalizes. The
// answer is parsed only while the email verification is pending.
func (s *service) ProcessEmailResponse(ctx context.Context, token, response string) (*EmailOutcome, error) {
	if token == "" {
		return nil, fmt.Errorf("empty response token: %w", domain.ErrBadRequest)
	}
	e, err := s.emails.GetByTokenHash(ctx, pkgtoken.Hash(token))
	if err != nil {
		return nil, err
	}
	if e.Terminal() {
		return &EmailOutcome{VerificationID: e.VerificationID, Status: e.Status, AlreadyProcessed: true}, nil
	}
	now := s.now()
	if now.After(e.ExpiresAt) {
		return nil, fmt.Errorf("employer response link for %s: %w", e.VerificationID, domain.ErrTokenExpired)
	}
	res, ok := domain.ParseResult(response)
	if !ok || res == domain.ResultInconclusive {
		return nil, fmt.Errorf("response must be yes, no or refuse: %w", domain.ErrBadRequest)
	}

	status := domain.EmailStatusFor(res)
	if err := s.emails.Resolve(ctx, e.VerificationID, e.EmailVerificationID, status, now); err != nil {
		if errors.Is(err, domain.ErrAlreadyProcessed) {
			return s.emailAlreadyProcessed(ctx, e)
		}
		return nil, err
	}
	observeChannel(domain.ChannelEmail, string(res))
	s.progress(ctx, e.VerificationID, func(v *domain.Verification) {
		v.Email = &domain.ChannelSummary{Status: string(status), Result: res, UpdatedAt: now}
		v.SetProgress(domain.StepEmailOutreach, domain.StepCompleted, "Employer responded: "+string(res), now)
	})
	if err := s.finalize(ctx, e.VerificationID); err != nil {
		return nil, err
	}
	return &EmailOutcome{VerificationID: e.VerificationID, Status: status}, nil
}

func (s *service) emailAlreadyProcessed(ctx context.Context, e *domain.EmployerEmailVerification) (*EmailOutcome, error) {
	all, err := s.emails.ListByVerification(ctx, e.VerificationID)
	if err != nil {
		return nil, err
	}
	status := e.Status
	for _, cur := range all {
		if cur.EmailVerificationID == e.EmailVerificationID {
			status = cur.Status
		}
	}
	return &EmailOutcome{VerificationID: e.VerificationID, Status: status, AlreadyProcessed: true}, nil
}

// ExpireEmails resolves pending email verifications past their deadline as
// EXPIRED and finalizes their verifications. It also finalizes records left
// in EMPLOYER_EMAIL_SENT with no pending email.
func (s *service) ExpireEmails(ctx context.Context) (int, error) {
	pending, err := s.emails.ListPending(ctx)
	if err != nil {
		return 0, err
	}
	now := s.now()
	n := 0
	for _, e := range pending {
		if !now.After(e.ExpiresAt) {
			continue
		}
		if err := s.emails.Resolve(ctx, e.VerificationID, e.EmailVerificationID, domain.EmailExpired, now); err != nil {
			if !errors.Is(err, domain.ErrAlreadyProcessed) {
				slog.Warn("expire email verification", "verification_id", e.VerificationID, "err", err)
			}
			continue
		}
		observeChannel(domain.ChannelEmail, string(domain.EmailExpired))
		s.progress(ctx, e.VerificationID, func(v *domain.Verification) {
			v.Email = &domain.ChannelSummary{Status: string(domain.EmailExpired), UpdatedAt: now}
			v.SetProgress(domain.StepEmailOutreach, domain.StepFailed, "No employer response within "+s.emailTimeout.String(), now)
		})
		if err := s.finalize(ctx, e.VerificationID); err != nil {
			slog.Warn("finalize expired email", "verification_id", e.VerificationID, "err", err)
			continue
		}
		n++
	}

	sent, err := s.verifications.ListByStatus(ctx, domain.StatusEmployerEmailSent)
	if err != nil {
		return n, err
	}
	for _, v := range sent {
		emails, err := s.emails.ListByVerification(ctx, v.VerificationID)
		if err != nil || hasPendingEmail(emails) {
			continue
		}
		if err := s.finalize(ctx, v.VerificationID); err != nil {
			slog.Warn("finalize resolved email", "verification_id", v.VerificationID, "err", err)
		}
	}
	return n, nil
}

// ResumeStalled returns approved verifications whose outreach lease is
// missing or stale, for the caller to enqueue. Verifications stuck after a
// finished call or waiting on an employer mail that never left are advanced
// in place.
func (s *service) ResumeStalled(ctx context.Context) ([]string, error) {
	cutoff := s.now().Add(-s.lease)

	approved, err := s.verifications.ListByStatus(ctx, domain.StatusConsentApproved)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(approved))
	for _, v := range approved {
		if v.OutreachClaimedAt == nil || v.OutreachClaimedAt.Before(cutoff) {
			ids = append(ids, v.VerificationID)
		}
	}

	for _, status := range []domain.Status{domain.StatusCallInProgress, domain.StatusPhoneCompleted} {
		stuck, err := s.verifications.ListByStatus(ctx, status)
		if err != nil {
			return ids, err
		}
		for i := range stuck {
			v := &stuck[i]
			if !v.UpdatedAt.Before(cutoff) {
				continue
			}
			if err := s.resumeAfterCall(ctx, v); err != nil {
				slog.Warn("resume after call", "verification_id", v.VerificationID, "err", err)
			}
		}
	}

	sent, err := s.verifications.ListByStatus(ctx, domain.StatusEmployerEmailSent)
	if err != nil {
		return ids, err
	}
	for i := range sent {
		v := &sent[i]
		if !v.UpdatedAt.Before(cutoff) {
			continue
		}
		if err := s.resumeUnsentEmail(ctx, v, cutoff); err != nil {
			slog.Warn("resume employer email", "verification_id", v.VerificationID, "err", err)
		}
	}
	return ids, nil
}

func (s *service) resumeUnsentEmail(ctx context.Context, v *domain.Verification, cutoff time.Time) error {
	emails, err := s.emails.ListByVerification(ctx, v.VerificationID)
	if err != nil {
		return err
	}
	for i := range emails {
		if e := &emails[i]; e.Unsent() && e.CreatedAt.Before(cutoff) {
			return s.resendEmail(ctx, v, e)
		}
	}
	return nil
}

func (s *service) resumeAfterCall(ctx context.Context, v *domain.Verification) error {
	calls, err := s.calls.ListByVerification(ctx, v.VerificationID)
	if err != nil {
		return err
	}
	if len(calls) == 0 {
		return nil
	}
	last := calls[len(calls)-1]
	if last.Status != domain.CallEnded {
		// still running; the poller owns it
		return nil
	}
	res := domain.ResultInconclusive
	if last.Result != nil {
		res = *last.Result
	}
	if v.Status == domain.StatusCallInProgress || v.Status == domain.StatusConsentApproved {
		if v, err = s.markCallEnded(ctx, v.VerificationID, res); err != nil {
			return err
		}
	}
	return s.afterPhone(ctx, v, res)
}

func (s *service) finalize(ctx context.Context, verificationID string) error {
	outcomes, err := s.outcomes(ctx, verificationID)
	if err != nil {
		return err
	}
	_, err = s.finalizer.Finalize(ctx, verificationID, outcomes)
	return err
}

// outcomes lists terminal channel attempts, phone before email.
func (s *service) outcomes(ctx context.Context, verificationID string) ([]domain.ChannelOutcome, error) {
	calls, err := s.calls.ListByVerification(ctx, verificationID)
	if err != nil {
		return nil, err
	}
	emails, err := s.emails.ListByVerification(ctx, verificationID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ChannelOutcome, 0, len(calls)+len(emails))
	for _, c := range calls {
		switch c.Status {
		case domain.CallEnded:
			o := domain.ChannelOutcome{Channel: domain.ChannelPhone, Result: domain.ResultInconclusive}
			if c.Result != nil {
				o.Result = *c.Result
			}
			if c.AttestationCreated {
				o.AttestationUID = c.AttestationUID
			}
			out = append(out, o)
		case domain.CallFailed:
			out = append(out, domain.ChannelOutcome{Channel: domain.ChannelPhone, Result: domain.ResultInconclusive})
		}
	}
	for _, e := range emails {
		if !e.Terminal() {
			continue
		}
		out = append(out, domain.ChannelOutcome{
			Channel: domain.ChannelEmail,
			Result:  e.Status.Result(),
			Expired: e.Status == domain.EmailExpired,
		})
	}
	return out, nil
}

// progress records a timeline change; failures are logged only.
func (s *service) progress(ctx context.Context, verificationID string, mutate func(v *domain.Verification)) {
	if _, err := s.tracker.Update(ctx, verificationID, func(v *domain.Verification) error {
		mutate(v)
		return nil
	}); err != nil {
		slog.Warn("record progress", "verification_id", verificationID, "err", err)
	}
}

func hasPendingEmail(emails []domain.EmployerEmailVerification) bool {
	for _, e := range emails {
		if e.Status == domain.EmailPending {
			return true
		}
	}
	return false
}
