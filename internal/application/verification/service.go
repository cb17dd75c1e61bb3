package verification

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-employment-verify/internal/domain"
	"github.com/go-employment-verify/internal/pkg/id"
	"github.com/go-employment-verify/internal/pkg/validate"
)

// View is a verification with its sub-records, as returned to API clients.
type View struct {
	*domain.Verification
	Calls              []domain.Call                      `json:"calls"`
	EmailVerifications []domain.EmployerEmailVerification `json:"email_verifications"`
	Evidence           []domain.Evidence                  `json:"evidence"`
	NextActions        []domain.NextAction                `json:"next_actions"`
}

type Service interface {
	Create(ctx context.Context, req domain.Requester, in domain.CreateVerificationRequest) (*domain.Verification, error)
	Get(ctx context.Context, req domain.Requester, verificationID string) (*View, error)
	List(ctx context.Context, req domain.Requester, f domain.ListFilter) ([]domain.Verification, error)
	RetryOutreach(ctx context.Context, req domain.Requester, verificationID string) error
	SeedFromResume(ctx context.Context, req domain.Requester, in domain.ResumeUploadRequest) (*ResumeResult, error)
	RequestWorkEmail(ctx context.Context, req domain.Requester, verificationID string, in domain.WorkEmailRequest) (*domain.Evidence, error)
	ConfirmWorkEmail(ctx context.Context, token string) (*EvidenceOutcome, error)
	UploadDocument(ctx context.Context, req domain.Requester, verificationID string, in domain.DocumentUploadRequest) (*domain.Evidence, error)
}

type verificationStore interface {
	Create(ctx context.Context, v *domain.Verification) error
	Get(ctx context.Context, verificationID string) (*domain.Verification, error)
	List(ctx context.Context, f domain.ListFilter) ([]domain.Verification, error)
	CountByRequesterSince(ctx context.Context, userID string, since time.Time) (int, error)
}

type callLister interface {
	ListByVerification(ctx context.Context, verificationID string) ([]domain.Call, error)
}

type emailLister interface {
	ListByVerification(ctx context.Context, verificationID string) ([]domain.EmployerEmailVerification, error)
}

type evidenceStore interface {
	Put(ctx context.Context, e *domain.Evidence) error
	ListByVerification(ctx context.Context, verificationID string) ([]domain.Evidence, error)
	GetByTokenHash(ctx context.Context, hash string) (*domain.Evidence, error)
	MarkVerified(ctx context.Context, verificationID, evidenceID string, at time.Time) error
}

type consentRequester interface {
	Request(ctx context.Context, v *domain.Verification) error
}

type outreachQueue interface {
	EnqueueRetry(verificationID string) error
}

type objectStore interface {
	UploadBytes(ctx context.Context, key string, data []byte) (string, error)
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

type resumeAnalyzer interface {
	AnalyzeResume(ctx context.Context, in domain.ResumeInput) (*domain.ResumeAnalysis, error)
}

type mailer interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type renderer interface {
	Render(name string, data any) (string, string, error)
}

type service struct {
	repo          verificationStore
	calls         callLister
	emails        emailLister
	evidence      evidenceStore
	consent       consentRequester
	queue         outreachQueue
	objects       objectStore
	analyzer      resumeAnalyzer
	mailer        mailer
	templates     renderer
	tierLimits    map[string]int
	baseURL       string
	workEmailTTL  time.Duration
	maxUploadSize int
	now           func() time.Time
}

type ServiceDeps struct {
	VerificationRepo verificationStore
	CallRepo         callLister
	EmailRepo        emailLister
	EvidenceRepo     evidenceStore
	Consent          consentRequester
	Queue            outreachQueue
	Objects          objectStore
	Analyzer         resumeAnalyzer
	Mailer           mailer
	Templates        renderer
	// TierLimits maps tier to monthly quota; 0 means unlimited.
	TierLimits    map[string]int
	PublicBaseURL string
	WorkEmailTTL  time.Duration
	MaxUploadSize int
	Now           func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		repo:          deps.VerificationRepo,
		calls:         deps.CallRepo,
		emails:        deps.EmailRepo,
		evidence:      deps.EvidenceRepo,
		consent:       deps.Consent,
		queue:         deps.Queue,
		objects:       deps.Objects,
		analyzer:      deps.Analyzer,
		mailer:        deps.Mailer,
		templates:     deps.Templates,
		tierLimits:    deps.TierLimits,
		baseURL:       strings.TrimSuffix(deps.PublicBaseURL, "/"),
		workEmailTTL:  deps.WorkEmailTTL,
		maxUploadSize: deps.MaxUploadSize,
		now:           deps.Now,
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.workEmailTTL <= 0 {
		s.workEmailTTL = 24 * time.Hour
	}
	if s.maxUploadSize <= 0 {
		s.maxUploadSize = 10 << 20
	}
	return s
}

var initialSteps = []domain.Step{
	domain.StepConsentRequested,
	domain.StepConsentResponse,
	domain.StepWebScan,
	domain.StepContactDiscovery,
	domain.StepPhoneCall,
	domain.StepEmailOutreach,
	domain.StepFinalOutcome,
}

// Create persists a new verification in PENDING_CONSENT and asks the
// candidate for consent. A consent email failure leaves the record in place
// with the failure on its timeline.
func (s *service) Create(ctx context.Context, req domain.Requester, in domain.CreateVerificationRequest) (*domain.Verification, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	if err := s.checkQuota(ctx, req); err != nil {
		return nil, err
	}

	now := s.now()
	v := &domain.Verification{
		VerificationID:  id.NewAt(now),
		RequestedBy:     req.UserID,
		CandidateName:   strings.TrimSpace(in.CandidateName),
		CandidateEmail:  strings.ToLower(strings.TrimSpace(in.CandidateEmail)),
		CompanyName:     strings.TrimSpace(in.CompanyName),
		CompanyPhone:    strings.TrimSpace(in.CompanyPhone),
		CompanyDomain:   normalizeDomain(in.CompanyDomain),
		EmployerEmail:   strings.ToLower(strings.TrimSpace(in.EmployerEmail)),
		JobTitle:        strings.TrimSpace(in.JobTitle),
		EmploymentDates: strings.TrimSpace(in.EmploymentDates),
		Status:          domain.StatusPendingConsent,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for _, step := range initialSteps {
		v.SetProgress(step, domain.StepPending, "", now)
	}
	if err := s.repo.Create(ctx, v); err != nil {
		return nil, err
	}
	slog.Info("verification created", "verification_id", v.VerificationID, "requested_by", req.UserID)

	if err := s.consent.Request(ctx, v); err != nil {
		slog.Warn("request consent", "verification_id", v.VerificationID, "err", err)
	}
	if fresh, err := s.repo.Get(ctx, v.VerificationID); err == nil {
		return fresh, nil
	}
	return v, nil
}

func (s *service) checkQuota(ctx context.Context, req domain.Requester) error {
	if req.IsAdmin() {
		return nil
	}
	limit, ok := s.tierLimits[strings.ToLower(req.Tier)]
	if !ok {
		limit, ok = s.tierLimits["free"]
	}
	if !ok || limit == 0 {
		return nil
	}
	n, err := s.repo.CountByRequesterSince(ctx, req.UserID, monthStart(s.now()))
	if err != nil {
		return err
	}
	if n >= limit {
		return fmt.Errorf("%d of %d verifications used this month: %w", n, limit, domain.ErrQuotaExceeded)
	}
	return nil
}

func (s *service) Get(ctx context.Context, req domain.Requester, verificationID string) (*View, error) {
	v, err := s.authorized(ctx, req, verificationID)
	if err != nil {
		return nil, err
	}
	calls, err := s.calls.ListByVerification(ctx, verificationID)
	if err != nil {
		return nil, err
	}
	emails, err := s.emails.ListByVerification(ctx, verificationID)
	if err != nil {
		return nil, err
	}
	evidence, err := s.evidence.ListByVerification(ctx, verificationID)
	if err != nil {
		return nil, err
	}
	actions := v.NextActions()
	if actions == nil {
		actions = []domain.NextAction{}
	}
	return &View{
		Verification:       v,
		Calls:              calls,
		EmailVerifications: emails,
		Evidence:           evidence,
		NextActions:        actions,
	}, nil
}

// List returns the requester's verifications; admins may list everyone's.
func (s *service) List(ctx context.Context, req domain.Requester, f domain.ListFilter) ([]domain.Verification, error) {
	if !req.IsAdmin() {
		f.RequestedBy = req.UserID
	}
	if f.Status != "" && domain.Rank(f.Status) < 0 {
		return nil, fmt.Errorf("unknown status %q: %w", f.Status, domain.ErrBadRequest)
	}
	return s.repo.List(ctx, f)
}

// RetryOutreach re-enqueues an approved verification as an operator retry,
// which may redial a call that failed to dispatch. The lease claim in the
// coordinator makes a retry of live outreach a no-op.
func (s *service) RetryOutreach(ctx context.Context, req domain.Requester, verificationID string) error {
	if !req.IsAdmin() {
		return fmt.Errorf("retry outreach: %w", domain.ErrForbidden)
	}
	v, err := s.repo.Get(ctx, verificationID)
	if err != nil {
		return err
	}
	if v.Status != domain.StatusConsentApproved {
		return fmt.Errorf("outreach retry needs %s, verification is %s: %w", domain.StatusConsentApproved, v.Status, domain.ErrConflict)
	}
	if err := s.queue.EnqueueRetry(verificationID); err != nil {
		return fmt.Errorf("enqueue outreach: %w: %w", domain.ErrConflict, err)
	}
	return nil
}

func (s *service) authorized(ctx context.Context, req domain.Requester, verificationID string) (*domain.Verification, error) {
	v, err := s.repo.Get(ctx, verificationID)
	if err != nil {
		return nil, err
	}
	if v.RequestedBy != req.UserID && !req.IsAdmin() {
		return nil, fmt.Errorf("access denied: %w", domain.ErrForbidden)
	}
	return v, nil
}

func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func normalizeDomain(d string) string {
	d = strings.ToLower(strings.TrimSpace(d))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimPrefix(d, "www.")
	return strings.TrimSuffix(d, "/")
}
