package verification

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/go-employment-verify/internal/domain"
	"github.com/go-employment-verify/internal/pkg/id"
	"github.com/go-employment-verify/internal/pkg/mailtmpl"
	pkgtoken "github.com/go-employment-verify/internal/pkg/token"
	"github.com/go-employment-verify/internal/pkg/validate"
)

// EvidenceOutcome is returned by ConfirmWorkEmail.
type EvidenceOutcome struct {
	VerificationID   string                `json:"verification_id"`
	EvidenceID       string                `json:"evidence_id"`
	Status           domain.EvidenceStatus `json:"evidence_status"`
	AlreadyProcessed bool                  `json:"already_processed"`
}

// RequestWorkEmail emails a single-use confirmation link to a mailbox on the
// employer's domain. Only offered once the automated channels ended without
// a definitive answer.
func (s *service) RequestWorkEmail(ctx context.Context, req domain.Requester, verificationID string, in domain.WorkEmailRequest) (*domain.Evidence, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	v, err := s.authorized(ctx, req, verificationID)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(v.NextActions(), domain.NextActionWorkEmail) {
		return nil, fmt.Errorf("work email verification not available for %s: %w", verificationID, domain.ErrConflict)
	}
	if v.CompanyDomain == "" {
		return nil, fmt.Errorf("company domain unknown: %w", domain.ErrBadRequest)
	}
	workEmail := strings.ToLower(strings.TrimSpace(in.WorkEmail))
	if !onDomain(workEmail, v.CompanyDomain) {
		return nil, fmt.Errorf("work email must be on %s: %w", v.CompanyDomain, domain.ErrBadRequest)
	}

	tok, err := pkgtoken.New()
	if err != nil {
		return nil, err
	}
	now := s.now()
	expires := now.Add(s.workEmailTTL)
	e := &domain.Evidence{
		VerificationID: verificationID,
		EvidenceID:     id.NewAt(now),
		Kind:           domain.EvidenceWorkEmail,
		Status:         domain.EvidencePending,
		WorkEmail:      workEmail,
		TokenHash:      pkgtoken.Hash(tok),
		SubmittedBy:    req.UserID,
		ExpiresAt:      &expires,
		CreatedAt:      now,
	}
	if err := s.evidence.Put(ctx, e); err != nil {
		return nil, err
	}

	subject, body, err := s.templates.Render(mailtmpl.WorkEmail, mailtmpl.WorkEmailData{
		CandidateName: v.CandidateName,
		CompanyName:   v.CompanyName,
		ConfirmURL:    s.baseURL + "/v1/work-email/" + tok,
	})
	if err != nil {
		return nil, err
	}
	if err := s.mailer.SendEmail(ctx, workEmail, subject, body); err != nil {
		return nil, fmt.Errorf("send work email: %w: %w", domain.ErrExternalService, err)
	}
	return e, nil
}

func (s *service) ConfirmWorkEmail(ctx context.Context, token string) (*EvidenceOutcome, error) {
	if token == "" {
		return nil, fmt.Errorf("empty work email token: %w", domain.ErrBadRequest)
	}
	e, err := s.evidence.GetByTokenHash(ctx, pkgtoken.Hash(token))
	if err != nil {
		return nil, err
	}
	out := &EvidenceOutcome{VerificationID: e.VerificationID, EvidenceID: e.EvidenceID, Status: e.Status}
	if e.Status != domain.EvidencePending {
		out.AlreadyProcessed = true
		return out, nil
	}
	now := s.now()
	if e.ExpiresAt != nil && now.After(*e.ExpiresAt) {
		return nil, fmt.Errorf("work email link for %s: %w", e.VerificationID, domain.ErrTokenExpired)
	}
	if err := s.evidence.MarkVerified(ctx, e.VerificationID, e.EvidenceID, now); err != nil {
		if errors.Is(err, domain.ErrAlreadyProcessed) {
			out.Status = domain.EvidenceVerified
			out.AlreadyProcessed = true
			return out, nil
		}
		return nil, err
	}
	out.Status = domain.EvidenceVerified
	return out, nil
}

// UploadDocument stores candidate-supplied proof of employment for human
// review.
func (s *service) UploadDocument(ctx context.Context, req domain.Requester, verificationID string, in domain.DocumentUploadRequest) (*domain.Evidence, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	v, err := s.authorized(ctx, req, verificationID)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(v.NextActions(), domain.NextActionDocument) {
		return nil, fmt.Errorf("document upload not available for %s: %w", verificationID, domain.ErrConflict)
	}
	data, err := s.decode(in.Data)
	if err != nil {
		return nil, err
	}

	now := s.now()
	evidenceID := id.NewAt(now)
	name := sanitizeFilename(in.FileName)
	key := fmt.Sprintf("evidence/%s/%s/%s", verificationID, evidenceID, name)
	if _, err := s.objects.UploadBytes(ctx, key, data); err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}
	sum := sha256.Sum256(data)
	e := &domain.Evidence{
		VerificationID: verificationID,
		EvidenceID:     evidenceID,
		Kind:           domain.EvidenceDocument,
		Status:         domain.EvidenceSubmitted,
		ObjectKey:      key,
		FileName:       name,
		ContentHash:    hex.EncodeToString(sum[:]),
		SubmittedBy:    req.UserID,
		CreatedAt:      now,
	}
	if err := s.evidence.Put(ctx, e); err != nil {
		if derr := s.objects.Delete(ctx, key); derr != nil {
			slog.Warn("remove orphaned document", "key", key, "err", derr)
		}
		return nil, err
	}
	return e, nil
}

func onDomain(email, companyDomain string) bool {
	_, host, ok := strings.Cut(email, "@")
	if !ok {
		return false
	}
	return host == companyDomain || strings.HasSuffix(host, "."+companyDomain)
}
