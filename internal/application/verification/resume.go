package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/go-employment-verify/internal/domain"
	s3infra "github.com/go-employment-verify/internal/infrastructure/s3"
	"github.com/go-employment-verify/internal/pkg/id"
	"github.com/go-employment-verify/internal/pkg/validate"
)

const analyzerURLTTL = 15 * time.Minute

// ResumeResult lists the verifications seeded from one resume.
type ResumeResult struct {
	ResumeKey       string            `json:"resume_key"`
	CandidateName   string            `json:"candidate_name"`
	VerificationIDs []string          `json:"verification_ids"`
	Skipped         []SkippedEmployer `json:"skipped"`
}

type SkippedEmployer struct {
	CompanyName string `json:"company_name"`
	Reason      string `json:"reason"`
}

// SeedFromResume stores the resume, has it analyzed and creates one
// verification per extracted employer. Employers beyond the requester's
// quota are reported as skipped; the call fails with ErrQuotaExceeded only
// when none could be created for that reason.
func (s *service) SeedFromResume(ctx context.Context, req domain.Requester, in domain.ResumeUploadRequest) (*ResumeResult, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	data, err := s.decode(in.Data)
	if err != nil {
		return nil, err
	}

	name := sanitizeFilename(in.FileName)
	key := fmt.Sprintf("resumes/%s/%s/%s", req.UserID, id.NewAt(s.now()), name)
	if _, err := s.objects.UploadBytes(ctx, key, data); err != nil {
		return nil, fmt.Errorf("store resume: %w", err)
	}
	url, err := s.objects.PresignedURL(ctx, key, analyzerURLTTL)
	if err != nil {
		return nil, fmt.Errorf("presign resume: %w", err)
	}
	analysis, err := s.analyzer.AnalyzeResume(ctx, domain.ResumeInput{FileURL: url, FileName: name})
	if err != nil {
		return nil, err
	}

	candidateName := firstNonEmpty(in.CandidateName, analysis.CandidateName)
	candidateEmail := firstNonEmpty(in.CandidateEmail, analysis.CandidateEmail)
	if candidateName == "" || !validate.Email(candidateEmail) {
		return nil, fmt.Errorf("candidate name and email are required: %w", domain.ErrBadRequest)
	}

	res := &ResumeResult{
		ResumeKey:       key,
		CandidateName:   candidateName,
		VerificationIDs: []string{},
		Skipped:         []SkippedEmployer{},
	}
	quotaHit := false
	seen := make(map[string]bool)
	for _, emp := range analysis.Employers {
		company := strings.TrimSpace(emp.CompanyName)
		if company == "" || seen[strings.ToLower(company)] {
			continue
		}
		seen[strings.ToLower(company)] = true

		v, err := s.Create(ctx, req, claimRequest(candidateName, candidateEmail, emp))
		if err != nil {
			if errors.Is(err, domain.ErrQuotaExceeded) {
				quotaHit = true
			} else {
				slog.Warn("seed verification", "company", company, "err", err)
			}
			res.Skipped = append(res.Skipped, SkippedEmployer{CompanyName: company, Reason: err.Error()})
			continue
		}
		res.VerificationIDs = append(res.VerificationIDs, v.VerificationID)
	}
	if quotaHit && len(res.VerificationIDs) == 0 {
		return res, fmt.Errorf("no verifications created: %w", domain.ErrQuotaExceeded)
	}
	return res, nil
}

// claimRequest drops optional contact fields that would fail validation so
// a sloppy extraction never blocks the employer itself.
func claimRequest(name, email string, emp domain.EmployerClaim) domain.CreateVerificationRequest {
	r := domain.CreateVerificationRequest{
		CandidateName:   name,
		CandidateEmail:  email,
		CompanyName:     strings.TrimSpace(emp.CompanyName),
		CompanyPhone:    strings.TrimSpace(emp.Phone),
		CompanyDomain:   normalizeDomain(emp.Domain),
		EmployerEmail:   strings.TrimSpace(emp.Email),
		JobTitle:        emp.JobTitle,
		EmploymentDates: emp.Dates,
	}
	if r.CompanyPhone != "" && !validate.Phone(r.CompanyPhone) {
		r.CompanyPhone = ""
	}
	if r.CompanyDomain != "" && !validate.Domain(r.CompanyDomain) {
		r.CompanyDomain = ""
	}
	if r.EmployerEmail != "" && !validate.Email(r.EmployerEmail) {
		r.EmployerEmail = ""
	}
	return r
}

func (s *service) decode(data string) ([]byte, error) {
	raw, err := s3infra.DecodeBase64(data)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty file: %w", domain.ErrBadRequest)
	}
	if len(raw) > s.maxUploadSize {
		return nil, fmt.Errorf("file exceeds %d bytes: %w", s.maxUploadSize, domain.ErrBadRequest)
	}
	return raw, nil
}

// sanitizeFilename strips directory components and keeps only safe characters
// so the name can be embedded in an object key.
func sanitizeFilename(name string) string {
	name = path.Base(name)
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '.' || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	if result := b.String(); result != "" && result != "." {
		return result
	}
	return "_"
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
