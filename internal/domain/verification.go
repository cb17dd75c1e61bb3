package domain

import (
	"strings"
	"time"
)

// Status is the workflow state of a Verification.
type Status string

const (
	StatusPendingConsent    Status = "PENDING_CONSENT"
	StatusConsentApproved   Status = "CONSENT_APPROVED"
	StatusConsentDenied     Status = "CONSENT_DENIED"
	StatusCallInProgress    Status = "CALL_IN_PROGRESS"
	StatusPhoneCompleted    Status = "PHONE_COMPLETED"
	StatusEmployerEmailSent Status = "EMPLOYER_EMAIL_SENT"
	StatusCompleted         Status = "COMPLETED"
)

// Terminal reports whether no further transition can leave s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusConsentDenied
}

// Result is a per-channel outcome and, once COMPLETED, the final verdict.
type Result string

const (
	ResultYes          Result = "YES"
	ResultNo           Result = "NO"
	ResultRefused      Result = "REFUSE_TO_DISCLOSE"
	ResultInconclusive Result = "INCONCLUSIVE"
)

// ParseResult accepts the spellings used by the call service, the employer
// response links and the API filters.
func ParseResult(s string) (Result, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "YES", "Y", "CONFIRM", "CONFIRMED", "TRUE":
		return ResultYes, true
	case "NO", "N", "DENY", "DENIED", "FALSE":
		return ResultNo, true
	case "REFUSE_TO_DISCLOSE", "REFUSE", "REFUSED":
		return ResultRefused, true
	case "INCONCLUSIVE", "UNKNOWN":
		return ResultInconclusive, true
	}
	return "", false
}

// Step names a row of the verification timeline.
type Step string

const (
	StepConsentRequested Step = "consent_requested"
	StepConsentResponse  Step = "consent_response"
	StepWebScan          Step = "web_scan"
	StepContactDiscovery Step = "contact_discovery"
	StepPhoneCall        Step = "phone_call"
	StepEmailOutreach    Step = "email_outreach"
	StepFinalOutcome     Step = "final_outcome"
)

// StepStatus is the state of a single timeline row.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
	StepFailed     StepStatus = "failed"
	StepSkipped    StepStatus = "skipped"
)

type ProgressEntry struct {
	Status    StepStatus `json:"status" dynamodbav:"status"`
	Message   string     `json:"message" dynamodbav:"message"`
	Timestamp time.Time  `json:"timestamp" dynamodbav:"timestamp"`
}

// ChannelSummary mirrors the latest state of a consent, call or email
// sub-record onto the Verification for cheap polling.
type ChannelSummary struct {
	Status    string    `json:"status" dynamodbav:"status"`
	Result    Result    `json:"result,omitempty" dynamodbav:"result,omitempty"`
	Detail    string    `json:"detail,omitempty" dynamodbav:"detail,omitempty"`
	UpdatedAt time.Time `json:"updated_at" dynamodbav:"updated_at"`
}

// Verification is one attempt to confirm a candidate's claimed employment at
// one employer. PK: verification_id.
type Verification struct {
	VerificationID  string `json:"id" dynamodbav:"verification_id"`
	RequestedBy     string `json:"requested_by" dynamodbav:"requested_by"`
	CandidateName   string `json:"candidate_name" dynamodbav:"candidate_name"`
	CandidateEmail  string `json:"candidate_email" dynamodbav:"candidate_email"`
	CompanyName     string `json:"company_name" dynamodbav:"company_name"`
	CompanyPhone    string `json:"company_phone,omitempty" dynamodbav:"company_phone,omitempty"`
	CompanyDomain   string `json:"company_domain,omitempty" dynamodbav:"company_domain,omitempty"`
	EmployerEmail   string `json:"employer_email,omitempty" dynamodbav:"employer_email,omitempty"`
	JobTitle        string `json:"job_title,omitempty" dynamodbav:"job_title,omitempty"`
	EmploymentDates string `json:"employment_dates,omitempty" dynamodbav:"employment_dates,omitempty"`

	Status      Status `json:"status" dynamodbav:"status"`
	FinalResult Result `json:"final_result,omitempty" dynamodbav:"final_result,omitempty"`
	FinalReason string `json:"final_reason,omitempty" dynamodbav:"final_reason,omitempty"`

	Consent *ChannelSummary `json:"consent,omitempty" dynamodbav:"consent,omitempty"`
	Call    *ChannelSummary `json:"call,omitempty" dynamodbav:"call,omitempty"`
	Email   *ChannelSummary `json:"email,omitempty" dynamodbav:"email,omitempty"`

	// Contacts resolved by discovery; empty until outreach starts.
	ContactPhone  string `json:"contact_phone,omitempty" dynamodbav:"contact_phone,omitempty"`
	ContactEmail  string `json:"contact_email,omitempty" dynamodbav:"contact_email,omitempty"`
	ContactSource string `json:"contact_source,omitempty" dynamodbav:"contact_source,omitempty"`

	Progress map[string]ProgressEntry `json:"progress" dynamodbav:"progress"`

	AttestationRequested bool       `json:"attestation_requested" dynamodbav:"attestation_requested"`
	AttestationUID       string     `json:"attestation_uid,omitempty" dynamodbav:"attestation_uid,omitempty"`
	AttestationDate      *time.Time `json:"attestation_date,omitempty" dynamodbav:"attestation_date,omitempty"`
	AttestationError     string     `json:"attestation_error,omitempty" dynamodbav:"attestation_error,omitempty"`

	OutreachClaimedAt *time.Time `json:"-" dynamodbav:"outreach_claimed_at,omitempty"`

	Version   int64     `json:"version" dynamodbav:"version"`
	CreatedAt time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt time.Time `json:"updated" dynamodbav:"updated_at"`
}

// SetProgress records the state of a timeline step.
func (v *Verification) SetProgress(step Step, status StepStatus, message string, at time.Time) {
	if v.Progress == nil {
		v.Progress = make(map[string]ProgressEntry)
	}
	v.Progress[string(step)] = ProgressEntry{Status: status, Message: message, Timestamp: at}
}

// HasProgress reports whether step has been recorded.
func (v *Verification) HasProgress(step Step) bool {
	_, ok := v.Progress[string(step)]
	return ok
}

// Clone returns a deep copy so stores never share maps or pointers with callers.
func (v *Verification) Clone() *Verification {
	c := *v
	if v.Progress != nil {
		c.Progress = make(map[string]ProgressEntry, len(v.Progress))
		for k, e := range v.Progress {
			c.Progress[k] = e
		}
	}
	c.Consent = cloneSummary(v.Consent)
	c.Call = cloneSummary(v.Call)
	c.Email = cloneSummary(v.Email)
	if v.AttestationDate != nil {
		t := *v.AttestationDate
		c.AttestationDate = &t
	}
	if v.OutreachClaimedAt != nil {
		t := *v.OutreachClaimedAt
		c.OutreachClaimedAt = &t
	}
	return &c
}

func cloneSummary(s *ChannelSummary) *ChannelSummary {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// NextAction is an alternate channel offered to the candidate when the
// automated channels could not produce a definitive answer.
type NextAction string

const (
	NextActionWorkEmail NextAction = "work_email_verification"
	NextActionDocument  NextAction = "document_upload"
)

// NextActions lists the alternate channels available for v.
func (v *Verification) NextActions() []NextAction {
	if v.Status != StatusCompleted {
		return nil
	}
	switch v.FinalResult {
	case ResultInconclusive, ResultRefused:
		return []NextAction{NextActionWorkEmail, NextActionDocument}
	}
	return nil
}

type CreateVerificationRequest struct {
	CandidateName   string `json:"candidate_name" validate:"required"`
	CandidateEmail  string `json:"candidate_email" validate:"required,email"`
	CompanyName     string `json:"company_name" validate:"required"`
	CompanyPhone    string `json:"company_phone" validate:"omitempty,e164"`
	CompanyDomain   string `json:"company_domain" validate:"omitempty,fqdn"`
	EmployerEmail   string `json:"employer_email" validate:"omitempty,email"`
	JobTitle        string `json:"job_title"`
	EmploymentDates string `json:"employment_dates"`
}

// ListFilter narrows listVerifications. Empty fields match everything.
type ListFilter struct {
	Status      Status
	FinalResult Result
	RequestedBy string
	Limit       int
}

// Matches reports whether v passes every non-empty field of f.
func (f ListFilter) Matches(v *Verification) bool {
	if f.Status != "" && v.Status != f.Status {
		return false
	}
	if f.FinalResult != "" && v.FinalResult != f.FinalResult {
		return false
	}
	if f.RequestedBy != "" && v.RequestedBy != f.RequestedBy {
		return false
	}
	return true
}

// ResumeUploadRequest seeds verifications from a resume. Candidate fields
// override what the analyzer extracts.
type ResumeUploadRequest struct {
	FileName       string `json:"file_name" validate:"required,max=255"`
	Data           string `json:"data" validate:"required"`
	CandidateName  string `json:"candidate_name"`
	CandidateEmail string `json:"candidate_email" validate:"omitempty,email"`
}
