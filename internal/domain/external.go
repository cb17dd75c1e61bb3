package domain

import "time"

// ContactInfo is an HR contact for an employer.
type ContactInfo struct {
	Phone      string  `json:"phone,omitempty"`
	Email      string  `json:"email,omitempty"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source,omitempty"`
}

func (c *ContactInfo) Empty() bool { return c == nil || (c.Phone == "" && c.Email == "") }

// CallState is the answer of the external call-status query.
type CallState struct {
	Ended              bool
	VerificationResult string
	EndedReason        string
	Transcript         string
	RecordingURL       string
	AttestationCreated bool
	AttestationUID     string
}

// AttestationRequest is the payload sent to the attestation service.
type AttestationRequest struct {
	CandidateName      string    `json:"candidateName"`
	EmployerName       string    `json:"employerName"`
	JobTitle           string    `json:"jobTitle,omitempty"`
	Dates              string    `json:"dates,omitempty"`
	VerificationMethod string    `json:"verificationMethod"`
	VerificationDate   time.Time `json:"verificationDate"`
	Result             Result    `json:"result"`
	VerificationID     string    `json:"verificationId"`
}

// ResumeInput points the analyzer at an uploaded resume.
type ResumeInput struct {
	FileURL  string `json:"file_url"`
	FileName string `json:"file_name"`
}

// EmployerClaim is one employer extracted from a resume.
type EmployerClaim struct {
	CompanyName string `json:"companyName"`
	JobTitle    string `json:"jobTitle,omitempty"`
	Dates       string `json:"dates,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty"`
	Domain      string `json:"domain,omitempty"`
}

// ResumeAnalysis is the opaque scoring result; only the candidate identity
// and Employers are consumed here.
type ResumeAnalysis struct {
	CandidateName  string             `json:"candidateName"`
	CandidateEmail string             `json:"candidateEmail"`
	Employers      []EmployerClaim    `json:"employers"`
	Scores         map[string]float64 `json:"scores,omitempty"`
	Flags          map[string]any     `json:"flags,omitempty"`
}

// LifecycleEvent is published whenever a Verification changes status.
type LifecycleEvent struct {
	VerificationID string    `json:"verification_id"`
	Event          Event     `json:"event"`
	From           Status    `json:"from"`
	To             Status    `json:"to"`
	FinalResult    Result    `json:"final_result,omitempty"`
	At             time.Time `json:"at"`
}

// CallRequest asks the call service to phone an HR contact.
type CallRequest struct {
	VerificationID  string `json:"verificationId"`
	PhoneNumber     string `json:"phoneNumber"`
	CandidateName   string `json:"candidateName"`
	CompanyName     string `json:"companyName"`
	JobTitle        string `json:"jobTitle,omitempty"`
	EmploymentDates string `json:"employmentDates,omitempty"`
}
