package domain

import "time"

type EvidenceKind string

const (
	EvidenceWorkEmail EvidenceKind = "work_email"
	EvidenceDocument  EvidenceKind = "document"
)

type EvidenceStatus string

const (
	EvidencePending   EvidenceStatus = "pending"
	EvidenceVerified  EvidenceStatus = "verified"
	EvidenceSubmitted EvidenceStatus = "submitted"
)

// Evidence is candidate-supplied proof gathered through the alternate
// channels. It is reviewed by a human and never changes a Verification.
// PK: verification_id, SK: evidence_id.
type Evidence struct {
	VerificationID string         `json:"verification_id" dynamodbav:"verification_id"`
	EvidenceID     string         `json:"id" dynamodbav:"evidence_id"`
	Kind           EvidenceKind   `json:"kind" dynamodbav:"kind"`
	Status         EvidenceStatus `json:"status" dynamodbav:"status"`
	WorkEmail      string         `json:"work_email,omitempty" dynamodbav:"work_email,omitempty"`
	TokenHash      string         `json:"-" dynamodbav:"token_hash,omitempty"`
	ObjectKey      string         `json:"object_key,omitempty" dynamodbav:"object_key,omitempty"`
	FileName       string         `json:"file_name,omitempty" dynamodbav:"file_name,omitempty"`
	ContentHash    string         `json:"content_hash,omitempty" dynamodbav:"content_hash,omitempty"`
	SubmittedBy    string         `json:"submitted_by" dynamodbav:"submitted_by"`
	ExpiresAt      *time.Time     `json:"expires_at,omitempty" dynamodbav:"expires_at,omitempty"`
	VerifiedAt     *time.Time     `json:"verified_at,omitempty" dynamodbav:"verified_at,omitempty"`
	CreatedAt      time.Time      `json:"created" dynamodbav:"created_at"`
}

type WorkEmailRequest struct {
	WorkEmail string `json:"work_email" validate:"required,email"`
}

type DocumentUploadRequest struct {
	FileName string `json:"file_name" validate:"required,max=255"`
	Data     string `json:"data" validate:"required"` // base64 or data URL
}
