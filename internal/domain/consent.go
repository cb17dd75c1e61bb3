package domain

import "time"

type ConsentStatus string

const (
	ConsentPending  ConsentStatus = "PENDING"
	ConsentApproved ConsentStatus = "APPROVED"
	ConsentDenied   ConsentStatus = "DENIED"
)

// Consent is the candidate's answer to a verification request.
// PK: verification_id. Only the hash of the action token is stored.
type Consent struct {
	VerificationID string        `json:"verification_id" dynamodbav:"verification_id"`
	TokenHash      string        `json:"-" dynamodbav:"token_hash"`
	Status         ConsentStatus `json:"status" dynamodbav:"status"`
	ActedAt        *time.Time    `json:"acted_at,omitempty" dynamodbav:"acted_at,omitempty"`
	ExpiresAt      time.Time     `json:"expires_at" dynamodbav:"expires_at"`
	CreatedAt      time.Time     `json:"created" dynamodbav:"created_at"`
	UpdatedAt      time.Time     `json:"updated" dynamodbav:"updated_at"`
}
