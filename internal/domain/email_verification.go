package domain

import "time"

type EmailStatus string

const (
	EmailPending EmailStatus = "pending"
	EmailYes     EmailStatus = "YES"
	EmailNo      EmailStatus = "NO"
	EmailRefused EmailStatus = "REFUSE_TO_DISCLOSE"
	EmailExpired EmailStatus = "EXPIRED"
	EmailFailed  EmailStatus = "FAILED"
)

// Result maps a resolved email status onto a channel result.
func (s EmailStatus) Result() Result {
	switch s {
	case EmailYes:
		return ResultYes
	case EmailNo:
		return ResultNo
	case EmailRefused:
		return ResultRefused
	}
	return ResultInconclusive
}

// EmailStatusFor is the inverse of EmailStatus.Result for employer answers.
func EmailStatusFor(r Result) EmailStatus {
	switch r {
	case ResultYes:
		return EmailYes
	case ResultNo:
		return EmailNo
	case ResultRefused:
		return EmailRefused
	}
	return EmailExpired
}

// EmployerEmailVerification is one email-channel attempt.
// PK: verification_id, SK: email_verification_id.
type EmployerEmailVerification struct {
	VerificationID      string      `json:"verification_id" dynamodbav:"verification_id"`
	EmailVerificationID string      `json:"id" dynamodbav:"email_verification_id"`
	EmployerEmail       string      `json:"employer_email" dynamodbav:"employer_email"`
	TokenHash           string      `json:"-" dynamodbav:"token_hash"`
	Status              EmailStatus `json:"status" dynamodbav:"status"`
	RespondedAt         *time.Time  `json:"responded_at,omitempty" dynamodbav:"responded_at,omitempty"`
	SentAt              *time.Time  `json:"sent_at,omitempty" dynamodbav:"sent_at,omitempty"`
	ExpiresAt           time.Time   `json:"expires_at" dynamodbav:"expires_at"`
	CreatedAt           time.Time   `json:"created" dynamodbav:"created_at"`
}

func (e *EmployerEmailVerification) Terminal() bool { return e.Status != EmailPending }

// Unsent reports a pending attempt whose mail never left.
func (e *EmployerEmailVerification) Unsent() bool { return e.Status == EmailPending && e.SentAt == nil }
