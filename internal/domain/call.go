package domain

import "time"

type CallStatus string

const (
	CallInProgress CallStatus = "in_progress"
	CallEnded      CallStatus = "ended"
	CallFailed     CallStatus = "failed"
)

// Call is one phone-channel attempt. PK: verification_id, SK: call_id.
type Call struct {
	VerificationID     string     `json:"verification_id" dynamodbav:"verification_id"`
	CallID             string     `json:"id" dynamodbav:"call_id"`
	ExternalCallID     string     `json:"external_call_id,omitempty" dynamodbav:"external_call_id,omitempty"`
	PhoneNumber        string     `json:"phone_number" dynamodbav:"phone_number"`
	Status             CallStatus `json:"status" dynamodbav:"status"`
	Result             *Result    `json:"result" dynamodbav:"result,omitempty"`
	FailureReason      string     `json:"failure_reason,omitempty" dynamodbav:"failure_reason,omitempty"`
	Transcript         string     `json:"transcript,omitempty" dynamodbav:"transcript,omitempty"`
	RecordingURL       string     `json:"recording_url,omitempty" dynamodbav:"recording_url,omitempty"`
	AttestationCreated bool       `json:"attestation_created" dynamodbav:"attestation_created"`
	AttestationUID     string     `json:"attestation_uid,omitempty" dynamodbav:"attestation_uid,omitempty"`
	EndedAt            *time.Time `json:"ended_at,omitempty" dynamodbav:"ended_at,omitempty"`
	CreatedAt          time.Time  `json:"created" dynamodbav:"created_at"`
}

func (c *Call) Terminal() bool { return c.Status != CallInProgress }

// CallReport is the completion data for a call, read back from the call
// service or delivered by its webhook.
type CallReport struct {
	ExternalCallID     string `json:"call_id" validate:"required"`
	Ended              bool   `json:"ended"`
	Result             string `json:"verification_result"`
	FailureReason      string `json:"ended_reason"`
	Transcript         string `json:"transcript"`
	RecordingURL       string `json:"recording_url"`
	AttestationCreated bool   `json:"attestation_created"`
	AttestationUID     string `json:"attestation_uid"`
}
