package dynamo

// DynamoDB attribute and index names shared by the repos and Bootstrap.
const (
	fieldVerificationID      = "verification_id"
	fieldCallID              = "call_id"
	fieldEmailVerificationID = "email_verification_id"
	fieldEvidenceID          = "evidence_id"
	fieldStatus              = "status"
	fieldVersion             = "version"
	fieldRequestedBy         = "requested_by"
	fieldCreatedAt           = "created_at"
	fieldTokenHash           = "token_hash"
	fieldExternalCallID      = "external_call_id"
	fieldOutreachClaimedAt   = "outreach_claimed_at"
	fieldActedAt             = "acted_at"
	fieldUpdatedAt           = "updated_at"
	fieldRespondedAt         = "responded_at"
	fieldVerifiedAt          = "verified_at"
	fieldExpiresAt           = "expires_at"
	fieldEndedAt             = "ended_at"
	fieldSentAt              = "sent_at"

	indexStatusCreatedAt      = "status-created_at-index"
	indexRequestedByCreatedAt = "requested_by-created_at-index"
	indexTokenHash            = "token_hash-index"
	indexStatus               = "status-index"
	indexExternalCallID       = "external_call_id-index"
)
