package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/go-employment-verify/internal/domain"
)

// EvidenceRepo stores candidate-supplied evidence.
// PK: verification_id, SK: evidence_id.
type EvidenceRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewEvidenceRepo(client *dynamodb.Client, tableName string) *EvidenceRepo {
	return &EvidenceRepo{client: client, tableName: tableName}
}

func (r *EvidenceRepo) Put(ctx context.Context, e *domain.Evidence) error {
	item, err := marshalItem(e)
	if err != nil {
		return fmt.Errorf("marshal evidence: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *EvidenceRepo) ListByVerification(ctx context.Context, verificationID string) ([]domain.Evidence, error) {
	return queryAll[domain.Evidence](ctx, r.client, byPartition(r.tableName, fieldVerificationID, verificationID), 0)
}

func (r *EvidenceRepo) GetByTokenHash(ctx context.Context, hash string) (*domain.Evidence, error) {
	e, err := queryIndexOne[domain.Evidence](ctx, r.client, r.tableName, indexTokenHash, fieldTokenHash, hash)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("evidence token not found: %w", domain.ErrNotFound)
	}
	return e, nil
}

// MarkVerified flips pending work-email evidence to verified exactly once.
func (r *EvidenceRepo) MarkVerified(ctx context.Context, verificationID, evidenceID string, at time.Time) error {
	ue, err := buildUpdateExpr(map[string]interface{}{
		fieldStatus:     domain.EvidenceVerified,
		fieldVerifiedAt: at,
	})
	if err != nil {
		return err
	}
	ue.Names["#es"] = fieldStatus
	ue.Values[":pending"] = strVal(string(domain.EvidencePending))
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       compositeKey(fieldVerificationID, verificationID, fieldEvidenceID, evidenceID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(#es) AND #es = :pending"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if conditionFailed(err) {
		return fmt.Errorf("evidence %s already verified: %w", evidenceID, domain.ErrAlreadyProcessed)
	}
	return err
}
