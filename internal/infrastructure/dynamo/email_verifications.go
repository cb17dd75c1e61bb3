package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/go-employment-verify/internal/domain"
)

// EmailVerificationRepo stores employer email attempts.
// PK: verification_id, SK: email_verification_id.
type EmailVerificationRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewEmailVerificationRepo(client *dynamodb.Client, tableName string) *EmailVerificationRepo {
	return &EmailVerificationRepo{client: client, tableName: tableName}
}

func (r *EmailVerificationRepo) Create(ctx context.Context, e *domain.EmployerEmailVerification) error {
	item, err := marshalItem(e)
	if err != nil {
		return fmt.Errorf("marshal email verification: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(r.tableName),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#sk)"),
		ExpressionAttributeNames: map[string]string{"#sk": fieldEmailVerificationID},
	})
	if conditionFailed(err) {
		return fmt.Errorf("email verification %s exists: %w", e.EmailVerificationID, domain.ErrConflict)
	}
	return err
}

func (r *EmailVerificationRepo) ListByVerification(ctx context.Context, verificationID string) ([]domain.EmployerEmailVerification, error) {
	return queryAll[domain.EmployerEmailVerification](ctx, r.client, byPartition(r.tableName, fieldVerificationID, verificationID), 0)
}

// ListPending returns every email verification awaiting a response.
func (r *EmailVerificationRepo) ListPending(ctx context.Context) ([]domain.EmployerEmailVerification, error) {
	return queryAll[domain.EmployerEmailVerification](ctx, r.client, byStatus(r.tableName, string(domain.EmailPending)), 0)
}

func (r *EmailVerificationRepo) GetByTokenHash(ctx context.Context, hash string) (*domain.EmployerEmailVerification, error) {
	e, err := queryIndexOne[domain.EmployerEmailVerification](ctx, r.client, r.tableName, indexTokenHash, fieldTokenHash, hash)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("email verification token not found: %w", domain.ErrNotFound)
	}
	return e, nil
}

// Resolve moves a pending email verification to status exactly once.
func (r *EmailVerificationRepo) Resolve(ctx context.Context, verificationID, emailVerificationID string, status domain.EmailStatus, at time.Time) error {
	ue, err := buildUpdateExpr(map[string]interface{}{
		fieldStatus:      status,
		fieldRespondedAt: at,
	})
	if err != nil {
		return err
	}
	ue.Names["#es"] = fieldStatus
	ue.Values[":pending"] = strVal(string(domain.EmailPending))
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       compositeKey(fieldVerificationID, verificationID, fieldEmailVerificationID, emailVerificationID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(#es) AND #es = :pending"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if conditionFailed(err) {
		return fmt.Errorf("email verification %s already resolved: %w", emailVerificationID, domain.ErrAlreadyProcessed)
	}
	return err
}

// Reissue replaces the token of a pending attempt whose mail was never sent.
func (r *EmailVerificationRepo) Reissue(ctx context.Context, verificationID, emailVerificationID, tokenHash string, expiresAt time.Time) error {
	ue, err := buildUpdateExpr(map[string]interface{}{
		fieldTokenHash: tokenHash,
		fieldExpiresAt: expiresAt,
	})
	if err != nil {
		return err
	}
	ue.Names["#es"] = fieldStatus
	ue.Names["#sent"] = fieldSentAt
	ue.Values[":pending"] = strVal(string(domain.EmailPending))
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       compositeKey(fieldVerificationID, verificationID, fieldEmailVerificationID, emailVerificationID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("#es = :pending AND attribute_not_exists(#sent)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if conditionFailed(err) {
		return fmt.Errorf("email verification %s already sent or resolved: %w", emailVerificationID, domain.ErrAlreadyProcessed)
	}
	return err
}

// MarkSent records that the employer mail left.
func (r *EmailVerificationRepo) MarkSent(ctx context.Context, verificationID, emailVerificationID string, at time.Time) error {
	ue, err := buildUpdateExpr(map[string]interface{}{fieldSentAt: at})
	if err != nil {
		return err
	}
	ue.Names["#sk"] = fieldEmailVerificationID
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       compositeKey(fieldVerificationID, verificationID, fieldEmailVerificationID, emailVerificationID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(#sk)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if conditionFailed(err) {
		return fmt.Errorf("email verification %s: %w", emailVerificationID, domain.ErrNotFound)
	}
	return err
}
