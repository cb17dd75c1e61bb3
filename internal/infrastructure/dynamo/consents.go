package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/go-employment-verify/internal/domain"
)

// ConsentRepo stores one consent per verification. PK: verification_id.
type ConsentRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewConsentRepo(client *dynamodb.Client, tableName string) *ConsentRepo {
	return &ConsentRepo{client: client, tableName: tableName}
}

// Create fails with ErrConflict if the verification already has a consent.
func (r *ConsentRepo) Create(ctx context.Context, c *domain.Consent) error {
	item, err := marshalItem(c)
	if err != nil {
		return fmt.Errorf("marshal consent: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(r.tableName),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#pk)"),
		ExpressionAttributeNames: map[string]string{"#pk": fieldVerificationID},
	})
	if conditionFailed(err) {
		return fmt.Errorf("consent for %s exists: %w", c.VerificationID, domain.ErrConflict)
	}
	return err
}

func (r *ConsentRepo) Get(ctx context.Context, verificationID string) (*domain.Consent, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldVerificationID, verificationID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("consent not found: %w", domain.ErrNotFound)
	}
	var c domain.Consent
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ConsentRepo) GetByTokenHash(ctx context.Context, hash string) (*domain.Consent, error) {
	c, err := queryIndexOne[domain.Consent](ctx, r.client, r.tableName, indexTokenHash, fieldTokenHash, hash)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("consent token not found: %w", domain.ErrNotFound)
	}
	return c, nil
}

// Decide moves a PENDING consent to status. A consent that was already
// decided yields ErrAlreadyProcessed.
func (r *ConsentRepo) Decide(ctx context.Context, verificationID string, status domain.ConsentStatus, at time.Time) error {
	ue, err := buildUpdateExpr(map[string]interface{}{
		fieldStatus:    status,
		fieldActedAt:   at,
		fieldUpdatedAt: at,
	})
	if err != nil {
		return err
	}
	ue.Names["#cs"] = fieldStatus
	ue.Values[":pending"] = strVal(string(domain.ConsentPending))
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldVerificationID, verificationID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(#cs) AND #cs = :pending"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if conditionFailed(err) {
		return fmt.Errorf("consent for %s already decided: %w", verificationID, domain.ErrAlreadyProcessed)
	}
	return err
}
