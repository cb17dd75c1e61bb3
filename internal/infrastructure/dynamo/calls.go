package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-employment-verify/internal/domain"
)

// CallRepo stores phone attempts. PK: verification_id, SK: call_id.
type CallRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewCallRepo(client *dynamodb.Client, tableName string) *CallRepo {
	return &CallRepo{client: client, tableName: tableName}
}

func (r *CallRepo) Create(ctx context.Context, c *domain.Call) error {
	item, err := marshalItem(c)
	if err != nil {
		return fmt.Errorf("marshal call: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(r.tableName),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#sk)"),
		ExpressionAttributeNames: map[string]string{"#sk": fieldCallID},
	})
	if conditionFailed(err) {
		return fmt.Errorf("call %s exists: %w", c.CallID, domain.ErrConflict)
	}
	return err
}

// ListByVerification returns the calls of a verification oldest first.
func (r *CallRepo) ListByVerification(ctx context.Context, verificationID string) ([]domain.Call, error) {
	return queryAll[domain.Call](ctx, r.client, byPartition(r.tableName, fieldVerificationID, verificationID), 0)
}

// ListInProgress returns every call still waiting for completion.
func (r *CallRepo) ListInProgress(ctx context.Context) ([]domain.Call, error) {
	return queryAll[domain.Call](ctx, r.client, byStatus(r.tableName, string(domain.CallInProgress)), 0)
}

func (r *CallRepo) GetByExternalID(ctx context.Context, externalID string) (*domain.Call, error) {
	c, err := queryIndexOne[domain.Call](ctx, r.client, r.tableName, indexExternalCallID, fieldExternalCallID, externalID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("call not found: %w", domain.ErrNotFound)
	}
	return c, nil
}

// Complete writes the terminal state of c. Only an in-progress call can be
// completed; a second completion yields ErrAlreadyProcessed.
func (r *CallRepo) Complete(ctx context.Context, c *domain.Call) error {
	item, err := marshalItem(c)
	if err != nil {
		return fmt.Errorf("marshal call: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(r.tableName),
		Item:                      item,
		ConditionExpression:       aws.String("#s = :inprog"),
		ExpressionAttributeNames:  map[string]string{"#s": fieldStatus},
		ExpressionAttributeValues: map[string]types.AttributeValue{":inprog": strVal(string(domain.CallInProgress))},
	})
	if conditionFailed(err) {
		return fmt.Errorf("call %s already completed: %w", c.CallID, domain.ErrAlreadyProcessed)
	}
	return err
}
