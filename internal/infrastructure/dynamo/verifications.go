package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-employment-verify/internal/domain"
)

// VerificationRepo provides typed DynamoDB operations for the verifications
// table. Every write after Create is conditional on the stored version.
type VerificationRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewVerificationRepo(client *dynamodb.Client, tableName string) *VerificationRepo {
	return &VerificationRepo{client: client, tableName: tableName}
}

// Create stores a new verification at version 1.
func (r *VerificationRepo) Create(ctx context.Context, v *domain.Verification) error {
	v.Version = 1
	item, err := marshalItem(v)
	if err != nil {
		return fmt.Errorf("marshal verification: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(r.tableName),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#pk)"),
		ExpressionAttributeNames: map[string]string{"#pk": fieldVerificationID},
	})
	if conditionFailed(err) {
		return fmt.Errorf("verification %s exists: %w", v.VerificationID, domain.ErrConflict)
	}
	return err
}

func (r *VerificationRepo) Get(ctx context.Context, verificationID string) (*domain.Verification, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldVerificationID, verificationID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("verification not found: %w", domain.ErrNotFound)
	}
	var v domain.Verification
	if err := attributevalue.UnmarshalMap(out.Item, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Update replaces the stored record if its version still equals v.Version,
// then bumps v.Version. A stale version yields ErrConflict.
func (r *VerificationRepo) Update(ctx context.Context, v *domain.Verification) error {
	expected := v.Version
	next := *v
	next.Version = expected + 1
	item, err := marshalItem(&next)
	if err != nil {
		return fmt.Errorf("marshal verification: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(r.tableName),
		Item:                      item,
		ConditionExpression:       aws.String("#ver = :ver"),
		ExpressionAttributeNames:  map[string]string{"#ver": fieldVersion},
		ExpressionAttributeValues: map[string]types.AttributeValue{":ver": numVal(expected)},
	})
	if conditionFailed(err) {
		return fmt.Errorf("verification %s version %d is stale: %w", v.VerificationID, expected, domain.ErrConflict)
	}
	if err != nil {
		return err
	}
	v.Version = next.Version
	return nil
}

// ClaimOutreach takes the outreach lease. It succeeds only while the record
// is CONSENT_APPROVED and no lease newer than staleBefore is held.
func (r *VerificationRepo) ClaimOutreach(ctx context.Context, verificationID string, now, staleBefore time.Time) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              strKey(fieldVerificationID, verificationID),
		UpdateExpression: aws.String("SET #lease = :now, #ver = #ver + :one"),
		ConditionExpression: aws.String(
			"#s = :approved AND (attribute_not_exists(#lease) OR #lease < :stale)"),
		ExpressionAttributeNames: map[string]string{
			"#lease": fieldOutreachClaimedAt,
			"#ver":   fieldVersion,
			"#s":     fieldStatus,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now":      ts(now),
			":stale":    ts(staleBefore),
			":one":      numVal(1),
			":approved": strVal(string(domain.StatusConsentApproved)),
		},
	})
	if conditionFailed(err) {
		return fmt.Errorf("outreach for %s already claimed or not approved: %w", verificationID, domain.ErrConflict)
	}
	return err
}

// List returns verifications newest first. RequestedBy and Status are served
// from their GSIs; the remaining filter fields are applied in memory.
func (r *VerificationRepo) List(ctx context.Context, f domain.ListFilter) ([]domain.Verification, error) {
	var (
		items []domain.Verification
		err   error
	)
	switch {
	case f.RequestedBy != "":
		items, err = queryAll[domain.Verification](ctx, r.client, r.indexQuery(indexRequestedByCreatedAt, fieldRequestedBy, f.RequestedBy), 0)
	case f.Status != "":
		items, err = queryAll[domain.Verification](ctx, r.client, r.indexQuery(indexStatusCreatedAt, fieldStatus, string(f.Status)), 0)
	default:
		items, err = scanAll[domain.Verification](ctx, r.client, &dynamodb.ScanInput{TableName: aws.String(r.tableName)}, 0)
	}
	if err != nil {
		return nil, err
	}
	out := items[:0]
	for i := range items {
		if f.Matches(&items[i]) {
			out = append(out, items[i])
		}
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

// ListByStatus returns every verification currently in status.
func (r *VerificationRepo) ListByStatus(ctx context.Context, status domain.Status) ([]domain.Verification, error) {
	return queryAll[domain.Verification](ctx, r.client, r.indexQuery(indexStatusCreatedAt, fieldStatus, string(status)), 0)
}

// CountByRequesterSince counts verifications created by userID at or after since.
func (r *VerificationRepo) CountByRequesterSince(ctx context.Context, userID string, since time.Time) (int, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(indexRequestedByCreatedAt),
		KeyConditionExpression: aws.String("#rb = :rb AND #c >= :since"),
		ExpressionAttributeNames: map[string]string{
			"#rb": fieldRequestedBy,
			"#c":  fieldCreatedAt,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":rb":    strVal(userID),
			":since": ts(since),
		},
		Select: types.SelectCount,
	}
	total := 0
	p := dynamodb.NewQueryPaginator(r.client, in)
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return 0, err
		}
		total += int(out.Count)
	}
	return total, nil
}

func (r *VerificationRepo) indexQuery(index, attr, value string) *dynamodb.QueryInput {
	return &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    aws.String("#a = :v"),
		ExpressionAttributeNames:  map[string]string{"#a": attr},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": strVal(value)},
		ScanIndexForward:          aws.Bool(false),
	}
}
