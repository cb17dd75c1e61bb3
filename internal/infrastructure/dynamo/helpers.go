package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// strKey builds a DynamoDB primary key map with a single string attribute.
func strKey(name, value string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		name: &types.AttributeValueMemberS{Value: value},
	}
}

// compositeKey builds a DynamoDB primary key with two string attributes (PK + SK).
func compositeKey(pkName, pkValue, skName, skValue string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		pkName: &types.AttributeValueMemberS{Value: pkValue},
		skName: &types.AttributeValueMemberS{Value: skValue},
	}
}

func strVal(s string) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: s}
}

func numVal(n int64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", n)}
}

// updateExpr is a SET expression with its placeholder maps.
type updateExpr struct {
	Expr   string
	Names  map[string]string
	Values map[string]types.AttributeValue
}

// buildUpdateExpr converts a map of field->value into a DynamoDB SET
// expression. Keys are sorted so the same input always yields the same
// placeholders.
func buildUpdateExpr(updates map[string]interface{}) (updateExpr, error) {
	if len(updates) == 0 {
		return updateExpr{}, fmt.Errorf("no fields to update")
	}
	keys := make([]string, 0, len(updates))
	for k := range updates {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ue := updateExpr{
		Names:  make(map[string]string, len(keys)),
		Values: make(map[string]types.AttributeValue, len(keys)),
	}
	sets := make([]string, 0, len(keys))
	for i, k := range keys {
		nameKey := fmt.Sprintf("#f%d", i)
		valueKey := fmt.Sprintf(":v%d", i)
		var av types.AttributeValue
		if t, ok := updates[k].(time.Time); ok {
			av = ts(t)
		} else {
			var err error
			if av, err = attributevalue.Marshal(updates[k]); err != nil {
				return updateExpr{}, fmt.Errorf("marshal field %s: %w", k, err)
			}
		}
		ue.Names[nameKey] = k
		ue.Values[valueKey] = av
		sets = append(sets, fmt.Sprintf("%s = %s", nameKey, valueKey))
	}
	ue.Expr = "SET " + strings.Join(sets, ", ")
	return ue, nil
}

// conditionFailed reports whether err is a failed ConditionExpression.
func conditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

// queryAll follows LastEvaluatedKey until the query is exhausted or limit
// items were read. limit <= 0 means no limit.
func queryAll[T any](ctx context.Context, client *dynamodb.Client, in *dynamodb.QueryInput, limit int) ([]T, error) {
	var items []T
	p := dynamodb.NewQueryPaginator(client, in)
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		var page []T
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, err
		}
		items = append(items, page...)
		if limit > 0 && len(items) >= limit {
			return items[:limit], nil
		}
	}
	return items, nil
}

// scanAll is the Scan counterpart of queryAll.
func scanAll[T any](ctx context.Context, client *dynamodb.Client, in *dynamodb.ScanInput, limit int) ([]T, error) {
	var items []T
	p := dynamodb.NewScanPaginator(client, in)
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		var page []T
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, err
		}
		items = append(items, page...)
		if limit > 0 && len(items) >= limit {
			return items[:limit], nil
		}
	}
	return items, nil
}

// queryIndexOne returns the first item of index whose hash key attr equals value.
func queryIndexOne[T any](ctx context.Context, client *dynamodb.Client, table, index, attr, value string) (*T, error) {
	out, err := client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(table),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    aws.String("#a = :v"),
		ExpressionAttributeNames:  map[string]string{"#a": attr},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": strVal(value)},
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, nil
	}
	var item T
	if err := attributevalue.UnmarshalMap(out.Items[0], &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// byPartition builds a query over every item sharing one partition key.
func byPartition(table, pkName, pkValue string) *dynamodb.QueryInput {
	return &dynamodb.QueryInput{
		TableName:                 aws.String(table),
		KeyConditionExpression:    aws.String("#pk = :pk"),
		ExpressionAttributeNames:  map[string]string{"#pk": pkName},
		ExpressionAttributeValues: map[string]types.AttributeValue{":pk": strVal(pkValue)},
	}
}

// byStatus builds a query over the status-index GSI.
func byStatus(table, status string) *dynamodb.QueryInput {
	return &dynamodb.QueryInput{
		TableName:                 aws.String(table),
		IndexName:                 aws.String(indexStatus),
		KeyConditionExpression:    aws.String("#s = :s"),
		ExpressionAttributeNames:  map[string]string{"#s": fieldStatus},
		ExpressionAttributeValues: map[string]types.AttributeValue{":s": strVal(status)},
	}
}

// timeLayout is fixed width so string order of stored timestamps matches
// time order in key and condition expressions.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// timeFields are the top-level attributes rewritten to timeLayout on write.
var timeFields = []string{
	fieldCreatedAt, fieldUpdatedAt, fieldOutreachClaimedAt, fieldActedAt,
	fieldRespondedAt, fieldVerifiedAt, fieldExpiresAt, fieldEndedAt, fieldSentAt,
}

func ts(t time.Time) types.AttributeValue {
	return strVal(t.UTC().Format(timeLayout))
}

// marshalItem marshals in and normalizes its timestamps to timeLayout.
func marshalItem(in interface{}) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMap(in)
	if err != nil {
		return nil, err
	}
	for _, f := range timeFields {
		s, ok := item[f].(*types.AttributeValueMemberS)
		if !ok {
			continue
		}
		if t, err := time.Parse(time.RFC3339Nano, s.Value); err == nil {
			item[f] = ts(t)
		}
	}
	return item, nil
}
