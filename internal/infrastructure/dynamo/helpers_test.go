package dynamo

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-employment-verify/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildUpdateExpr_SingleField(t *testing.T) {
	ue, err := buildUpdateExpr(map[string]interface{}{"status": "APPROVED"})
	require.NoError(t, err)
	assert.Equal(t, "SET #f0 = :v0", ue.Expr)
	assert.Equal(t, map[string]string{"#f0": "status"}, ue.Names)
	_, ok := ue.Values[":v0"]
	assert.True(t, ok)
}

func TestBuildUpdateExpr_MultipleFields_Deterministic(t *testing.T) {
	updates := map[string]interface{}{
		"status":       "YES",
		"responded_at": "2026-01-01T00:00:00Z",
		"acted_at":     "2026-01-01T00:00:00Z",
	}
	ue1, err := buildUpdateExpr(updates)
	require.NoError(t, err)
	ue2, err := buildUpdateExpr(updates)
	require.NoError(t, err)

	assert.Equal(t, ue1.Expr, ue2.Expr)
	assert.Equal(t, "acted_at", ue1.Names["#f0"])
	assert.Equal(t, "responded_at", ue1.Names["#f1"])
	assert.Equal(t, "status", ue1.Names["#f2"])
	assert.Equal(t, "SET #f0 = :v0, #f1 = :v1, #f2 = :v2", ue1.Expr)
}

func TestBuildUpdateExpr_ValuesMarshalledCorrectly(t *testing.T) {
	ue, err := buildUpdateExpr(map[string]interface{}{"attestation_created": true})
	require.NoError(t, err)
	av, ok := ue.Values[":v0"]
	require.True(t, ok)
	boolVal, isBool := av.(*types.AttributeValueMemberBOOL)
	require.True(t, isBool)
	assert.True(t, boolVal.Value)
}

func TestBuildUpdateExpr_EmptyMap_ReturnsError(t *testing.T) {
	_, err := buildUpdateExpr(map[string]interface{}{})
	assert.ErrorContains(t, err, "no fields to update")
}

func TestConditionFailed(t *testing.T) {
	wrapped := fmt.Errorf("put: %w", &types.ConditionalCheckFailedException{})
	assert.True(t, conditionFailed(wrapped))
	assert.False(t, conditionFailed(errors.New("throttled")))
}

func TestCompositeKey(t *testing.T) {
	k := compositeKey("verification_id", "v1", "call_id", "c1")
	assert.Equal(t, strVal("v1"), k["verification_id"])
	assert.Equal(t, strVal("c1"), k["call_id"])
}

func sval(t *testing.T, av types.AttributeValue) string {
	t.Helper()
	s, ok := av.(*types.AttributeValueMemberS)
	require.True(t, ok)
	return s.Value
}

func TestTS_StringOrderMatchesTimeOrder(t *testing.T) {
	monthStart := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	later := monthStart.Add(500 * time.Millisecond)
	before := monthStart.Add(-time.Millisecond)

	a, b, c := sval(t, ts(before)), sval(t, ts(monthStart)), sval(t, ts(later))
	assert.Len(t, a, len(b))
	assert.Len(t, c, len(b))
	assert.Less(t, a, b)
	assert.Less(t, b, c)
}

func TestMarshalItem_NormalizesCreatedAt(t *testing.T) {
	monthStart := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	v := &domain.Verification{
		VerificationID: "v1",
		RequestedBy:    "u1",
		CreatedAt:      monthStart.Add(250 * time.Millisecond),
		UpdatedAt:      monthStart.Add(250 * time.Millisecond),
	}
	item, err := marshalItem(v)
	require.NoError(t, err)

	created := sval(t, item[fieldCreatedAt])
	assert.GreaterOrEqual(t, created, sval(t, ts(monthStart)), "created within the first second still counts")

	var back domain.Verification
	require.NoError(t, attributevalue.UnmarshalMap(item, &back))
	assert.True(t, back.CreatedAt.Equal(v.CreatedAt))
}

func TestBuildUpdateExpr_TimesUseFixedLayout(t *testing.T) {
	at := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	ue, err := buildUpdateExpr(map[string]interface{}{fieldActedAt: at})
	require.NoError(t, err)
	assert.Equal(t, "2026-10-01T00:00:00.000000000Z", sval(t, ue.Values[":v0"]))
}
