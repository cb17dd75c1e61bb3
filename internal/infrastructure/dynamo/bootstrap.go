package dynamo

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-employment-verify/internal/config"
)

// Bootstrap creates all DynamoDB tables and GSIs if they don't already exist.
// Safe to call on every startup; existing tables are skipped.
func Bootstrap(ctx context.Context, client *dynamodb.Client, tables config.DynamoTables) {
	createTable(ctx, client, &dynamodb.CreateTableInput{
		TableName:   aws.String(tables.Verifications),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			attr(fieldVerificationID),
			attr(fieldStatus),
			attr(fieldRequestedBy),
			attr(fieldCreatedAt),
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(fieldVerificationID), KeyType: types.KeyTypeHash},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			gsi(indexStatusCreatedAt, fieldStatus, fieldCreatedAt),
			gsi(indexRequestedByCreatedAt, fieldRequestedBy, fieldCreatedAt),
		},
	})

	createTable(ctx, client, &dynamodb.CreateTableInput{
		TableName:   aws.String(tables.Consents),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			attr(fieldVerificationID),
			attr(fieldTokenHash),
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(fieldVerificationID), KeyType: types.KeyTypeHash},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			gsi(indexTokenHash, fieldTokenHash, ""),
		},
	})

	createTable(ctx, client, &dynamodb.CreateTableInput{
		TableName:   aws.String(tables.Calls),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			attr(fieldVerificationID),
			attr(fieldCallID),
			attr(fieldStatus),
			attr(fieldExternalCallID),
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(fieldVerificationID), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(fieldCallID), KeyType: types.KeyTypeRange},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			gsi(indexStatus, fieldStatus, ""),
			gsi(indexExternalCallID, fieldExternalCallID, ""),
		},
	})

	createTable(ctx, client, &dynamodb.CreateTableInput{
		TableName:   aws.String(tables.EmailVerifications),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			attr(fieldVerificationID),
			attr(fieldEmailVerificationID),
			attr(fieldTokenHash),
			attr(fieldStatus),
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(fieldVerificationID), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(fieldEmailVerificationID), KeyType: types.KeyTypeRange},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			gsi(indexTokenHash, fieldTokenHash, ""),
			gsi(indexStatus, fieldStatus, ""),
		},
	})

	createTable(ctx, client, &dynamodb.CreateTableInput{
		TableName:   aws.String(tables.Evidence),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			attr(fieldVerificationID),
			attr(fieldEvidenceID),
			attr(fieldTokenHash),
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(fieldVerificationID), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(fieldEvidenceID), KeyType: types.KeyTypeRange},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			gsi(indexTokenHash, fieldTokenHash, ""),
		},
	})
}

func attr(name string) types.AttributeDefinition {
	return types.AttributeDefinition{AttributeName: aws.String(name), AttributeType: types.ScalarAttributeTypeS}
}

// gsi builds a GSI descriptor. If sortKey is empty, only a hash key is added.
func gsi(indexName, hashKey, sortKey string) types.GlobalSecondaryIndex {
	ks := []types.KeySchemaElement{
		{AttributeName: aws.String(hashKey), KeyType: types.KeyTypeHash},
	}
	if sortKey != "" {
		ks = append(ks, types.KeySchemaElement{
			AttributeName: aws.String(sortKey), KeyType: types.KeyTypeRange,
		})
	}
	return types.GlobalSecondaryIndex{
		IndexName:  aws.String(indexName),
		KeySchema:  ks,
		Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
	}
}

func createTable(ctx context.Context, client *dynamodb.Client, input *dynamodb.CreateTableInput) {
	_, err := client.CreateTable(ctx, input)
	if err != nil {
		// ResourceInUseException means the table already exists.
		var riue *types.ResourceInUseException
		if !errors.As(err, &riue) {
			slog.Warn("could not create table", "table", *input.TableName, "err", err)
		}
	} else {
		slog.Info("created table", "table", *input.TableName)
	}
}
