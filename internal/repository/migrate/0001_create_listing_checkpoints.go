package migrate

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	ListingCheckpointTableName = "listing_checkpoints"
	ListingCheckpointVersion   = "20250818000000_listing_checkpoints_table"
)

type CreateListingCheckpointTable struct{}

func (m *CreateListingCheckpointTable) Version() string {
	return ListingCheckpointVersion
}

func (m *CreateListingCheckpointTable) TableName() string {
	return ListingCheckpointTableName
}

func (m *CreateListingCheckpointTable) Up(ctx context.Context, client *dynamodb.Client) error {
	input := &dynamodb.CreateTableInput{
		AttributeDefinitions: []types.AttributeDefinition{
			{
				AttributeName: aws.String("bucket_prefix"),
				AttributeType: types.ScalarAttributeTypeS,
			},
			{
				AttributeName: aws.String("list_id"),
				AttributeType: types.ScalarAttributeTypeS,
			},
		},
		KeySchema: []types.KeySchemaElement{
			{
				AttributeName: aws.String("bucket_prefix"),
				KeyType:       types.KeyTypeHash, // Partition Key
			},
			{
				AttributeName: aws.String("list_id"),
				KeyType:       types.KeyTypeRange, // Sort Key
			},
		},
		TableName:   aws.String(ListingCheckpointTableName),
		BillingMode: types.BillingModePayPerRequest, // On-demand billing for variable workloads
		Tags: []types.Tag{
			{
				Key:   aws.String("Purpose"),
				Value: aws.String("ListingCheckpoints"),
			},
			{
				Key:   aws.String("Environment"),
				Value: aws.String("Development"),
			},
		},
	}

	_, err := client.CreateTable(ctx, input)
	if err != nil {
		return err
	}

	// Wait for table to become active
	waiter := dynamodb.NewTableExistsWaiter(client)
	return waiter.Wait(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(ListingCheckpointTableName),
	}, 5*time.Minute)
}

func (m *CreateListingCheckpointTable) Down(ctx context.Context, client *dynamodb.Client) error {
	input := &dynamodb.DeleteTableInput{
		TableName: aws.String(ListingCheckpointTableName),
	}

	_, err := client.DeleteTable(ctx, input)
	return err
}
