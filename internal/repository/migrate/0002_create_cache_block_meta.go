package migrate

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	CacheBlockMetaTableName = "cache_block_meta"
	CacheBlockMetaVersion   = "20250818000001_cache_block_meta_table"
)

type CreateCacheBlockMetaTable struct{}

func (m *CreateCacheBlockMetaTable) Version() string {
	return CacheBlockMetaVersion
}

func (m *CreateCacheBlockMetaTable) TableName() string {
	return CacheBlockMetaTableName
}

func (m *CreateCacheBlockMetaTable) Up(ctx context.Context, client *dynamodb.Client) error {
	input := &dynamodb.CreateTableInput{
		AttributeDefinitions: []types.AttributeDefinition{
			{
				AttributeName: aws.String("bucket"),
				AttributeType: types.ScalarAttributeTypeS,
			},
			{
				AttributeName: aws.String("block_id"),
				AttributeType: types.ScalarAttributeTypeS,
			},
		},
		KeySchema: []types.KeySchemaElement{
			{
				AttributeName: aws.String("bucket"),
				KeyType:       types.KeyTypeHash, // Partition Key
			},
			{
				AttributeName: aws.String("block_id"),
				KeyType:       types.KeyTypeRange, // Sort Key
			},
		},
		TableName:   aws.String(CacheBlockMetaTableName),
		BillingMode: types.BillingModePayPerRequest,
		Tags: []types.Tag{
			{
				Key:   aws.String("Purpose"),
				Value: aws.String("CacheBlockMetadata"),
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

	waiter := dynamodb.NewTableExistsWaiter(client)
	return waiter.Wait(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(CacheBlockMetaTableName),
	}, 5*time.Minute)
}

func (m *CreateCacheBlockMetaTable) Down(ctx context.Context, client *dynamodb.Client) error {
	input := &dynamodb.DeleteTableInput{
		TableName: aws.String(CacheBlockMetaTableName),
	}

	_, err := client.DeleteTable(ctx, input)
	return err
}
