package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/zzenonn/zmeta/internal/domain"
)

// ErrBlockMetaNotFound is returned when no block metadata exists for the key.
var ErrBlockMetaNotFound = errors.New("cache block metadata not found")

// BlockMetaRepository manages DynamoDB interactions for cache block metadata.
type BlockMetaRepository struct {
	client    *dynamodb.Client
	tableName string
}

// NewBlockMetaRepository initializes a new BlockMetaRepository.
func NewBlockMetaRepository(client *dynamodb.Client, tableName string) BlockMetaRepository {
	return BlockMetaRepository{
		client:    client,
		tableName: tableName,
	}
}

// PutBlockMeta stores cache block metadata, replacing any previous item.
func (repo *BlockMetaRepository) PutBlockMeta(ctx context.Context, meta domain.CacheBlockMeta) (domain.CacheBlockMeta, error) {
	item, err := attributevalue.MarshalMap(meta)
	if err != nil {
		return domain.CacheBlockMeta{}, fmt.Errorf("failed to marshal block metadata: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(repo.tableName),
		Item:      item,
	}

	if _, err := repo.client.PutItem(ctx, input); err != nil {
		return domain.CacheBlockMeta{}, fmt.Errorf("failed to put block metadata: %w", err)
	}

	return meta, nil
}

// GetBlockMeta retrieves block metadata by bucket and block id.
func (repo *BlockMetaRepository) GetBlockMeta(ctx context.Context, bucket, blockID string) (domain.CacheBlockMeta, error) {
	input := &dynamodb.GetItemInput{
		TableName: aws.String(repo.tableName),
		Key: map[string]types.AttributeValue{
			"bucket":   &types.AttributeValueMemberS{Value: bucket},
			"block_id": &types.AttributeValueMemberS{Value: blockID},
		},
	}

	result, err := repo.client.GetItem(ctx, input)
	if err != nil {
		return domain.CacheBlockMeta{}, fmt.Errorf("failed to get block metadata: %w", err)
	}

	if result.Item == nil {
		return domain.CacheBlockMeta{}, ErrBlockMetaNotFound
	}

	var meta domain.CacheBlockMeta
	if err := attributevalue.UnmarshalMap(result.Item, &meta); err != nil {
		return domain.CacheBlockMeta{}, fmt.Errorf("failed to unmarshal block metadata: %w", err)
	}

	return meta, nil
}

// ListBlocksByBucket retrieves the metadata of every cached block in a bucket.
func (repo *BlockMetaRepository) ListBlocksByBucket(ctx context.Context, bucket string) ([]domain.CacheBlockMeta, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(repo.tableName),
		KeyConditionExpression: aws.String("#b = :b"),
		ExpressionAttributeNames: map[string]string{
			"#b": "bucket",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":b": &types.AttributeValueMemberS{Value: bucket},
		},
	}

	result, err := repo.client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to query block metadata: %w", err)
	}

	var metas []domain.CacheBlockMeta
	for _, item := range result.Items {
		var meta domain.CacheBlockMeta
		if err := attributevalue.UnmarshalMap(item, &meta); err != nil {
			return nil, fmt.Errorf("failed to unmarshal block metadata: %w", err)
		}
		metas = append(metas, meta)
	}

	return metas, nil
}

// DeleteBlockMeta removes block metadata by bucket and block id.
func (repo *BlockMetaRepository) DeleteBlockMeta(ctx context.Context, bucket, blockID string) error {
	input := &dynamodb.DeleteItemInput{
		TableName: aws.String(repo.tableName),
		Key: map[string]types.AttributeValue{
			"bucket":   &types.AttributeValueMemberS{Value: bucket},
			"block_id": &types.AttributeValueMemberS{Value: blockID},
		},
	}

	if _, err := repo.client.DeleteItem(ctx, input); err != nil {
		return fmt.Errorf("failed to delete block metadata: %w", err)
	}
	return nil
}
