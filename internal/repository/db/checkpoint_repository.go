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

// ErrCheckpointNotFound is returned when no checkpoint exists for the key.
var ErrCheckpointNotFound = errors.New("checkpoint not found")

// CheckpointRepository manages DynamoDB interactions for listing checkpoints.
type CheckpointRepository struct {
	client    *dynamodb.Client
	tableName string
}

// NewCheckpointRepository initializes a new CheckpointRepository.
func NewCheckpointRepository(client *dynamodb.Client, tableName string) CheckpointRepository {
	return CheckpointRepository{
		client:    client,
		tableName: tableName,
	}
}

// SaveCheckpoint stores or replaces a listing checkpoint.
func (repo *CheckpointRepository) SaveCheckpoint(ctx context.Context, cp domain.ListingCheckpoint) (domain.ListingCheckpoint, error) {
	item, err := attributevalue.MarshalMap(cp)
	if err != nil {
		return domain.ListingCheckpoint{}, fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(repo.tableName),
		Item:      item,
	}

	if _, err := repo.client.PutItem(ctx, input); err != nil {
		return domain.ListingCheckpoint{}, fmt.Errorf("failed to save checkpoint: %w", err)
	}

	return cp, nil
}

// GetCheckpoint retrieves one checkpoint by bucket/prefix key and list id.
func (repo *CheckpointRepository) GetCheckpoint(ctx context.Context, bucketPrefix, listID string) (domain.ListingCheckpoint, error) {
	input := &dynamodb.GetItemInput{
		TableName: aws.String(repo.tableName),
		Key: map[string]types.AttributeValue{
			"bucket_prefix": &types.AttributeValueMemberS{Value: bucketPrefix},
			"list_id":       &types.AttributeValueMemberS{Value: listID},
		},
	}

	result, err := repo.client.GetItem(ctx, input)
	if err != nil {
		return domain.ListingCheckpoint{}, fmt.Errorf("failed to get checkpoint: %w", err)
	}

	if result.Item == nil {
		return domain.ListingCheckpoint{}, ErrCheckpointNotFound
	}

	var cp domain.ListingCheckpoint
	if err := attributevalue.UnmarshalMap(result.Item, &cp); err != nil {
		return domain.ListingCheckpoint{}, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}

	return cp, nil
}

// ListCheckpoints retrieves every checkpoint recorded for a bucket/prefix key,
// most commonly to find a resumable listing pass.
func (repo *CheckpointRepository) ListCheckpoints(ctx context.Context, bucketPrefix string) ([]domain.ListingCheckpoint, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(repo.tableName),
		KeyConditionExpression: aws.String("#bp = :bp"),
		ExpressionAttributeNames: map[string]string{
			"#bp": "bucket_prefix",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":bp": &types.AttributeValueMemberS{Value: bucketPrefix},
		},
	}

	result, err := repo.client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to query checkpoints: %w", err)
	}

	var checkpoints []domain.ListingCheckpoint
	for _, item := range result.Items {
		var cp domain.ListingCheckpoint
		if err := attributevalue.UnmarshalMap(item, &cp); err != nil {
			return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
		}
		checkpoints = append(checkpoints, cp)
	}

	return checkpoints, nil
}

// DeleteCheckpoint removes one checkpoint.
func (repo *CheckpointRepository) DeleteCheckpoint(ctx context.Context, bucketPrefix, listID string) error {
	input := &dynamodb.DeleteItemInput{
		TableName: aws.String(repo.tableName),
		Key: map[string]types.AttributeValue{
			"bucket_prefix": &types.AttributeValueMemberS{Value: bucketPrefix},
			"list_id":       &types.AttributeValueMemberS{Value: listID},
		},
	}

	if _, err := repo.client.DeleteItem(ctx, input); err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}
