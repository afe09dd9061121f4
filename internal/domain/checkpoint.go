package domain

// Checkpoint statuses as persisted.
const (
	CheckpointRunning  = "running"
	CheckpointComplete = "complete"
	CheckpointFailed   = "failed"
)

// ListingCheckpoint - durable progress marker for a resumable listing pass
type ListingCheckpoint struct {
	BucketPrefix string `json:"bucket_prefix" dynamodbav:"bucket_prefix"` // "bucket/prefix" - Partition Key
	ListID       string `json:"list_id" dynamodbav:"list_id"`             // Sort Key
	LastName     string `json:"last_name" dynamodbav:"last_name"`         // last entry flushed to the cache
	Status       string `json:"status" dynamodbav:"status"`
	UpdatedAt    int64  `json:"updated_at" dynamodbav:"updated_at"` // unix nanos
}
