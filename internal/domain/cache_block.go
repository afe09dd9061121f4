package domain

// ShardStorage records where one erasure-coded shard of a cache block lives.
type ShardStorage struct {
	Hash        string `json:"hash" dynamodbav:"hash"` // CRC64 of the shard contents
	StorageType string `json:"storage_type" dynamodbav:"storage_type"`
	BucketName  string `json:"bucket_name" dynamodbav:"bucket_name"`
	Key         string `json:"key" dynamodbav:"key"`
}

// CacheBlockMeta - representation of an erasure coded listing-cache block's metadata
type CacheBlockMeta struct {
	Bucket       string         `json:"bucket" dynamodbav:"bucket"`     // Cache scope - Partition Key
	BlockID      string         `json:"block_id" dynamodbav:"block_id"` // Listing + block sequence - Sort Key
	ListID       string         `json:"list_id" dynamodbav:"list_id"`
	OriginalSize int64          `json:"original_size" dynamodbav:"original_size"`
	ShardSize    int64          `json:"shard_size" dynamodbav:"shard_size"`
	ParityShards int            `json:"parity_shards" dynamodbav:"parity_shards"`
	Shards       []ShardStorage `json:"shards" dynamodbav:"shards"` // Ordered by shard index
}
