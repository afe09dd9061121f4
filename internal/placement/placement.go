// Package placement distributes erasure-coded cache-block shards across the
// registered storage backends.
//
// Listing-cache blocks are split into data and parity shards before they are
// persisted. The placer decides which bucket each shard lands in so that the
// loss of a single backend never costs more shards than parity can absorb.
// During reads the per-shard bucket recorded in the block metadata is routed
// back to the matching repository.
package placement

import (
	"github.com/zzenonn/zmeta/internal/repository/objectstore"
)

// Placer assigns cache-block shards to storage buckets.
//
// Implementations must be safe for concurrent use and deterministic: the
// same shard index maps to the same bucket for a fixed registration order,
// so reconstruction can locate shards without consulting the placer.
type Placer interface {
	// GetRepositoryForBucket returns the repository for a bucket named in
	// block metadata. Used on the read path.
	GetRepositoryForBucket(bucketName string) (objectstore.ObjectRepository, error)

	// Place selects the bucket for the shard at shardIndex.
	Place(shardIndex int) (string, objectstore.ObjectRepository, error)

	// RegisterBucket adds a storage backend. Called during startup from
	// the bucket configuration.
	RegisterBucket(bucketName string, repo objectstore.ObjectRepository) error

	// ListBuckets returns all registered bucket names.
	ListBuckets() []string
}
