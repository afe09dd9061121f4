package service

import (
	"bytes"
	"context"
	"fmt"
	"hash/crc64"
	"io"
	"sync"

	"github.com/klauspost/reedsolomon"
	log "github.com/sirupsen/logrus"

	"github.com/zzenonn/zmeta/internal/domain"
	"github.com/zzenonn/zmeta/internal/placement"
	"github.com/zzenonn/zmeta/internal/repository/objectstore"
)

var crcTable = crc64.MakeTable(crc64.ISO)

func shardChecksum(shard []byte) string {
	return fmt.Sprintf("%016x", crc64.Checksum(shard, crcTable))
}

// ShardBlock splits a serialized cache block into erasure-coded shards and
// returns the block metadata skeleton. Storage locations are filled in by the
// caller once shards are placed.
func ShardBlock(data []byte, dataShards, parityShards int) (domain.CacheBlockMeta, [][]byte, error) {
	enc, err := reedsolomon.New(dataShards, parityShards)
	if err != nil {
		return domain.CacheBlockMeta{}, nil, err
	}

	shards, err := enc.Split(data)
	if err != nil {
		return domain.CacheBlockMeta{}, nil, err
	}

	if err := enc.Encode(shards); err != nil {
		return domain.CacheBlockMeta{}, nil, err
	}

	var locations []domain.ShardStorage
	for _, shard := range shards {
		locations = append(locations, domain.ShardStorage{
			Hash: shardChecksum(shard),
		})
	}

	meta := domain.CacheBlockMeta{
		OriginalSize: int64(len(data)),
		ShardSize:    int64(len(shards[0])),
		ParityShards: parityShards,
		Shards:       locations,
	}

	return meta, shards, nil
}

// ReconstructBlock rebuilds the original block bytes from whatever shards
// survive. Missing shards are nil; reconstruction succeeds while losses stay
// within parity.
func ReconstructBlock(shards [][]byte, meta domain.CacheBlockMeta) ([]byte, error) {
	totalShards := len(meta.Shards)
	dataShards := totalShards - meta.ParityShards

	enc, err := reedsolomon.New(dataShards, meta.ParityShards)
	if err != nil {
		return nil, err
	}

	reconstructShards := make([][]byte, totalShards)
	copy(reconstructShards, shards)

	if err := enc.Reconstruct(reconstructShards); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := enc.Join(&buf, reconstructShards, int(meta.OriginalSize)); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// BlockMetaStore persists cache block metadata.
type BlockMetaStore interface {
	PutBlockMeta(ctx context.Context, meta domain.CacheBlockMeta) (domain.CacheBlockMeta, error)
	GetBlockMeta(ctx context.Context, bucket, blockID string) (domain.CacheBlockMeta, error)
	DeleteBlockMeta(ctx context.Context, bucket, blockID string) error
}

// BlockService stores serialized cache blocks as erasure-coded shards spread
// across the placement pool.
type BlockService struct {
	placer       placement.Placer
	metaStore    BlockMetaStore
	dataShards   int
	parityShards int
	quiet        bool
}

// NewBlockService creates a BlockService with the given coding geometry.
func NewBlockService(placer placement.Placer, metaStore BlockMetaStore, dataShards, parityShards int, quiet bool) *BlockService {
	return &BlockService{
		placer:       placer,
		metaStore:    metaStore,
		dataShards:   dataShards,
		parityShards: parityShards,
		quiet:        quiet,
	}
}

func shardKey(blockID string, index int) string {
	return fmt.Sprintf("%s.shard_%d", blockID, index)
}

// WriteBlock shards the block, uploads every shard in parallel, and records
// the block metadata with per-shard locations.
func (s *BlockService) WriteBlock(ctx context.Context, bucket, blockID, listID string, data []byte) (domain.CacheBlockMeta, error) {
	meta, shards, err := ShardBlock(data, s.dataShards, s.parityShards)
	if err != nil {
		return domain.CacheBlockMeta{}, err
	}
	meta.Bucket = bucket
	meta.BlockID = blockID
	meta.ListID = listID

	var wg sync.WaitGroup
	var mu sync.Mutex
	errorCh := make(chan error, len(shards))

	for i, shard := range shards {
		storeBucket, repo, err := s.placer.Place(i)
		if err != nil {
			return domain.CacheBlockMeta{}, err
		}

		wg.Add(1)
		go func(i int, shard []byte, storeBucket string, repo objectstore.ObjectRepository) {
			defer wg.Done()
			key := shardKey(blockID, i)
			if _, err := repo.Upload(ctx, key, bytes.NewReader(shard), s.quiet); err != nil {
				errorCh <- fmt.Errorf("shard %d: %w", i, err)
				return
			}
			mu.Lock()
			meta.Shards[i].BucketName = storeBucket
			meta.Shards[i].Key = key
			meta.Shards[i].StorageType = repo.GetStorageType()
			mu.Unlock()
		}(i, shard, storeBucket, repo)
	}

	wg.Wait()
	close(errorCh)

	if err := <-errorCh; err != nil {
		return domain.CacheBlockMeta{}, err
	}

	return s.metaStore.PutBlockMeta(ctx, meta)
}

// ReadBlock fetches the surviving shards of a block, verifies their
// checksums, and reconstructs the original bytes. Up to parity shards may be
// missing or corrupt.
func (s *BlockService) ReadBlock(ctx context.Context, bucket, blockID string) ([]byte, error) {
	meta, err := s.metaStore.GetBlockMeta(ctx, bucket, blockID)
	if err != nil {
		return nil, err
	}

	shards := make([][]byte, len(meta.Shards))
	for i, loc := range meta.Shards {
		repo, err := s.placer.GetRepositoryForBucket(loc.BucketName)
		if err != nil {
			log.Warnf("block %s: shard %d bucket unavailable: %v", blockID, i, err)
			continue
		}
		rc, err := repo.Download(ctx, loc.Key, s.quiet)
		if err != nil {
			log.Warnf("block %s: shard %d download failed: %v", blockID, i, err)
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			log.Warnf("block %s: shard %d read failed: %v", blockID, i, err)
			continue
		}

		if shardChecksum(data) != loc.Hash {
			log.Warnf("block %s: shard %d checksum mismatch, discarding", blockID, i)
			continue
		}
		shards[i] = data
	}

	return ReconstructBlock(shards, meta)
}

// DeleteBlock removes a block's shards and metadata.
func (s *BlockService) DeleteBlock(ctx context.Context, bucket, blockID string) error {
	meta, err := s.metaStore.GetBlockMeta(ctx, bucket, blockID)
	if err != nil {
		return err
	}

	for i, loc := range meta.Shards {
		repo, err := s.placer.GetRepositoryForBucket(loc.BucketName)
		if err != nil {
			log.Warnf("block %s: shard %d bucket unavailable: %v", blockID, i, err)
			continue
		}
		if err := repo.Delete(ctx, loc.Key); err != nil {
			log.Warnf("block %s: failed to delete shard %d: %v", blockID, i, err)
		}
	}

	return s.metaStore.DeleteBlockMeta(ctx, bucket, blockID)
}

// PurgeListing removes every shard written under a listing's key prefix from
// all registered buckets. Used when a listing pass is abandoned.
func (s *BlockService) PurgeListing(ctx context.Context, prefix string) error {
	for _, name := range s.placer.ListBuckets() {
		repo, err := s.placer.GetRepositoryForBucket(name)
		if err != nil {
			return err
		}
		if err := repo.DeletePrefix(ctx, prefix); err != nil {
			return fmt.Errorf("bucket %s: %w", name, err)
		}
	}
	return nil
}
