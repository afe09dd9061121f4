package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/zzenonn/zmeta/internal/domain"
	"github.com/zzenonn/zmeta/internal/placement"
)

// memRepository is an in-memory ObjectRepository for exercising the block
// service without real storage.
type memRepository struct {
	bucket string

	mu      sync.Mutex
	objects map[string][]byte

	failUpload bool
}

func newMemRepository(bucket string) *memRepository {
	return &memRepository{bucket: bucket, objects: make(map[string][]byte)}
}

func (m *memRepository) Upload(ctx context.Context, key string, r io.Reader, quiet bool) (string, error) {
	if m.failUpload {
		return "", errors.New("upload failed")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	m.objects[key] = data
	m.mu.Unlock()
	return key, nil
}

func (m *memRepository) Download(ctx context.Context, key string, quiet bool) (io.ReadCloser, error) {
	m.mu.Lock()
	data, ok := m.objects[key]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("key not found: %s", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memRepository) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

func (m *memRepository) DeletePrefix(ctx context.Context, prefix string) error {
	m.mu.Lock()
	for k := range m.objects {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(m.objects, k)
		}
	}
	m.mu.Unlock()
	return nil
}

func (m *memRepository) GetBucketName() string { return m.bucket }

func (m *memRepository) GetStorageType() string { return "mem" }

// mockBlockMetaStore keeps block metadata in a map.
type mockBlockMetaStore struct {
	mu    sync.Mutex
	metas map[string]domain.CacheBlockMeta
}

func newMockBlockMetaStore() *mockBlockMetaStore {
	return &mockBlockMetaStore{metas: make(map[string]domain.CacheBlockMeta)}
}

func (m *mockBlockMetaStore) key(bucket, blockID string) string { return bucket + "/" + blockID }

func (m *mockBlockMetaStore) PutBlockMeta(ctx context.Context, meta domain.CacheBlockMeta) (domain.CacheBlockMeta, error) {
	m.mu.Lock()
	m.metas[m.key(meta.Bucket, meta.BlockID)] = meta
	m.mu.Unlock()
	return meta, nil
}

func (m *mockBlockMetaStore) GetBlockMeta(ctx context.Context, bucket, blockID string) (domain.CacheBlockMeta, error) {
	m.mu.Lock()
	meta, ok := m.metas[m.key(bucket, blockID)]
	m.mu.Unlock()
	if !ok {
		return domain.CacheBlockMeta{}, errors.New("block meta not found")
	}
	return meta, nil
}

func (m *mockBlockMetaStore) DeleteBlockMeta(ctx context.Context, bucket, blockID string) error {
	m.mu.Lock()
	delete(m.metas, m.key(bucket, blockID))
	m.mu.Unlock()
	return nil
}

func testPool(t *testing.T, repos ...*memRepository) *placement.RoundRobinPlacer {
	t.Helper()
	p := placement.NewRoundRobinPlacer()
	for _, r := range repos {
		if err := p.RegisterBucket(r.bucket, r); err != nil {
			t.Fatalf("RegisterBucket(%s) error = %v", r.bucket, err)
		}
	}
	return p
}

func TestShardAndReconstruct(t *testing.T) {
	data := bytes.Repeat([]byte("listing cache block "), 100)

	meta, shards, err := ShardBlock(data, 4, 2)
	if err != nil {
		t.Fatalf("ShardBlock() error = %v", err)
	}
	if len(shards) != 6 {
		t.Fatalf("shard count = %d, want 6", len(shards))
	}
	if meta.OriginalSize != int64(len(data)) {
		t.Errorf("OriginalSize = %d, want %d", meta.OriginalSize, len(data))
	}

	tests := []struct {
		name    string
		drop    []int
		wantErr bool
	}{
		{name: "all shards present", drop: nil},
		{name: "one shard lost", drop: []int{0}},
		{name: "losses equal parity", drop: []int{1, 4}},
		{name: "losses exceed parity", drop: []int{0, 2, 5}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := make([][]byte, len(shards))
			copy(got, shards)
			for _, i := range tt.drop {
				got[i] = nil
			}

			rebuilt, err := ReconstructBlock(got, meta)
			if tt.wantErr {
				if err == nil {
					t.Fatal("ReconstructBlock() succeeded past parity")
				}
				return
			}
			if err != nil {
				t.Fatalf("ReconstructBlock() error = %v", err)
			}
			if !bytes.Equal(rebuilt, data) {
				t.Error("reconstructed block differs from original")
			}
		})
	}
}

func TestWriteReadBlockRoundTrip(t *testing.T) {
	repos := []*memRepository{
		newMemRepository("store-a"),
		newMemRepository("store-b"),
		newMemRepository("store-c"),
	}
	pool := testPool(t, repos...)
	metas := newMockBlockMetaStore()
	svc := NewBlockService(pool, metas, 4, 2, true)

	data := bytes.Repeat([]byte("merged entries "), 200)
	meta, err := svc.WriteBlock(context.Background(), "listings", "block-1", "list-abc", data)
	if err != nil {
		t.Fatalf("WriteBlock() error = %v", err)
	}
	if len(meta.Shards) != 6 {
		t.Fatalf("shard locations = %d, want 6", len(meta.Shards))
	}
	for i, loc := range meta.Shards {
		if loc.BucketName == "" || loc.Key == "" || loc.Hash == "" {
			t.Errorf("shard %d location incomplete: %+v", i, loc)
		}
	}

	got, err := svc.ReadBlock(context.Background(), "listings", "block-1")
	if err != nil {
		t.Fatalf("ReadBlock() error = %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("ReadBlock() returned different bytes")
	}
}

func TestReadBlockToleratesCorruptShard(t *testing.T) {
	repos := []*memRepository{
		newMemRepository("store-a"),
		newMemRepository("store-b"),
	}
	pool := testPool(t, repos...)
	metas := newMockBlockMetaStore()
	svc := NewBlockService(pool, metas, 4, 2, true)

	data := bytes.Repeat([]byte("resolved stream "), 300)
	meta, err := svc.WriteBlock(context.Background(), "listings", "block-2", "list-abc", data)
	if err != nil {
		t.Fatalf("WriteBlock() error = %v", err)
	}

	// Flip bytes in one stored shard; the checksum check discards it and
	// parity covers the loss.
	loc := meta.Shards[0]
	repo, err := pool.GetRepositoryForBucket(loc.BucketName)
	if err != nil {
		t.Fatalf("GetRepositoryForBucket() error = %v", err)
	}
	mem := repo.(*memRepository)
	mem.mu.Lock()
	corrupted := append([]byte(nil), mem.objects[loc.Key]...)
	corrupted[0] ^= 0xff
	mem.objects[loc.Key] = corrupted
	mem.mu.Unlock()

	got, err := svc.ReadBlock(context.Background(), "listings", "block-2")
	if err != nil {
		t.Fatalf("ReadBlock() with one corrupt shard error = %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("ReadBlock() returned different bytes after reconstruction")
	}
}

func TestWriteBlockUploadFailure(t *testing.T) {
	bad := newMemRepository("store-bad")
	bad.failUpload = true
	pool := testPool(t, newMemRepository("store-a"), bad)
	svc := NewBlockService(pool, newMockBlockMetaStore(), 4, 2, true)

	_, err := svc.WriteBlock(context.Background(), "listings", "block-3", "list-abc", []byte("payload"))
	if err == nil {
		t.Fatal("WriteBlock() with failing store did not error")
	}
}

func TestDeleteBlock(t *testing.T) {
	repo := newMemRepository("store-a")
	pool := testPool(t, repo)
	metas := newMockBlockMetaStore()
	svc := NewBlockService(pool, metas, 2, 1, true)

	if _, err := svc.WriteBlock(context.Background(), "listings", "block-4", "list-abc", []byte("short block payload")); err != nil {
		t.Fatalf("WriteBlock() error = %v", err)
	}
	if len(repo.objects) == 0 {
		t.Fatal("no shards stored")
	}

	if err := svc.DeleteBlock(context.Background(), "listings", "block-4"); err != nil {
		t.Fatalf("DeleteBlock() error = %v", err)
	}
	if len(repo.objects) != 0 {
		t.Errorf("%d shards remain after delete", len(repo.objects))
	}
	if _, err := metas.GetBlockMeta(context.Background(), "listings", "block-4"); err == nil {
		t.Error("block metadata remains after delete")
	}
}

func TestPurgeListing(t *testing.T) {
	repoA := newMemRepository("store-a")
	repoB := newMemRepository("store-b")
	pool := testPool(t, repoA, repoB)
	svc := NewBlockService(pool, newMockBlockMetaStore(), 2, 1, true)

	if _, err := svc.WriteBlock(context.Background(), "listings", "list-abc/block-0", "list-abc", []byte("first block payload")); err != nil {
		t.Fatalf("WriteBlock() error = %v", err)
	}
	if _, err := svc.WriteBlock(context.Background(), "listings", "list-xyz/block-0", "list-xyz", []byte("other block payload")); err != nil {
		t.Fatalf("WriteBlock() error = %v", err)
	}

	if err := svc.PurgeListing(context.Background(), "list-abc/"); err != nil {
		t.Fatalf("PurgeListing() error = %v", err)
	}

	for _, repo := range []*memRepository{repoA, repoB} {
		repo.mu.Lock()
		for k := range repo.objects {
			if len(k) >= 9 && k[:9] == "list-abc/" {
				t.Errorf("shard %s survived purge", k)
			}
		}
		repo.mu.Unlock()
	}
	total := len(repoA.objects) + len(repoB.objects)
	if total == 0 {
		t.Error("purge removed shards outside its prefix")
	}
}
