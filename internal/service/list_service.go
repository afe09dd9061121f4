package service

import (
	"bytes"
	"context"
	"io"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/zzenonn/zmeta/internal/domain"
	"github.com/zzenonn/zmeta/internal/filemeta"
	"github.com/zzenonn/zmeta/internal/lock"
	"github.com/zzenonn/zmeta/internal/metacache"
	"github.com/zzenonn/zmeta/internal/perf"
	"github.com/zzenonn/zmeta/internal/scanner"
)

// MetadataDisk is one source of per-disk observation streams.
type MetadataDisk interface {
	Name() string
	ListStream(ctx context.Context, bucket, prefix string) (*metacache.Reader, error)
}

// CheckpointStore persists listing progress markers.
type CheckpointStore interface {
	SaveCheckpoint(ctx context.Context, cp domain.ListingCheckpoint) (domain.ListingCheckpoint, error)
	GetCheckpoint(ctx context.Context, bucketPrefix, listID string) (domain.ListingCheckpoint, error)
	DeleteCheckpoint(ctx context.Context, bucketPrefix, listID string) error
}

// ListService runs listing passes: it merges per-disk streams under quorum
// rules into a single resolved stream while respecting scan admission and
// namespace locking, checkpointing progress so interrupted passes resume.
type ListService struct {
	disks       []MetadataDisk
	sched       *scanner.Scheduler
	locks       *lock.Manager
	checkpoints CheckpointStore
	monitor     *perf.Monitor

	dirQuorum int
	objQuorum int
	strict    bool
}

// NewListService creates a ListService over the given metadata disks. The
// monitor is optional; when set, merged output is accounted as write load.
func NewListService(disks []MetadataDisk, sched *scanner.Scheduler, locks *lock.Manager, checkpoints CheckpointStore, monitor *perf.Monitor, dirQuorum, objQuorum int, strict bool) *ListService {
	return &ListService{
		disks:       disks,
		sched:       sched,
		locks:       locks,
		checkpoints: checkpoints,
		monitor:     monitor,
		dirQuorum:   dirQuorum,
		objQuorum:   objQuorum,
		strict:      strict,
	}
}

func checkpointKey(bucket, prefix string) string {
	return bucket + "/" + prefix
}

// ListPath merges the disks' streams for bucket/prefix into out. When the
// scheduler declines, ErrDoneForNow is returned and the caller retries later.
// A "running" checkpoint for the same listID resumes past its last name.
func (s *ListService) ListPath(ctx context.Context, bucket, prefix, listID string, out io.Writer) error {
	if s.sched != nil && !s.sched.ShouldScan() {
		return filemeta.ErrDoneForNow
	}

	key := checkpointKey(bucket, prefix)

	// Listing yields to client traffic on contended prefixes.
	release, err := s.locks.Acquire(ctx, key, lock.PriorityLow)
	if err != nil {
		return err
	}
	defer release()

	if s.sched != nil {
		s.sched.RecordScanStart()
	}

	marker := ""
	if cp, err := s.checkpoints.GetCheckpoint(ctx, key, listID); err == nil && cp.Status == domain.CheckpointRunning {
		marker = cp.LastName
		log.Infof("list %s: resuming %s past %q", key, listID, marker)
	}

	readers := make([]*metacache.Reader, len(s.disks))
	for i, disk := range s.disks {
		r, err := disk.ListStream(ctx, bucket, prefix)
		if err != nil {
			log.Warnf("list %s: disk %s unavailable: %v", key, disk.Name(), err)
			continue
		}
		readers[i] = r
	}

	writer := metacache.NewWriter(out)
	merged := 0
	opts := MergeOptions{
		Resolve: metacache.ResolveParams{
			DirQuorum: s.dirQuorum,
			ObjQuorum: s.objQuorum,
			Bucket:    bucket,
			Strict:    s.strict,
		},
		ForwardPast: marker,
		OnMerged: func(e *metacache.Entry) {
			merged++
			if s.monitor != nil {
				s.monitor.RecordWrite(len(e.Metadata))
			}
			if s.sched == nil || merged%s.sched.BatchSize() != 0 {
				return
			}
			s.saveCheckpoint(ctx, key, listID, e.Name, domain.CheckpointRunning)
			s.sched.AdaptiveAdjust()
			time.Sleep(s.sched.BatchInterval())
		},
	}

	if err := MergeStreams(readers, writer, opts); err != nil {
		s.saveCheckpoint(ctx, key, listID, "", domain.CheckpointFailed)
		return err
	}

	s.saveCheckpoint(ctx, key, listID, "", domain.CheckpointComplete)
	log.Debugf("list %s: pass %s merged %d entries", key, listID, merged)
	return nil
}

// ListAndStore runs a listing pass and persists the resolved stream as an
// erasure-coded cache block keyed by the pass id, so later listings of the
// same path serve from the block instead of rescanning.
func (s *ListService) ListAndStore(ctx context.Context, bucket, prefix, listID string, blocks *BlockService) (domain.CacheBlockMeta, error) {
	var buf bytes.Buffer
	if err := s.ListPath(ctx, bucket, prefix, listID, &buf); err != nil {
		return domain.CacheBlockMeta{}, err
	}
	blockID := listID + "/" + checkpointKey(bucket, prefix)
	return blocks.WriteBlock(ctx, bucket, blockID, listID, buf.Bytes())
}

func (s *ListService) saveCheckpoint(ctx context.Context, key, listID, lastName, status string) {
	cp := domain.ListingCheckpoint{
		BucketPrefix: key,
		ListID:       listID,
		LastName:     lastName,
		Status:       status,
		UpdatedAt:    time.Now().UnixNano(),
	}
	if _, err := s.checkpoints.SaveCheckpoint(ctx, cp); err != nil {
		log.Warnf("list %s: checkpoint save failed: %v", key, err)
	}
}
