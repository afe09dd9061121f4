package scanner

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/zzenonn/zmeta/internal/perf"
)

// Scheduler decides whether a scan pass may start right now and adapts batch
// sizing to the observed write load. It is safe for concurrent use.
type Scheduler struct {
	cfg     Config
	monitor *perf.Monitor

	mu              sync.Mutex
	consecutiveLow  int
	consecutiveHigh int
	pausedUntil     time.Time
	lastScanStart   time.Time
	batchSize       int
}

// NewScheduler wires a scheduler to the given monitor.
func NewScheduler(cfg Config, monitor *perf.Monitor) *Scheduler {
	if cfg.BatchSize <= 0 {
		cfg = DefaultConfig()
	}
	return &Scheduler{
		cfg:       cfg,
		monitor:   monitor,
		batchSize: cfg.BatchSize,
	}
}

// ShouldScan reports whether a scan pass may start now. It tracks consecutive
// load samples: sustained high load pauses scanning for PauseDuration, and a
// paused scheduler requires several consecutive low-load samples to resume.
func (s *Scheduler) ShouldScan() bool {
	if s.cfg.Mode == ModeDisabled {
		return false
	}

	level := s.monitor.LoadLevel()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loadTooHigh(level) {
		s.consecutiveLow = 0
		s.consecutiveHigh++
		if s.consecutiveHigh >= s.cfg.HighLoadSamplesToPause {
			s.pausedUntil = time.Now().Add(s.cfg.PauseDuration)
			log.Debugf("scanner: pausing until %s, load %s", s.pausedUntil.Format(time.RFC3339), level)
		}
		return false
	}

	s.consecutiveHigh = 0
	s.consecutiveLow++

	if time.Now().Before(s.pausedUntil) {
		return false
	}
	// Coming out of a pause requires sustained calm, not a single quiet
	// sample between write bursts.
	if !s.pausedUntil.IsZero() && s.consecutiveLow < s.cfg.LowLoadSamplesToStart {
		return false
	}
	s.pausedUntil = time.Time{}
	return true
}

func (s *Scheduler) loadTooHigh(level perf.LoadLevel) bool {
	switch s.cfg.Mode {
	case ModeLowLoadOnly:
		return level > perf.LoadLow
	case ModeNormal:
		return level >= perf.LoadHigh
	case ModeAggressive:
		return level >= perf.LoadOverload
	}
	return true
}

// RecordScanStart marks the beginning of a scan pass.
func (s *Scheduler) RecordScanStart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastScanStart = time.Now()
}

// AdaptiveAdjust moves the batch size toward the load: quiet systems scan in
// larger batches, busy ones back off.
func (s *Scheduler) AdaptiveAdjust() {
	level := s.monitor.LoadLevel()

	s.mu.Lock()
	defer s.mu.Unlock()

	switch level {
	case perf.LoadIdle:
		s.batchSize *= 2
	case perf.LoadLow:
		s.batchSize += s.batchSize / 4
	case perf.LoadMedium:
		// hold
	case perf.LoadHigh:
		s.batchSize /= 2
	case perf.LoadOverload:
		s.batchSize = s.cfg.MinBatchSize
	}
	if s.batchSize < s.cfg.MinBatchSize {
		s.batchSize = s.cfg.MinBatchSize
	}
	if s.batchSize > s.cfg.MaxBatchSize {
		s.batchSize = s.cfg.MaxBatchSize
	}
}

// BatchSize returns the current adaptive batch size.
func (s *Scheduler) BatchSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batchSize
}

// BatchInterval returns the configured rest period between batches.
func (s *Scheduler) BatchInterval() time.Duration {
	return s.cfg.BatchInterval
}

// ShouldSkipRecent reports whether an entry last scanned at the given time is
// fresh enough to skip.
func (s *Scheduler) ShouldSkipRecent(lastScanned time.Time) bool {
	if lastScanned.IsZero() {
		return false
	}
	return time.Since(lastScanned) < s.cfg.SkipRecentWindow
}
