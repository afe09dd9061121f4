// Package lock implements a process-local namespace lock manager with
// priority-aware admission. Scans take locks at low priority so client
// traffic always wins contended keys.
package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Priority orders competing lock requests. Higher priorities tolerate longer
// waits; low priority fails fast on hot keys.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	}
	return "unknown"
}

// timeoutFactor scales the base timeout per priority.
func (p Priority) timeoutFactor() float64 {
	switch p {
	case PriorityLow:
		return 0.5
	case PriorityHigh:
		return 2
	case PriorityCritical:
		return 4
	}
	return 1
}

// KeyStats summarizes contention on one key.
type KeyStats struct {
	TotalAcquires      uint64
	SuccessfulAcquires uint64
	Timeouts           uint64
	AvgWait            time.Duration
	MaxWait            time.Duration

	totalWait   time.Duration
	windowStart time.Time
	windowCount uint64
}

// hot reports whether the key has seen more than 10 acquisitions per second
// over the current window.
func (s *KeyStats) hot(now time.Time) bool {
	elapsed := now.Sub(s.windowStart)
	if elapsed < time.Second {
		return s.windowCount > 10
	}
	rate := float64(s.windowCount) / elapsed.Seconds()
	return rate > 10
}

func (s *KeyStats) observe(now time.Time) {
	if now.Sub(s.windowStart) > 10*time.Second {
		s.windowStart = now
		s.windowCount = 0
	}
	s.windowCount++
	s.TotalAcquires++
}

// Manager hands out per-key mutexes with a global concurrency cap.
type Manager struct {
	baseTimeout time.Duration
	sem         chan struct{}

	mu    sync.Mutex
	locks map[string]*keyLock
	stats map[string]*KeyStats
}

type keyLock struct {
	ch   chan struct{} // buffered size 1, holds the lock token
	refs int
}

// NewManager builds a manager with the given base timeout and maximum number
// of concurrently held locks.
func NewManager(baseTimeout time.Duration, maxConcurrent int) *Manager {
	if baseTimeout <= 0 {
		baseTimeout = 5 * time.Second
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 64
	}
	return &Manager{
		baseTimeout: baseTimeout,
		sem:         make(chan struct{}, maxConcurrent),
		locks:       make(map[string]*keyLock),
		stats:       make(map[string]*KeyStats),
	}
}

// Acquire takes the lock for key at the given priority. The returned release
// function must be called exactly once. Low-priority requests fail immediately
// on keys under heavy contention.
func (m *Manager) Acquire(ctx context.Context, key string, prio Priority) (func(), error) {
	now := time.Now()

	m.mu.Lock()
	st, ok := m.stats[key]
	if !ok {
		st = &KeyStats{windowStart: now}
		m.stats[key] = st
	}
	st.observe(now)

	if prio == PriorityLow && st.hot(now) {
		m.mu.Unlock()
		log.Debugf("lock: fast-fail low priority on hot key %q", key)
		return nil, fmt.Errorf("lock: key %q is hot, low priority request rejected", key)
	}

	kl, ok := m.locks[key]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		kl.ch <- struct{}{}
		m.locks[key] = kl
	}
	kl.refs++
	m.mu.Unlock()

	timeout := time.Duration(float64(m.baseTimeout) * prio.timeoutFactor())
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	// Global concurrency cap first, then the key token.
	select {
	case m.sem <- struct{}{}:
	case <-timer.C:
		m.recordTimeout(key, kl)
		return nil, fmt.Errorf("lock: timed out acquiring slot for %q after %s", key, timeout)
	case <-ctx.Done():
		m.release(key, kl)
		return nil, ctx.Err()
	}

	select {
	case <-kl.ch:
	case <-timer.C:
		<-m.sem
		m.recordTimeout(key, kl)
		return nil, fmt.Errorf("lock: timed out acquiring %q after %s", key, timeout)
	case <-ctx.Done():
		<-m.sem
		m.release(key, kl)
		return nil, ctx.Err()
	}

	wait := time.Since(now)
	m.recordSuccess(key, wait)

	var once sync.Once
	return func() {
		once.Do(func() {
			kl.ch <- struct{}{}
			<-m.sem
			m.release(key, kl)
		})
	}, nil
}

func (m *Manager) recordSuccess(key string, wait time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.stats[key]
	st.SuccessfulAcquires++
	st.totalWait += wait
	st.AvgWait = st.totalWait / time.Duration(st.SuccessfulAcquires)
	if wait > st.MaxWait {
		st.MaxWait = wait
	}
}

func (m *Manager) recordTimeout(key string, kl *keyLock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats[key].Timeouts++
	kl.refs--
	if kl.refs == 0 {
		delete(m.locks, key)
	}
}

func (m *Manager) release(key string, kl *keyLock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(m.locks, key)
	}
}

// Stats returns a copy of the stats for key, if any.
func (m *Manager) Stats(key string) (KeyStats, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.stats[key]
	if !ok {
		return KeyStats{}, false
	}
	return *st, true
}
