// Package perf provides the write-load monitor that scan admission control
// consults. One monitor is owned per process; components record writes into
// it and a background sampler folds the counters into load metrics. All
// queries are read-only.
package perf

import (
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

// LoadLevel classifies the current write load.
type LoadLevel int

const (
	LoadIdle LoadLevel = iota
	LoadLow
	LoadMedium
	LoadHigh
	LoadOverload
)

func (l LoadLevel) String() string {
	switch l {
	case LoadIdle:
		return "idle"
	case LoadLow:
		return "low"
	case LoadMedium:
		return "medium"
	case LoadHigh:
		return "high"
	case LoadOverload:
		return "overload"
	}
	return "unknown"
}

// Metrics is a sampled snapshot of recent write activity.
type Metrics struct {
	IOPS       float64
	Throughput float64 // MiB/s
	SampledAt  time.Time
}

// Monitor accumulates write counters and periodically samples them into
// metrics. RecordWrite is safe from any goroutine; Start and Stop manage the
// sampling loop explicitly.
type Monitor struct {
	writeCount   atomic.Uint64
	bytesWritten atomic.Uint64

	mu         sync.RWMutex
	metrics    Metrics
	lastSample time.Time

	window   time.Duration
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewMonitor returns a monitor sampling over the given window. A zero window
// defaults to one second.
func NewMonitor(window time.Duration) *Monitor {
	if window <= 0 {
		window = time.Second
	}
	return &Monitor{
		window:     window,
		lastSample: time.Now(),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// RecordWrite accounts one write of the given size.
func (m *Monitor) RecordWrite(bytes int) {
	m.writeCount.Add(1)
	m.bytesWritten.Add(uint64(bytes))
}

// Start launches the background sampling loop. Call Stop to terminate it.
func (m *Monitor) Start() {
	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.window)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.sample(time.Now())
			case <-m.stop:
				return
			}
		}
	}()
	log.Debugf("perf: monitor started, window %s", m.window)
}

// Stop terminates the sampling loop and waits for it to exit. Safe to call
// more than once.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	<-m.done
}

func (m *Monitor) sample(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elapsed := now.Sub(m.lastSample)
	if elapsed < m.window {
		return
	}

	writes := m.writeCount.Swap(0)
	bytes := m.bytesWritten.Swap(0)

	m.metrics = Metrics{
		IOPS:       float64(writes) / elapsed.Seconds(),
		Throughput: float64(bytes) / (1 << 20) / elapsed.Seconds(),
		SampledAt:  now,
	}
	m.lastSample = now
}

// Sample forces an immediate sample outside the background loop. Intended
// for tests and for callers that run without Start.
func (m *Monitor) Sample() {
	m.sample(time.Now())
}

// CurrentMetrics returns the latest sampled metrics.
func (m *Monitor) CurrentMetrics() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metrics
}

// CurrentIOPS returns the latest sampled write IOPS.
func (m *Monitor) CurrentIOPS() float64 {
	return m.CurrentMetrics().IOPS
}

// LoadLevel classifies the latest sample.
func (m *Monitor) LoadLevel() LoadLevel {
	iops := m.CurrentIOPS()
	switch {
	case iops < 100:
		return LoadIdle
	case iops < 500:
		return LoadLow
	case iops < 1000:
		return LoadMedium
	case iops < 5000:
		return LoadHigh
	default:
		return LoadOverload
	}
}

// ShouldPauseScan reports whether the current write load exceeds the given
// IOPS threshold.
func (m *Monitor) ShouldPauseScan(threshold uint64) bool {
	return m.CurrentIOPS() > float64(threshold)
}
