// Package scanner governs when background metadata scans are allowed to run
// and how aggressively they batch, based on feedback from the perf monitor.
package scanner

import "time"

// Mode selects the scanner's admission policy.
type Mode int

const (
	// ModeDisabled never scans.
	ModeDisabled Mode = iota
	// ModeLowLoadOnly scans only while write load is idle or low.
	ModeLowLoadOnly
	// ModeNormal scans unless load is high or above.
	ModeNormal
	// ModeAggressive scans unless the system is overloaded.
	ModeAggressive
)

func (m Mode) String() string {
	switch m {
	case ModeDisabled:
		return "disabled"
	case ModeLowLoadOnly:
		return "low-load-only"
	case ModeNormal:
		return "normal"
	case ModeAggressive:
		return "aggressive"
	}
	return "unknown"
}

// ParseMode maps a configuration string onto a Mode. Unknown values fall back
// to ModeNormal.
func ParseMode(s string) Mode {
	switch s {
	case "disabled":
		return ModeDisabled
	case "low-load-only":
		return ModeLowLoadOnly
	case "aggressive":
		return ModeAggressive
	}
	return ModeNormal
}

// Config carries the tunables of the scan scheduler.
type Config struct {
	Mode Mode

	// PauseIOPSThreshold pauses scans when write IOPS exceeds it.
	PauseIOPSThreshold uint64

	// LowLoadSamplesToStart is how many consecutive low-load samples are
	// required before a paused scanner resumes.
	LowLoadSamplesToStart int

	// HighLoadSamplesToPause is how many consecutive high-load samples
	// trigger a pause.
	HighLoadSamplesToPause int

	// PauseDuration is how long a triggered pause lasts.
	PauseDuration time.Duration

	// BatchSize is the initial number of entries processed per batch.
	// AdaptiveAdjust moves it between MinBatchSize and MaxBatchSize.
	BatchSize    int
	MinBatchSize int
	MaxBatchSize int

	// BatchInterval is the rest period between batches.
	BatchInterval time.Duration

	// SkipRecentWindow skips rescanning entries touched within the window.
	SkipRecentWindow time.Duration
}

// DefaultConfig returns the balanced production configuration.
func DefaultConfig() Config {
	return Config{
		Mode:                   ModeNormal,
		PauseIOPSThreshold:     1000,
		LowLoadSamplesToStart:  3,
		HighLoadSamplesToPause: 2,
		PauseDuration:          30 * time.Second,
		BatchSize:              50,
		MinBatchSize:           10,
		MaxBatchSize:           200,
		BatchInterval:          100 * time.Millisecond,
		SkipRecentWindow:       15 * time.Minute,
	}
}

// ForHighWriteLoad returns a configuration that gets out of the way of
// write-heavy workloads.
func ForHighWriteLoad() Config {
	cfg := DefaultConfig()
	cfg.Mode = ModeLowLoadOnly
	cfg.PauseIOPSThreshold = 500
	cfg.HighLoadSamplesToPause = 1
	cfg.PauseDuration = 2 * time.Minute
	cfg.BatchSize = 20
	cfg.BatchInterval = 500 * time.Millisecond
	return cfg
}

// ForLowLatency returns a configuration that keeps scan pauses short so
// listings stay fresh.
func ForLowLatency() Config {
	cfg := DefaultConfig()
	cfg.Mode = ModeAggressive
	cfg.PauseIOPSThreshold = 5000
	cfg.PauseDuration = 5 * time.Second
	cfg.BatchSize = 100
	cfg.BatchInterval = 50 * time.Millisecond
	cfg.SkipRecentWindow = 5 * time.Minute
	return cfg
}
