package scanner

import (
	"testing"
	"time"

	"github.com/zzenonn/zmeta/internal/perf"
)

// loadedMonitor builds a monitor whose last sample reflects the given number
// of writes over a very short window, so even modest counts register as load.
func loadedMonitor(t *testing.T, writes int) *perf.Monitor {
	t.Helper()
	m := perf.NewMonitor(time.Nanosecond)
	for i := 0; i < writes; i++ {
		m.RecordWrite(1024)
	}
	time.Sleep(2 * time.Millisecond)
	m.Sample()
	return m
}

func TestShouldScanByMode(t *testing.T) {
	tests := []struct {
		name   string
		mode   Mode
		writes int
		want   bool
	}{
		{name: "disabled never scans", mode: ModeDisabled, writes: 0, want: false},
		{name: "low-load-only at idle", mode: ModeLowLoadOnly, writes: 0, want: true},
		{name: "normal at idle", mode: ModeNormal, writes: 0, want: true},
		{name: "aggressive at idle", mode: ModeAggressive, writes: 0, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Mode = tt.mode
			s := NewScheduler(cfg, loadedMonitor(t, tt.writes))
			if got := s.ShouldScan(); got != tt.want {
				t.Errorf("ShouldScan() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHighLoadPausesAfterConsecutiveSamples(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HighLoadSamplesToPause = 2
	cfg.PauseDuration = time.Hour

	// A monitor stuck at overload.
	m := perf.NewMonitor(time.Nanosecond)
	for i := 0; i < 100000; i++ {
		m.RecordWrite(1)
	}
	time.Sleep(2 * time.Millisecond)
	m.Sample()

	s := NewScheduler(cfg, m)

	// First high sample declines but does not yet pause; second triggers
	// the pause.
	if s.ShouldScan() {
		t.Fatal("scan allowed under overload")
	}
	if s.ShouldScan() {
		t.Fatal("scan allowed under sustained overload")
	}

	// Load drops, but a single quiet sample inside the pause window is
	// not enough.
	quiet := loadedMonitor(t, 0)
	s2 := NewScheduler(cfg, quiet)
	s2.pausedUntil = time.Now().Add(time.Hour)
	if s2.ShouldScan() {
		t.Fatal("scan allowed during pause window")
	}
}

func TestResumeNeedsConsecutiveLowSamples(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LowLoadSamplesToStart = 3

	s := NewScheduler(cfg, loadedMonitor(t, 0))
	// Simulate an expired pause: calm is still required to resume.
	s.pausedUntil = time.Now().Add(-time.Second)

	if s.ShouldScan() {
		t.Fatal("resumed after one low sample")
	}
	if s.ShouldScan() {
		t.Fatal("resumed after two low samples")
	}
	if !s.ShouldScan() {
		t.Fatal("did not resume after three low samples")
	}
	// Once resumed, the pause marker is cleared and scanning continues.
	if !s.ShouldScan() {
		t.Fatal("scan declined after successful resume")
	}
}

func TestAdaptiveAdjustBounds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinBatchSize = 10
	cfg.MaxBatchSize = 100
	cfg.BatchSize = 50

	idle := NewScheduler(cfg, loadedMonitor(t, 0))
	for i := 0; i < 10; i++ {
		idle.AdaptiveAdjust()
	}
	if got := idle.BatchSize(); got != cfg.MaxBatchSize {
		t.Errorf("idle batch size = %d, want capped at %d", got, cfg.MaxBatchSize)
	}

	busy := perf.NewMonitor(time.Nanosecond)
	for i := 0; i < 100000; i++ {
		busy.RecordWrite(1)
	}
	time.Sleep(2 * time.Millisecond)
	busy.Sample()

	over := NewScheduler(cfg, busy)
	over.AdaptiveAdjust()
	if got := over.BatchSize(); got != cfg.MinBatchSize {
		t.Errorf("overload batch size = %d, want floor %d", got, cfg.MinBatchSize)
	}
}

func TestShouldSkipRecent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SkipRecentWindow = time.Hour
	s := NewScheduler(cfg, loadedMonitor(t, 0))

	if s.ShouldSkipRecent(time.Time{}) {
		t.Error("never-scanned entry skipped")
	}
	if !s.ShouldSkipRecent(time.Now().Add(-time.Minute)) {
		t.Error("freshly scanned entry not skipped")
	}
	if s.ShouldSkipRecent(time.Now().Add(-2 * time.Hour)) {
		t.Error("stale entry skipped")
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
	}{
		{"disabled", ModeDisabled},
		{"low-load-only", ModeLowLoadOnly},
		{"normal", ModeNormal},
		{"aggressive", ModeAggressive},
		{"bogus", ModeNormal},
		{"", ModeNormal},
	}
	for _, tt := range tests {
		if got := ParseMode(tt.in); got != tt.want {
			t.Errorf("ParseMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestConfigPresets(t *testing.T) {
	hw := ForHighWriteLoad()
	if hw.Mode != ModeLowLoadOnly {
		t.Errorf("high-write preset mode = %v", hw.Mode)
	}
	if hw.PauseIOPSThreshold >= DefaultConfig().PauseIOPSThreshold {
		t.Error("high-write preset should pause earlier than the default")
	}

	ll := ForLowLatency()
	if ll.Mode != ModeAggressive {
		t.Errorf("low-latency preset mode = %v", ll.Mode)
	}
	if ll.PauseDuration >= DefaultConfig().PauseDuration {
		t.Error("low-latency preset should pause for less time")
	}
}
