package memory

import (
	"context"
	"errors"
	"math"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"photo-ingest/internal/logging"
	"photo-ingest/internal/metrics"
)

// ErrStopped is returned by Wait once the monitor has been stopped while
// decode work was paused.
var ErrStopped = errors.New("memory monitor stopped")

// Config holds memory monitor configuration
type Config struct {
	// LimitBytes is the soft memory limit (0 = use GOMEMLIMIT or no limit)
	LimitBytes int64

	// HighWater is the fraction of the limit below which paused work resumes
	HighWater float64

	// CriticalWater is the fraction of the limit at which decode work pauses
	CriticalWater float64

	// CheckInterval is how often to sample heap usage
	CheckInterval time.Duration

	// ReadAlloc samples current heap allocation. Defaults to runtime.MemStats.Alloc.
	ReadAlloc func() uint64
}

// DefaultConfig returns the monitor defaults.
func DefaultConfig() Config {
	return Config{
		HighWater:     0.7,
		CriticalWater: 0.85,
		CheckInterval: 2 * time.Second,
	}
}

// Stats is a snapshot of the monitor state.
type Stats struct {
	AllocBytes int64   `json:"allocBytes"`
	LimitBytes int64   `json:"limitBytes"`
	Usage      float64 `json:"usage"`
	Paused     bool    `json:"paused"`
}

// Monitor samples heap usage and pauses decode work while usage is above
// the critical mark, until it falls back under the high mark. Each decoded
// photo holds full-resolution rasters, so a burst of batches can otherwise
// outrun the collector.
type Monitor struct {
	config    Config
	limit     int64
	readAlloc func() uint64

	mu       sync.RWMutex
	current  uint64
	paused   bool
	resume   chan struct{}
	stopOnce sync.Once
	stop     chan struct{}
}

// NewMonitor creates a monitor. Without an explicit limit it uses
// GOMEMLIMIT; with neither, Wait never blocks.
func NewMonitor(config Config) *Monitor {
	def := DefaultConfig()
	if config.HighWater <= 0 || config.HighWater >= 1 {
		config.HighWater = def.HighWater
	}
	if config.CriticalWater <= config.HighWater || config.CriticalWater > 1 {
		config.CriticalWater = math.Max(def.CriticalWater, config.HighWater)
	}
	if config.CheckInterval <= 0 {
		config.CheckInterval = def.CheckInterval
	}

	readAlloc := config.ReadAlloc
	if readAlloc == nil {
		readAlloc = func() uint64 {
			var stats runtime.MemStats
			runtime.ReadMemStats(&stats)
			return stats.Alloc
		}
	}

	limit := config.LimitBytes
	if limit <= 0 {
		limit = 0
		if goMemLimit := debug.SetMemoryLimit(-1); goMemLimit > 0 && goMemLimit < math.MaxInt64 {
			limit = goMemLimit
			logging.Info("Memory monitor using GOMEMLIMIT: %s", FormatBytes(limit))
		}
	}
	if limit == 0 {
		logging.Debug("Memory monitor: no memory limit configured, decode backpressure disabled")
	}

	return &Monitor{
		config:    config,
		limit:     limit,
		readAlloc: readAlloc,
		resume:    make(chan struct{}),
		stop:      make(chan struct{}),
	}
}

// Start begins sampling. It is a no-op without a limit.
func (m *Monitor) Start() {
	if m.limit == 0 {
		return
	}
	go m.loop()
}

// Stop ends sampling and releases any waiters.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.check()
		case <-m.stop:
			return
		}
	}
}

func (m *Monitor) check() {
	alloc := m.readAlloc()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = alloc
	if m.limit == 0 {
		return
	}

	usage := float64(alloc) / float64(m.limit)
	metrics.MemoryUsageRatio.Set(usage)

	switch {
	case usage >= m.config.CriticalWater && !m.paused:
		logging.Warn("Memory critical (%.1f%% of limit), pausing decode work", usage*100)
		m.paused = true
		metrics.MemoryPaused.Set(1)
		metrics.MemoryPausesTotal.Inc()
		go runtime.GC()
	case usage < m.config.HighWater && m.paused:
		logging.Info("Memory recovered (%.1f%% of limit), resuming decode work", usage*100)
		m.paused = false
		metrics.MemoryPaused.Set(0)
		close(m.resume)
		m.resume = make(chan struct{})
	}
}

// Wait blocks while decode work is paused. It returns ctx's error if ctx
// ends first and ErrStopped if the monitor is stopped first.
func (m *Monitor) Wait(ctx context.Context) error {
	m.mu.RLock()
	if !m.paused {
		m.mu.RUnlock()
		return nil
	}
	resume := m.resume
	m.mu.RUnlock()

	select {
	case <-resume:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-m.stop:
		return ErrStopped
	}
}

// Paused reports whether decode work is currently paused.
func (m *Monitor) Paused() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paused
}

// Stats returns the latest sample.
func (m *Monitor) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	alloc := int64(math.MaxInt64)
	if m.current <= math.MaxInt64 {
		alloc = int64(m.current)
	}

	var usage float64
	if m.limit > 0 {
		usage = float64(m.current) / float64(m.limit)
	}
	return Stats{AllocBytes: alloc, LimitBytes: m.limit, Usage: usage, Paused: m.paused}
}
