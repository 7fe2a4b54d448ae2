package memory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func newTestMonitor(t *testing.T, limit int64, alloc *atomic.Uint64) *Monitor {
	t.Helper()
	m := NewMonitor(Config{
		LimitBytes:    limit,
		HighWater:     0.5,
		CriticalWater: 0.8,
		CheckInterval: time.Hour,
		ReadAlloc:     alloc.Load,
	})
	t.Cleanup(m.Stop)
	return m
}

func TestNewMonitorDefaults(t *testing.T) {
	tests := []struct {
		name         string
		config       Config
		wantHigh     float64
		wantCritical float64
	}{
		{"zero config", Config{LimitBytes: 1}, 0.7, 0.85},
		{"custom marks", Config{LimitBytes: 1, HighWater: 0.6, CriticalWater: 0.9}, 0.6, 0.9},
		{"critical below high", Config{LimitBytes: 1, HighWater: 0.6, CriticalWater: 0.5}, 0.6, 0.85},
		{"high out of range", Config{LimitBytes: 1, HighWater: 1.5}, 0.7, 0.85},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMonitor(tt.config)
			if m.config.HighWater != tt.wantHigh || m.config.CriticalWater != tt.wantCritical {
				t.Errorf("marks = %v/%v, want %v/%v",
					m.config.HighWater, m.config.CriticalWater, tt.wantHigh, tt.wantCritical)
			}
			if m.config.CheckInterval <= 0 {
				t.Error("CheckInterval not defaulted")
			}
		})
	}
}

func TestMonitorPauseAndResume(t *testing.T) {
	var alloc atomic.Uint64
	m := newTestMonitor(t, 1000, &alloc)

	alloc.Store(400)
	m.check()
	if m.Paused() {
		t.Fatal("paused below critical mark")
	}
	if err := m.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	alloc.Store(900)
	m.check()
	if !m.Paused() {
		t.Fatal("not paused above critical mark")
	}

	released := make(chan error, 1)
	go func() { released <- m.Wait(context.Background()) }()

	// Between the marks the pause holds.
	alloc.Store(600)
	m.check()
	select {
	case <-released:
		t.Fatal("Wait returned between the marks")
	case <-time.After(20 * time.Millisecond):
	}

	alloc.Store(100)
	m.check()
	select {
	case err := <-released:
		if err != nil {
			t.Errorf("Wait() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after recovery")
	}

	stats := m.Stats()
	if stats.Paused || stats.AllocBytes != 100 || stats.LimitBytes != 1000 || stats.Usage != 0.1 {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestMonitorWaitHonoursContextAndStop(t *testing.T) {
	var alloc atomic.Uint64
	alloc.Store(950)
	m := newTestMonitor(t, 1000, &alloc)
	m.check()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := m.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want context.DeadlineExceeded", err)
	}

	m.Stop()
	m.Stop()
	if err := m.Wait(context.Background()); !errors.Is(err, ErrStopped) {
		t.Errorf("Wait() after Stop error = %v, want ErrStopped", err)
	}
}

func TestMonitorWithoutLimitNeverPauses(t *testing.T) {
	var alloc atomic.Uint64
	alloc.Store(1 << 40)
	m := NewMonitor(Config{ReadAlloc: alloc.Load})
	m.limit = 0
	m.Start()
	defer m.Stop()

	m.check()
	if m.Paused() {
		t.Error("monitor without a limit paused")
	}
	if got := m.Stats().Usage; got != 0 {
		t.Errorf("Usage = %v, want 0", got)
	}
}
