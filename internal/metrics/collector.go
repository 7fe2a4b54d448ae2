package metrics

import (
	"context"
	"time"

	"photo-ingest/internal/logging"
)

// StatsProvider supplies library totals for periodic gauges.
type StatsProvider interface {
	LibraryStats(ctx context.Context) (Stats, error)
}

// StatsProviderFunc adapts a function to StatsProvider.
type StatsProviderFunc func(ctx context.Context) (Stats, error)

// LibraryStats calls f.
func (f StatsProviderFunc) LibraryStats(ctx context.Context) (Stats, error) { return f(ctx) }

// Stats holds the current library totals
type Stats struct {
	Photos int64
	Bytes  int64
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
	done          chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection and waits for the loop to exit
func (c *Collector) Stop() {
	close(c.stopChan)
	<-c.done
}

func (c *Collector) collectLoop() {
	defer close(c.done)

	// Collect immediately on start
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stats, err := c.statsProvider.LibraryStats(ctx)
	if err != nil {
		logging.Warn("Metrics collection failed: %v", err)
		return
	}

	PhotosTotal.Set(float64(stats.Photos))
	PhotoBytesTotal.Set(float64(stats.Bytes))

	logging.Debug("Metrics collected: photos=%d, bytes=%d", stats.Photos, stats.Bytes)
}
