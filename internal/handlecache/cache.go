package handlecache

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"photo-ingest/internal/logging"
	"photo-ingest/internal/metrics"
	"photo-ingest/internal/workers"
)

const (
	// DefaultBudget is the soft byte budget for resident handles.
	DefaultBudget int64 = 60 * 1024 * 1024
	// DefaultHighWater is the fraction of the budget eviction works toward.
	DefaultHighWater = 0.8
	// DefaultFetchTimeout bounds one shared fetch.
	DefaultFetchTimeout = 15 * time.Second
)

// Config configures a Cache.
type Config struct {
	Budget    int64
	HighWater float64
	// PreloadWorkers bounds Preload; 0 sizes it for network-bound work.
	PreloadWorkers int
	FetchTimeout   time.Duration
	Now            func() time.Time
}

// Stats is a point-in-time snapshot of the cache.
type Stats struct {
	Entries       int     `json:"entries"`
	ResidentBytes int64   `json:"residentBytes"`
	Budget        int64   `json:"budget"`
	HighWater     float64 `json:"highWater"`
	Hits          int64   `json:"hits"`
	Misses        int64   `json:"misses"`
	Direct        int64   `json:"direct"`
	Evictions     int64   `json:"evictions"`
}

type entry struct {
	handle       *Handle
	lastAccessed time.Time
	seq          uint64 // breaks lastAccessed ties
}

// Cache holds fetched objects in memory under a byte budget and evicts the
// least recently accessed handles first.
type Cache struct {
	fetcher        Fetcher
	budget         int64
	highWater      float64
	preloadWorkers int
	fetchTimeout   time.Duration
	now            func() time.Time

	group singleflight.Group

	mu        sync.Mutex
	entries   map[string]*entry
	resident  int64
	seq       uint64
	hits      int64
	misses    int64
	direct    int64
	evictions int64
}

// New creates a cache that loads misses through fetcher.
func New(fetcher Fetcher, cfg Config) *Cache {
	if cfg.Budget <= 0 {
		cfg.Budget = DefaultBudget
	}
	if cfg.HighWater <= 0 || cfg.HighWater > 1 {
		cfg.HighWater = DefaultHighWater
	}
	if cfg.PreloadWorkers <= 0 {
		cfg.PreloadWorkers = workers.ForIO(16)
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Cache{
		fetcher:        fetcher,
		budget:         cfg.Budget,
		highWater:      cfg.HighWater,
		preloadWorkers: cfg.PreloadWorkers,
		fetchTimeout:   cfg.FetchTimeout,
		now:            cfg.Now,
		entries:        make(map[string]*entry),
	}
}

// GetOrLoad returns the resident handle for locator, loading it on a miss.
// Concurrent misses for the same locator share one fetch, which outlives
// the caller that started it and is bounded by FetchTimeout instead. A
// failed fetch returns a direct handle; GetOrLoad never fails.
func (c *Cache) GetOrLoad(ctx context.Context, locator string) *Handle {
	if h := c.lookup(locator); h != nil {
		return h
	}

	v, err, _ := c.group.Do(locator, func() (any, error) {
		if h := c.lookup(locator); h != nil {
			return h, nil
		}

		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()
		data, err := c.fetcher.Fetch(fetchCtx, locator)
		if err != nil {
			return nil, err
		}
		return c.insert(locator, data), nil
	})
	if err != nil {
		logging.Logger().Warn().Str("locator", locator).Err(err).Msg("handle cache fetch failed, serving direct")
		c.mu.Lock()
		c.direct++
		c.mu.Unlock()
		metrics.HandleCacheRequests.WithLabelValues("direct").Inc()
		return directHandle(locator)
	}
	return v.(*Handle)
}

func (c *Cache) lookup(locator string) *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[locator]
	if !ok {
		return nil
	}
	c.touch(e)
	c.hits++
	metrics.HandleCacheRequests.WithLabelValues("hit").Inc()
	return e.handle
}

func (c *Cache) insert(locator string, data []byte) *Handle {
	h := newHandle(locator, data)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.misses++
	metrics.HandleCacheRequests.WithLabelValues("miss").Inc()

	if h.size > c.budget {
		logging.Debug("handle cache: %s (%d bytes) exceeds budget, returning uncached", locator, h.size)
		return h
	}

	c.evictFor(h.size)

	e := &entry{handle: h}
	c.touch(e)
	c.entries[locator] = e
	c.resident += h.size
	c.updateGauges()
	return h
}

// evictFor releases handles oldest-first until size more bytes fit under
// the high-water mark. Must be called with mu held.
func (c *Cache) evictFor(size int64) {
	limit := int64(float64(c.budget) * c.highWater)
	if c.resident+size <= limit {
		return
	}

	victims := make([]*entry, 0, len(c.entries))
	for _, e := range c.entries {
		victims = append(victims, e)
	}
	sort.Slice(victims, func(i, j int) bool {
		if victims[i].lastAccessed.Equal(victims[j].lastAccessed) {
			return victims[i].seq < victims[j].seq
		}
		return victims[i].lastAccessed.Before(victims[j].lastAccessed)
	})

	for _, e := range victims {
		if c.resident+size <= limit {
			break
		}
		c.remove(e.handle.locator)
		c.evictions++
		metrics.HandleCacheEvictions.Inc()
		logging.Logger().Debug().
			Str("locator", e.handle.locator).
			Int64("bytes", e.handle.size).
			Int64("resident", c.resident).
			Msg("handle cache eviction")
	}
}

// remove must be called with mu held.
func (c *Cache) remove(locator string) bool {
	e, ok := c.entries[locator]
	if !ok {
		return false
	}
	delete(c.entries, locator)
	c.resident -= e.handle.size
	e.handle.Release()
	c.updateGauges()
	return true
}

func (c *Cache) touch(e *entry) {
	c.seq++
	e.seq = c.seq
	e.lastAccessed = c.now()
}

func (c *Cache) updateGauges() {
	metrics.HandleCacheResidentBytes.Set(float64(c.resident))
	metrics.HandleCacheEntries.Set(float64(len(c.entries)))
}

// Evict releases the handle for locator and reports whether it was resident.
func (c *Cache) Evict(locator string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remove(locator)
}

// Clear releases every resident handle.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range c.entries {
		e.handle.Release()
	}
	c.entries = make(map[string]*entry)
	c.resident = 0
	c.updateGauges()
}

// Preload loads locators that are not yet resident with bounded
// concurrency. It returns when all loads finish or ctx is done.
func (c *Cache) Preload(ctx context.Context, locators []string) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers.Bounded(c.preloadWorkers, len(locators)))

	for _, loc := range locators {
		if c.Contains(loc) {
			continue
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			c.GetOrLoad(gctx, loc)
			return nil
		})
	}
	_ = g.Wait()
}

// Contains reports whether locator is resident without touching it.
func (c *Cache) Contains(locator string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[locator]
	return ok
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Entries:       len(c.entries),
		ResidentBytes: c.resident,
		Budget:        c.budget,
		HighWater:     c.highWater,
		Hits:          c.hits,
		Misses:        c.misses,
		Direct:        c.direct,
		Evictions:     c.evictions,
	}
}
