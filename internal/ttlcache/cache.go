package ttlcache

import (
	"container/list"
	"encoding/json"
	"sync"
	"time"

	"photo-ingest/internal/logging"
	"photo-ingest/internal/metrics"
)

const (
	// DefaultMaxSize is the entry capacity when Config.MaxSize is unset.
	DefaultMaxSize = 100
	// DefaultTTL is applied when Set is called with ttl <= 0.
	DefaultTTL = time.Hour
)

// Config configures a Cache.
type Config struct {
	MaxSize    int
	DefaultTTL time.Duration
	// Sizer estimates the memory footprint of an entry. When nil the
	// length of the JSON encoding of key and value is used.
	Sizer func(key any, value any) int
	// Now replaces time.Now in tests.
	Now func() time.Time
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Name              string  `json:"name"`
	Size              int     `json:"size"`
	MaxSize           int     `json:"maxSize"`
	Hits              int64   `json:"hits"`
	Misses            int64   `json:"misses"`
	HitRatePercent    float64 `json:"hitRatePercent"`
	ExpiredCount      int64   `json:"expiredCount"`
	StaleEntries      int     `json:"staleEntries"`
	ApproxMemoryBytes int64   `json:"approxMemoryBytes"`
}

type entry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
	size      int
}

// Cache is a bounded LRU map whose entries expire after a TTL. Expiry is
// checked lazily on read. All methods are safe for concurrent use.
type Cache[K comparable, V any] struct {
	name       string
	maxSize    int
	defaultTTL time.Duration
	sizer      func(any, any) int
	now        func() time.Time

	mu      sync.Mutex
	ll      *list.List // front is most recently used
	items   map[K]*list.Element
	hits    int64
	misses  int64
	expired int64
	bytes   int64
}

// New creates a cache. name labels its metrics.
func New[K comparable, V any](name string, cfg Config) *Cache[K, V] {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultTTL
	}
	if cfg.Sizer == nil {
		cfg.Sizer = jsonSize
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	metrics.InitializeCache(name)

	return &Cache[K, V]{
		name:       name,
		maxSize:    cfg.MaxSize,
		defaultTTL: cfg.DefaultTTL,
		sizer:      cfg.Sizer,
		now:        cfg.Now,
		ll:         list.New(),
		items:      make(map[K]*list.Element),
	}
}

// Get returns the value for key. An expired entry is removed and counted
// as a miss.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.items[key]
	if !ok {
		c.misses++
		metrics.TTLCacheRequests.WithLabelValues(c.name, "miss").Inc()
		return zero, false
	}

	e := el.Value.(*entry[K, V])
	if c.now().After(e.expiresAt) {
		c.removeElement(el)
		c.misses++
		c.expired++
		metrics.TTLCacheRequests.WithLabelValues(c.name, "expired").Inc()
		return zero, false
	}

	c.ll.MoveToFront(el)
	c.hits++
	metrics.TTLCacheRequests.WithLabelValues(c.name, "hit").Inc()
	return e.value, true
}

// Set stores value under key for ttl, or the default TTL when ttl <= 0.
// Inserting a new key at capacity evicts the least recently used entry.
func (c *Cache[K, V]) Set(key K, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	size := c.sizer(key, value)

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[K, V])
		c.bytes += int64(size - e.size)
		e.value = value
		e.size = size
		e.expiresAt = c.now().Add(ttl)
		c.ll.MoveToFront(el)
		return
	}

	if c.ll.Len() >= c.maxSize {
		if oldest := c.ll.Back(); oldest != nil {
			logging.Debug("ttlcache %s: evicting least recently used entry", c.name)
			c.removeElement(oldest)
			metrics.TTLCacheEvictions.WithLabelValues(c.name, "capacity").Inc()
		}
	}

	el := c.ll.PushFront(&entry[K, V]{key: key, value: value, expiresAt: c.now().Add(ttl), size: size})
	c.items[key] = el
	c.bytes += int64(size)
	metrics.TTLCacheEntries.WithLabelValues(c.name).Set(float64(c.ll.Len()))
}

// Invalidate removes key and reports whether it was present.
func (c *Cache[K, V]) Invalidate(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return false
	}
	c.removeElement(el)
	metrics.TTLCacheEvictions.WithLabelValues(c.name, "invalidate").Inc()
	return true
}

// Clear removes every entry and resets the hit and miss counters.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ll.Init()
	c.items = make(map[K]*list.Element)
	c.bytes = 0
	c.hits = 0
	c.misses = 0
	metrics.TTLCacheEntries.WithLabelValues(c.name).Set(0)
}

// CleanExpired removes every expired entry and returns how many were
// removed.
func (c *Cache[K, V]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for el := c.ll.Back(); el != nil; {
		prev := el.Prev()
		if now.After(el.Value.(*entry[K, V]).expiresAt) {
			c.removeElement(el)
			removed++
		}
		el = prev
	}
	c.expired += int64(removed)
	return removed
}

// Len returns the number of resident entries, expired or not.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Stats returns a snapshot of the cache counters.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	stale := 0
	for el := c.ll.Front(); el != nil; el = el.Next() {
		if now.After(el.Value.(*entry[K, V]).expiresAt) {
			stale++
		}
	}

	var rate float64
	if total := c.hits + c.misses; total > 0 {
		rate = float64(c.hits) / float64(total) * 100
	}

	return Stats{
		Name:              c.name,
		Size:              c.ll.Len(),
		MaxSize:           c.maxSize,
		Hits:              c.hits,
		Misses:            c.misses,
		HitRatePercent:    rate,
		ExpiredCount:      c.expired,
		StaleEntries:      stale,
		ApproxMemoryBytes: c.bytes,
	}
}

// removeElement must be called with mu held.
func (c *Cache[K, V]) removeElement(el *list.Element) {
	e := c.ll.Remove(el).(*entry[K, V])
	delete(c.items, e.key)
	c.bytes -= int64(e.size)
	metrics.TTLCacheEntries.WithLabelValues(c.name).Set(float64(c.ll.Len()))
}

func jsonSize(key any, value any) int {
	b, err := json.Marshal([2]any{key, value})
	if err != nil {
		return 0
	}
	return len(b)
}
