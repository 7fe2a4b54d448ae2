// Package app wires the process-wide services: metadata database, object
// store, ingest pipeline, upload scheduler, caches and change feed.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"photo-ingest/internal/changefeed"
	"photo-ingest/internal/database"
	"photo-ingest/internal/handlecache"
	"photo-ingest/internal/ingest"
	"photo-ingest/internal/logging"
	"photo-ingest/internal/media"
	"photo-ingest/internal/memory"
	"photo-ingest/internal/startup"
	"photo-ingest/internal/storage"
	"photo-ingest/internal/ttlcache"
	"photo-ingest/internal/upload"
)

// StatsKey is the TTL cache key for aggregate photo stats.
const StatsKey = "photos:stats"

// App owns the long-lived services. Create it with New and release it
// with Close.
type App struct {
	cfg       *startup.Config
	db        *database.Database
	ownsDB    bool
	store     storage.ObjectStore
	pipeline  *ingest.Pipeline
	scheduler *upload.Scheduler
	handles   *handlecache.Cache
	stats     *ttlcache.Cache[string, database.PhotoStats]
	entries   *ttlcache.Cache[string, database.CacheEntry]
	bus       *changefeed.Bus
	feed      *changefeed.RedisFeed
	monitor   *memory.Monitor

	feedMu     sync.Mutex
	feedCancel context.CancelFunc
	feedDone   chan struct{}

	// warming tracks background thumbnail preloads.
	warming sync.WaitGroup
}

type options struct {
	db         *database.Database
	store      storage.ObjectStore
	feed       *changefeed.RedisFeed
	transcoder media.Transcoder
	monitor    *memory.Monitor
	uploadOpts []upload.Option
}

// Option customizes New.
type Option func(*options)

// WithDatabase uses db instead of opening cfg.DatabasePath. The caller
// keeps ownership.
func WithDatabase(db *database.Database) Option {
	return func(o *options) { o.db = db }
}

// WithStore uses store instead of building one from cfg.Storage.
func WithStore(store storage.ObjectStore) Option {
	return func(o *options) { o.store = store }
}

// WithFeed uses feed instead of connecting to cfg.Redis.
func WithFeed(feed *changefeed.RedisFeed) Option {
	return func(o *options) { o.feed = feed }
}

// WithTranscoder sets the HEIF transcoder. Without it HEIF inputs are
// rejected as TranscodeFailed.
func WithTranscoder(t media.Transcoder) Option {
	return func(o *options) { o.transcoder = t }
}

// WithMemoryMonitor gates decode work on m.
func WithMemoryMonitor(m *memory.Monitor) Option {
	return func(o *options) { o.monitor = m }
}

// WithUploadOptions passes options through to the upload scheduler.
func WithUploadOptions(opts ...upload.Option) Option {
	return func(o *options) { o.uploadOpts = append(o.uploadOpts, opts...) }
}

// New builds the application services from cfg.
func New(ctx context.Context, cfg *startup.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{cfg: cfg, bus: changefeed.NewBus(), monitor: o.monitor}

	if o.db != nil {
		a.db = o.db
	} else {
		start := time.Now()
		db, err := database.New(ctx, cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		a.db, a.ownsDB = db, true
		startup.LogDatabaseInit(time.Since(start))
	}

	if o.store != nil {
		a.store = o.store
	} else {
		store, err := storage.New(ctx, cfg.Storage)
		if err != nil {
			a.closeDB()
			return nil, fmt.Errorf("object store: %w", err)
		}
		a.store = store
	}
	startup.LogStorageInit(cfg.Storage, a.store.PublicURL(""))

	a.pipeline = ingest.New(cfg.Ingest, media.NewNormalizer(o.transcoder), nil)
	if o.monitor != nil {
		a.pipeline.SetMemoryGate(o.monitor)
	}
	a.scheduler = upload.NewScheduler(cfg.Upload, a.pipeline, a.store, a.db, o.uploadOpts...)

	a.handles = handlecache.New(handlecache.NewFetcher(cfg.HandleCacheSource, a.store, cfg.HandleCache.Budget), cfg.HandleCache)
	a.stats = ttlcache.New[string, database.PhotoStats]("stats", cfg.TTLCache)
	a.entries = ttlcache.New[string, database.CacheEntry]("entries", cfg.TTLCache)

	a.feed = o.feed
	if a.feed == nil && cfg.FeedEnabled() {
		feed, err := changefeed.NewRedisFeed(ctx, cfg.Redis)
		if err != nil {
			// Caches still work without the feed; they just miss
			// invalidations from other instances.
			startup.LogFeedInit(cfg.Redis.Channel, err)
		} else {
			a.feed = feed
		}
	}

	a.db.OnChange(a.onDatabaseChange)
	return a, nil
}

// Config returns the configuration the app was built from.
func (a *App) Config() *startup.Config { return a.cfg }

// Database returns the metadata database.
func (a *App) Database() *database.Database { return a.db }

// Store returns the object store.
func (a *App) Store() storage.ObjectStore { return a.store }

// Pipeline returns the ingest pipeline.
func (a *App) Pipeline() *ingest.Pipeline { return a.pipeline }

// Bus returns the in-process event bus.
func (a *App) Bus() *changefeed.Bus { return a.bus }

// FeedConnected reports whether a Redis feed is attached.
func (a *App) FeedConnected() bool { return a.feed != nil }

// MemoryStats returns the memory monitor state, or false without a monitor.
func (a *App) MemoryStats() (memory.Stats, bool) {
	if a.monitor == nil {
		return memory.Stats{}, false
	}
	return a.monitor.Stats(), true
}

// PublicURL returns the direct address of an object key.
func (a *App) PublicURL(key string) string {
	return a.store.PublicURL(key)
}

// Ping checks the database and, when attached, the feed.
func (a *App) Ping(ctx context.Context) error {
	if err := a.db.Ping(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if a.feed != nil {
		if err := a.feed.Ping(ctx); err != nil {
			return fmt.Errorf("change feed: %w", err)
		}
	}
	return nil
}

// StartFeed subscribes to the Redis feed in the background. Remote
// changes invalidate the TTL caches and cached handles and are republished
// on the bus. It is a no-op without a feed or when already started.
func (a *App) StartFeed(ctx context.Context) {
	a.feedMu.Lock()
	defer a.feedMu.Unlock()

	if a.feed == nil || a.feedCancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	a.feedCancel = cancel
	a.feedDone = make(chan struct{})
	handler := changefeed.InvalidateOn(a.bus, a.stats, a.entries, changefeed.InvalidatorFunc(a.handles.Evict))

	go func() {
		defer close(a.feedDone)
		for {
			err := a.feed.Run(ctx, handler)
			if ctx.Err() != nil {
				return
			}
			logging.Warn("Change feed stopped: %v; resubscribing in 5s", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
		}
	}()
	startup.LogFeedInit(a.feed.Channel(), nil)
}

// Close stops the feed and releases cached handles, the feed client and,
// when the app opened it, the database.
func (a *App) Close() error {
	a.feedMu.Lock()
	if a.feedCancel != nil {
		a.feedCancel()
		<-a.feedDone
		a.feedCancel = nil
	}
	a.feedMu.Unlock()

	a.warming.Wait()
	a.handles.Clear()

	var errs []error
	if a.feed != nil {
		if err := a.feed.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close feed: %w", err))
		}
	}
	if err := a.closeDB(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) closeDB() error {
	if !a.ownsDB {
		return nil
	}
	if err := a.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// publish sends a change to other instances. Without a feed the change is
// applied locally only.
func (a *App) publish(ctx context.Context, ev changefeed.Event) {
	if a.feed == nil {
		a.bus.PublishChange(ev)
		return
	}
	if err := a.feed.Publish(ctx, ev); err != nil {
		logging.Logger().Warn().
			Str("key", ev.Key()).
			Err(err).
			Msg("failed to publish change event")
	}
}

// onDatabaseChange mirrors cache_entries mutations onto the feed.
func (a *App) onDatabaseChange(table, kind, key string) {
	if table != "cache_entries" {
		return
	}
	a.entries.Invalidate(key)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a.publish(ctx, changefeed.NewEvent(table, changefeed.ChangeKind(kind), key))
}
