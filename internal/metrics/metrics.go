package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_ingest_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photo_ingest_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_ingest_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_ingest_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photo_ingest_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_ingest_db_connections_open",
			Help: "Number of open database connections",
		},
	)
)

// Ingest metrics
var (
	IngestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_ingest_ingest_total",
			Help: "Total number of ingested inputs by result (accepted or reject reason)",
		},
		[]string{"result"},
	)

	IngestPhaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photo_ingest_ingest_phase_duration_seconds",
			Help:    "Duration of each ingest phase",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"phase"}, // "sniff", "normalize", "derive", "exif"
	)

	IngestInputBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "photo_ingest_ingest_input_bytes",
			Help:    "Size of raw inputs handed to the pipeline",
			Buckets: prometheus.ExponentialBuckets(16*1024, 2, 10), // 16KB to 8MB
		},
	)

	IngestByFormat = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_ingest_ingest_by_format_total",
			Help: "Inputs by sniffed format",
		},
		[]string{"format"},
	)

	IngestMissingTiers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_ingest_ingest_missing_tiers_total",
			Help: "Optional tiers that failed to encode",
		},
		[]string{"tier"},
	)
)

// Upload scheduler metrics
var (
	UploadAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_ingest_upload_attempts_total",
			Help: "Total upload attempts by result",
		},
		[]string{"result"}, // "success", "transient", "auth", "timeout"
	)

	UploadRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photo_ingest_upload_retries_total",
			Help: "Total upload retries after a transient failure",
		},
	)

	UploadItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_ingest_upload_items_total",
			Help: "Total batch items by terminal outcome",
		},
		[]string{"outcome"},
	)

	UploadBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_ingest_upload_batches_total",
			Help: "Total batches by status",
		},
		[]string{"status"}, // "all_succeeded", "partial", "all_failed"
	)

	UploadBatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "photo_ingest_upload_batch_duration_seconds",
			Help:    "Wall time of a batch run",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 300},
		},
	)

	UploadsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_ingest_uploads_in_flight",
			Help: "Number of batch items currently being processed",
		},
	)

	UploadedBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_ingest_uploaded_bytes_total",
			Help: "Bytes written to the object store by tier",
		},
		[]string{"tier"},
	)
)

// Object handle cache metrics
var (
	HandleCacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_ingest_handle_cache_requests_total",
			Help: "Handle cache lookups by result",
		},
		[]string{"result"}, // "hit", "miss", "direct"
	)

	HandleCacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photo_ingest_handle_cache_evictions_total",
			Help: "Handles evicted to stay under the memory budget",
		},
	)

	HandleCacheResidentBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_ingest_handle_cache_resident_bytes",
			Help: "Bytes held by resident handles",
		},
	)

	HandleCacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_ingest_handle_cache_entries",
			Help: "Number of resident handles",
		},
	)
)

// TTL cache metrics
var (
	TTLCacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_ingest_ttl_cache_requests_total",
			Help: "TTL cache lookups by result",
		},
		[]string{"cache", "result"}, // result: "hit", "miss", "expired"
	)

	TTLCacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_ingest_ttl_cache_evictions_total",
			Help: "Entries evicted by capacity or invalidation",
		},
		[]string{"cache", "reason"}, // reason: "capacity", "invalidate"
	)

	TTLCacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "photo_ingest_ttl_cache_entries",
			Help: "Number of resident entries",
		},
		[]string{"cache"},
	)
)

// Change feed metrics
var (
	ChangeFeedEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_ingest_change_feed_events_total",
			Help: "Change notifications received by kind",
		},
		[]string{"kind"},
	)

	ChangeFeedErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photo_ingest_change_feed_errors_total",
			Help: "Malformed or undeliverable change notifications",
		},
	)
)

// Library metrics
var (
	PhotosTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_ingest_photos_total",
			Help: "Total number of registered photos",
		},
	)

	PhotoBytesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_ingest_photo_bytes_total",
			Help: "Sum of original file sizes of registered photos",
		},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_ingest_memory_usage_ratio",
			Help: "Heap allocation as a fraction of the memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_ingest_memory_paused",
			Help: "1 while decode work is paused for memory pressure",
		},
	)

	MemoryPausesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photo_ingest_memory_pauses_total",
			Help: "Times decode work was paused for memory pressure",
		},
	)
)

// Filesystem retry metrics (local input reads)
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_ingest_filesystem_retry_attempts_total",
			Help: "Retries after a stale file handle",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_ingest_filesystem_retry_success_total",
			Help: "Operations that succeeded after retrying",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_ingest_filesystem_retry_failures_total",
			Help: "Operations that failed after exhausting retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_ingest_filesystem_stale_errors_total",
			Help: "ESTALE errors observed",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photo_ingest_filesystem_retry_duration_seconds",
			Help:    "Total time spent in retrying filesystem operations",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"operation", "volume"},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "photo_ingest_app_info",
			Help: "Application build information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
