// Package metrics provides Prometheus instrumentation for photo-ingest.
//
// All metrics are package-level collectors registered with promauto and
// prefixed with "photo_ingest_".
//
// # Metric Categories
//
// ## HTTP Metrics
//   - HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight
//
// ## Database Metrics
//   - DBQueryTotal, DBQueryDuration by operation
//   - DBConnectionsOpen
//
// ## Ingest Metrics
//   - IngestTotal by result ("accepted" or a reject reason)
//   - IngestPhaseDuration for sniff, normalize, derive and exif
//   - IngestByFormat, IngestInputBytes, IngestMissingTiers
//
// ## Upload Metrics
//   - UploadAttemptsTotal by result, UploadRetriesTotal
//   - UploadItemsTotal by terminal outcome, UploadBatchesTotal by status
//   - UploadBatchDuration, UploadsInFlight, UploadedBytesTotal by tier
//
// ## Cache Metrics
//   - HandleCacheRequests, HandleCacheEvictions, HandleCacheResidentBytes,
//     HandleCacheEntries
//   - TTLCacheRequests, TTLCacheEvictions, TTLCacheEntries labelled by cache
//
// ## Change Feed Metrics
//   - ChangeFeedEvents by kind, ChangeFeedErrors
//
// ## Library Metrics
//
// Updated periodically by [Collector]:
//   - PhotosTotal, PhotoBytesTotal
//
// # Usage
//
// Call [InitializeMetrics] once at startup so every label combination is
// exported from the first scrape, then expose promhttp.Handler() on the
// metrics port.
package metrics
