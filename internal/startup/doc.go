// Package startup loads configuration and writes the startup and shutdown
// log sections.
//
// # Configuration
//
// [LoadConfig] reads environment variables, falling back to the YAML file
// named by CONFIG_FILE and then to built-in defaults:
//
//   - PORT, METRICS_PORT, METRICS_ENABLED, LOG_HEALTH_CHECKS
//   - DATABASE_DIR: directory holding photos.db (default: ./data)
//   - STORAGE_BACKEND: minio, s3 or memory (default: minio)
//   - STORAGE_ENDPOINT, STORAGE_BUCKET, STORAGE_ACCESS_KEY, STORAGE_SECRET_KEY,
//     STORAGE_USE_SSL, STORAGE_REGION, STORAGE_PUBLIC_URL
//   - MAX_UPLOAD_BYTES, MAX_BATCH_FILES, MAX_BATCH_BYTES: ingest caps; sizes
//     accept units such as "6MiB"
//   - UPLOAD_CONCURRENCY, UPLOAD_MAX_RETRIES, UPLOAD_RETRY_DELAY,
//     UPLOAD_ATTEMPT_TIMEOUT, UPLOAD_WAVE_COOLDOWN
//   - HANDLE_CACHE_BUDGET, HANDLE_CACHE_HIGH_WATER, HANDLE_CACHE_FETCH_TIMEOUT
//   - HANDLE_CACHE_SOURCE: store (read via the storage API, default) or
//     public (read via STORAGE_PUBLIC_URL)
//   - TTL_CACHE_MAX_SIZE, TTL_CACHE_DEFAULT_TTL
//   - REDIS_ADDR, REDIS_PASSWORD, REDIS_CHANNEL: change feed; empty
//     REDIS_ADDR disables it
//
// A config file mirrors the same keys in sections:
//
//	server:
//	  port: 8080
//	storage:
//	  backend: minio
//	  endpoint: minio:9000
//	upload:
//	  maxUploadBytes: 6MiB
//	  retryDelay: 1.5s
//	redis:
//	  addr: redis:6379
//
// # Build Information
//
// Version, Commit and BuildTime are injected via ldflags and exposed via
// [GetBuildInfo].
package startup
