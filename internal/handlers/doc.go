// Package handlers provides the HTTP API for photo ingestion.
//
// It includes handlers for:
//   - Batch photo upload and photo listing
//   - Serving stored objects through the handle cache
//   - Cache statistics, invalidation and persisted cache entries
//   - Health checks, version and Prometheus metrics
package handlers
