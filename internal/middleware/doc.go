// Package middleware provides HTTP middleware for the photo-ingest server.
//
// It includes:
//   - Structured access logging through zerolog
//   - Prometheus request metrics keyed by route template
//   - gzip compression of JSON responses
package middleware
