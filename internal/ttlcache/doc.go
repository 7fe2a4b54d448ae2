// Package ttlcache provides a generic bounded LRU cache with per-entry
// time-to-live.
//
// Expired entries are never served: Get removes them on read and counts a
// miss. CleanExpired sweeps the rest on demand. The change feed calls
// Invalidate when the backing row changes.
package ttlcache
