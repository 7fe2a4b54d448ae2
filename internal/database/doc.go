// Package database provides SQLite persistence for the photo ingest service.
//
// It stores:
//   - one row per registered photo, pointing at its stored tiers
//   - cache entries whose mutations feed the change feed
//   - service metadata such as the last completed batch
//
// The database runs in WAL mode so readers are not blocked by batch
// inserts, and the schema is created and migrated on open.
package database
