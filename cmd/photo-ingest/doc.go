// Command photo-ingest runs the photo ingestion API server and uploads
// local photos from the command line.
//
// Subcommands:
//
//	serve     run the HTTP API (same as the root binary)
//	upload    ingest and upload files or directories of photos
//	version   print build information
//
// Configuration is read from the environment, a .env file and the YAML
// file named by CONFIG_FILE. See internal/startup for the keys.
package main
