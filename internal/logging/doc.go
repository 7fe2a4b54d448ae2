// Package logging provides a leveled logging interface for photo-ingest,
// backed by zerolog.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL environment variable (or
// DEBUG=true). LOG_FORMAT=json emits JSON lines instead of console output.
// Callers that want typed fields use [Logger].
package logging
