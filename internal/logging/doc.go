// Package logging provides a simple leveled logging interface for the
// scene index service.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information (cache hits, skipped events)
//   - INFO: General operational messages (rebuilds, watch registration)
//   - WARN: Degraded conditions (cache backend unreachable, watcher down)
//   - ERROR: Failed operations (scan failures)
//   - FATAL: Fatal errors that terminate the application
//
// The initial level comes from the DEBUG or LOG_LEVEL environment variables;
// SetLevel overrides it at runtime.
package logging
