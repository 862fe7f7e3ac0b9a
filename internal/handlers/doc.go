// Package handlers exposes the scene lookup service over HTTP/JSON.
//
// It includes handlers for:
//   - Scene video lookup, single and batched, and per-project video listings
//   - Project scene status
//   - Index rebuilds, cache invalidation and project watch control
//   - Performance counters, version information and health probes
//
// NotFound maps to 404, an unparseable scene target to 400 and a failed
// project scan to 500 with the project in the body. Cache or watcher
// degradation never changes a status code.
package handlers
