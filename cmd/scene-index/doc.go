// Package main provides the entry point for the scene index server.
//
// The server answers "which video belongs to scene N of project P" for a
// media root laid out as <root>/<project>/scene_<id>/{video,audio,images}.
// Lookups are served from a cache of per-project snapshots that is kept
// current by a filesystem change watcher.
//
// # Application Lifecycle
//
//  1. Memory Configuration: GOMEMLIMIT from MEMORY_LIMIT and MEMORY_RATIO
//  2. Configuration Loading: defaults, optional YAML file, then environment
//  3. Cache Backend: memory, bbolt file or redis
//  4. Media Probe: stat-only or ffprobe metadata
//  5. Lookup Service: index builder (paused under memory pressure) plus
//     change watcher
//  6. Metrics Collector: mirrors service counters into gauges every minute
//  7. HTTP Server Setup: routes, request logging and metrics middleware
//  8. Graceful Shutdown: SIGINT/SIGTERM stops servers, watcher and cache
//
// # HTTP Server
//
// The application runs two HTTP servers:
//
//  1. Main Server (default port 8080):
//     - /api/projects/{project}/... lookup, listing, status and maintenance
//     - /api/stats and /api/version
//     - /health, /healthz, /livez and /readyz
//
//  2. Metrics Server (default port 9090, optional):
//     - Prometheus metrics endpoint (/metrics)
//     - Liveness endpoint (/health)
//
// # Environment Variables
//
//   - SCENE_INDEX_CONFIG: optional YAML configuration file
//   - MEDIA_ROOT: directory holding one directory per project
//   - PORT, METRICS_PORT, METRICS_ENABLED
//   - CACHE_BACKEND (memory, bolt, redis), CACHE_ADDR, CACHE_MAX_ENTRIES
//   - INDEX_TTL, LOOKUP_TTL, LISTING_MAX_AGE, REBUILD_DEBOUNCE
//   - WATCH_ENABLED, WATCH_PROJECTS, WATCH_DEBOUNCE, BATCH_INTERVAL,
//     BATCH_SIZE, HEALTH_INTERVAL
//   - PROBE_METADATA, FFPROBE_PATH, PROBE_TIMEOUT, SCAN_WORKERS
//   - LOG_LEVEL, LOG_HEALTH_CHECKS
//   - GOMEMLIMIT, MEMORY_LIMIT, MEMORY_RATIO
//
// # Related Packages
//
//   - [scene-index/internal/lookup]: lookup service
//   - [scene-index/internal/cache]: scene cache and backends
//   - [scene-index/internal/indexer]: project scans
//   - [scene-index/internal/watcher]: filesystem change watcher
//   - [scene-index/internal/handlers]: HTTP request handlers
//   - [scene-index/internal/startup]: configuration and startup logging
package main
