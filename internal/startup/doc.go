// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// Configuration is resolved by viper in three layers: built-in defaults, an
// optional YAML file named by SCENE_INDEX_CONFIG, then environment variables.
// Keys are the lower-case forms of the variables below.
//
//   - MEDIA_ROOT: Directory holding one sub-directory per project (default: /projects)
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable metrics server (default: true)
//   - CACHE_BACKEND: memory, bolt or redis (default: memory)
//   - CACHE_ADDR: bbolt file path or redis URL, required unless memory
//   - CACHE_MAX_ENTRIES: Entry bound of the memory backend (default: 100000)
//   - INDEX_TTL, LOOKUP_TTL: Cache entry lifetimes (default: 1h)
//   - LISTING_MAX_AGE: Snapshot age accepted by listings (default: 10m)
//   - REBUILD_DEBOUNCE: Window in which non-forced rebuilds are skipped (default: 5m)
//   - WATCH_ENABLED: Enable the change watcher (default: true)
//   - WATCH_PROJECTS: Comma separated projects to watch, * for all (default: *)
//   - WATCH_DEBOUNCE, BATCH_INTERVAL, BATCH_SIZE: Watcher timings (default: 500ms, 2s, 100)
//   - HEALTH_INTERVAL: Minimum spacing of self-checks (default: 60s)
//   - PROBE_METADATA, FFPROBE_PATH, PROBE_TIMEOUT: Rich media probing (default: false, ffprobe, 10s)
//   - SCAN_WORKERS: Scan pool size, 0 for automatic (default: 0)
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
//
// # Lifecycle Logging
//
// [LogCacheInit], [LogProbeInit], [LogWatcherInit], [LogHTTPRoutes],
// [LogServerStarted] and the shutdown helpers print the banner-style
// sections that make up the service's startup and shutdown log.
package startup
