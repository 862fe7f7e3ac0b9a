package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scene_index_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scene_index_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scene_index_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Cache metrics
var (
	CacheOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scene_index_cache_operations_total",
			Help: "Total number of cache reads by operation and result",
		},
		[]string{"operation", "result"}, // result: "hit", "miss", "error"
	)

	CacheBackendErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scene_index_cache_backend_errors_total",
			Help: "Total number of cache backend failures",
		},
		[]string{"backend", "operation"},
	)

	CacheInvalidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scene_index_cache_invalidations_total",
			Help: "Total number of cache invalidations",
		},
		[]string{"scope"}, // "scene" or "project"
	)

	CacheStaleEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scene_index_cache_stale_evictions_total",
			Help: "Cached lookup paths evicted because the file no longer exists",
		},
	)
)

// Indexer metrics
var (
	IndexerRebuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scene_index_indexer_rebuilds_total",
			Help: "Total number of project index rebuild requests by outcome",
		},
		[]string{"status"}, // "success", "error", "skipped"
	)

	IndexerRebuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scene_index_indexer_rebuild_duration_seconds",
			Help:    "Duration of full project scans in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	IndexerLastRebuildTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scene_index_indexer_last_rebuild_timestamp",
			Help: "Unix timestamp of the last completed project scan",
		},
	)

	IndexerFilesIndexed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scene_index_indexer_files_indexed_total",
			Help: "Total number of media records produced by project scans",
		},
	)

	IndexerDirectScans = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scene_index_indexer_direct_scans_total",
			Help: "Total number of single-scene scans",
		},
	)

	IndexerRebuildsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scene_index_indexer_rebuilds_in_flight",
			Help: "Number of project scans currently running",
		},
	)

	IndexerScanWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scene_index_indexer_scan_workers",
			Help: "Number of workers used by the scene scan pool",
		},
	)
)

// Lookup service metrics
var (
	LookupDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scene_index_lookup_duration_seconds",
			Help:    "Lookup service operation duration in seconds",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)

	LookupResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scene_index_lookup_results_total",
			Help: "Total number of scene video lookups by result",
		},
		[]string{"result"}, // "found", "not_found", "invalid"
	)

	CacheHitRate = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scene_index_cache_hit_rate_percent",
			Help: "Cumulative cache hit rate in percent",
		},
	)

	ServiceHealthy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scene_index_healthy",
			Help: "Whether the last self-check reported healthy (1) or degraded (0)",
		},
	)
)

// Watcher metrics
var (
	WatcherEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scene_index_watcher_events_total",
			Help: "Total number of raw filesystem events received",
		},
		[]string{"event_type"},
	)

	WatcherEventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scene_index_watcher_events_dropped_total",
			Help: "Filesystem events discarded before batching",
		},
		[]string{"reason"}, // "unclassified", "unwatched", "queue_full"
	)

	WatcherEventsCoalesced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scene_index_watcher_events_coalesced_total",
			Help: "Events replaced by a newer event for the same path inside the debounce window",
		},
	)

	WatcherBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scene_index_watcher_batches_total",
			Help: "Total number of flushed event batches",
		},
		[]string{"trigger"}, // "interval", "size"
	)

	WatcherBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scene_index_watcher_batch_size",
			Help:    "Number of events per flushed batch",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
		},
	)

	WatcherWatchedDirectories = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scene_index_watcher_watched_directories",
			Help: "Number of directories currently being watched",
		},
	)

	WatcherWatchedProjects = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scene_index_watcher_watched_projects",
			Help: "Number of projects currently being watched",
		},
	)

	WatcherErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scene_index_watcher_errors_total",
			Help: "Total number of filesystem watcher errors",
		},
	)
)

// Filesystem metrics
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scene_index_filesystem_operation_duration_seconds",
			Help:    "Filesystem operation duration in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"operation"}, // "stat", "readdir"
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scene_index_filesystem_operation_errors_total",
			Help: "Filesystem operations that returned an error other than not-exist",
		},
		[]string{"operation"},
	)

	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scene_index_filesystem_retry_attempts_total",
			Help: "Retries performed after stale file handle errors",
		},
		[]string{"operation"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scene_index_filesystem_retry_success_total",
			Help: "Operations that succeeded after at least one retry",
		},
		[]string{"operation"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scene_index_filesystem_retry_failures_total",
			Help: "Operations that still failed after exhausting retries",
		},
		[]string{"operation"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scene_index_filesystem_stale_errors_total",
			Help: "Stale file handle (ESTALE) errors observed",
		},
		[]string{"operation"},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scene_index_memory_usage_ratio",
			Help: "Heap allocation as a ratio of the memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scene_index_memory_paused",
			Help: "Whether scene scans are paused by memory pressure (1) or not (0)",
		},
	)

	MemoryPausesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scene_index_memory_pauses_total",
			Help: "Number of times scene scans were paused by memory pressure",
		},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scene_index_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version", "cache_backend"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion, cacheBackend string) {
	AppInfo.WithLabelValues(version, commit, goVersion, cacheBackend).Set(1)
}
