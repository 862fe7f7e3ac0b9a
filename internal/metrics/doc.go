// Package metrics provides Prometheus instrumentation for the scene index service.
//
// All metrics are registered with the default registry through promauto and are
// prefixed with "scene_index_" to avoid naming collisions with other applications.
//
// # Metric Categories
//
// ## HTTP Metrics
//
//   - HTTPRequestsTotal: Counter of total requests by method, path, and status
//   - HTTPRequestDuration: Histogram of request duration by method and path
//   - HTTPRequestsInFlight: Gauge of currently processing requests
//
// ## Cache Metrics
//
//   - CacheOperationsTotal: Counter of cache reads by operation and hit/miss/error
//   - CacheBackendErrors: Counter of backend failures by backend and operation
//   - CacheInvalidationsTotal: Counter of invalidations by scope (scene/project)
//   - CacheStaleEvictions: Counter of cached paths evicted because the file vanished
//
// ## Indexer Metrics
//
//   - IndexerRebuildsTotal: Counter of rebuild requests by outcome (success/error/skipped)
//   - IndexerRebuildDuration: Histogram of full project scan time
//   - IndexerLastRebuildTimestamp: Gauge of the last completed scan
//   - IndexerFilesIndexed: Counter of media records produced
//   - IndexerDirectScans: Counter of single-scene scans
//   - IndexerRebuildsInFlight: Gauge of running scans
//   - IndexerScanWorkers: Gauge of the scan pool size
//
// ## Lookup Metrics
//
//   - LookupDuration: Histogram of service operation latency
//   - LookupResultsTotal: Counter of video lookups by result
//   - CacheHitRate: Gauge mirrored from the service counters by the Collector
//   - ServiceHealthy: Gauge of the last self-check outcome
//
// ## Watcher Metrics
//
//   - WatcherEventsTotal: Counter of normalized filesystem events by kind
//   - WatcherEventsDropped: Counter of events discarded before batching
//   - WatcherEventsCoalesced: Counter of events superseded inside the debounce window
//   - WatcherBatchesTotal: Counter of flushed batches by trigger
//   - WatcherBatchSize: Histogram of events per batch
//   - WatcherWatchedDirectories / WatcherWatchedProjects: Gauges of the watch set
//   - WatcherErrors: Counter of backend errors
//
// ## Filesystem Metrics
//
// Recorded through the filesystem.Observer implementation returned by
// NewFilesystemObserver, which breaks the import cycle between the two packages.
//
// # Usage
//
//	metrics.InitializeMetrics(cfg.CacheBackend)
//	filesystem.SetObserver(metrics.NewFilesystemObserver())
//	collector := metrics.NewCollector(service, time.Minute)
//	collector.Start()
//	defer collector.Stop()
package metrics
