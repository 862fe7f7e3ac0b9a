package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics(cacheBackend string) {
	for _, op := range []string{"get_lookup", "get_project_index"} {
		for _, result := range []string{"hit", "miss", "error"} {
			CacheOperationsTotal.WithLabelValues(op, result)
		}
	}

	for _, op := range []string{"get", "put", "delete", "delete_prefix", "list_prefix", "ping"} {
		CacheBackendErrors.WithLabelValues(cacheBackend, op)
	}

	for _, scope := range []string{"scene", "project"} {
		CacheInvalidationsTotal.WithLabelValues(scope)
	}

	for _, status := range []string{"success", "error", "skipped"} {
		IndexerRebuildsTotal.WithLabelValues(status)
	}

	for _, op := range []string{"find_scene_video", "find_scene_videos", "get_all_scene_videos", "update_scene_index", "get_scene_status"} {
		LookupDuration.WithLabelValues(op)
	}

	for _, result := range []string{"found", "not_found", "invalid"} {
		LookupResultsTotal.WithLabelValues(result)
	}

	for _, eventType := range []string{"created", "modified", "deleted"} {
		WatcherEventsTotal.WithLabelValues(eventType)
	}

	for _, reason := range []string{"unclassified", "unwatched", "queue_full"} {
		WatcherEventsDropped.WithLabelValues(reason)
	}

	for _, trigger := range []string{"interval", "size"} {
		WatcherBatchesTotal.WithLabelValues(trigger)
	}

	for _, op := range []string{"stat", "readdir"} {
		FilesystemOperationDuration.WithLabelValues(op)
		FilesystemOperationErrors.WithLabelValues(op)
		FilesystemRetryAttempts.WithLabelValues(op)
		FilesystemRetrySuccess.WithLabelValues(op)
		FilesystemRetryFailures.WithLabelValues(op)
		FilesystemStaleErrors.WithLabelValues(op)
	}
}
