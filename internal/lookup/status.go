package lookup

import (
	"context"
	"time"

	"scene-index/internal/cache"
	"scene-index/internal/filesystem"
	"scene-index/internal/indexer"
	"scene-index/internal/mediatypes"
	"scene-index/internal/scene"
)

// SceneStatus describes the media present in one scene.
type SceneStatus struct {
	SceneID         string              `json:"scene_id"`
	Videos          []scene.MediaRecord `json:"videos"`
	Audio           []scene.MediaRecord `json:"audio"`
	Images          []scene.MediaRecord `json:"images"`
	ReadyForEditing bool                `json:"ready_for_editing"`
}

// ProjectStatus describes every scene of a project.
type ProjectStatus struct {
	ProjectID        string        `json:"project_id"`
	BuiltAt          time.Time     `json:"built_at"`
	TotalScenes      int           `json:"total_scenes"`
	TotalFiles       int           `json:"total_files"`
	ScenesWithVideo  int           `json:"scenes_with_video"`
	ScenesWithAudio  int           `json:"scenes_with_audio"`
	ScenesWithImages int           `json:"scenes_with_images"`
	Scenes           []SceneStatus `json:"scenes"`
}

// existing returns the records whose files are still present.
func existing(records []scene.MediaRecord) []scene.MediaRecord {
	out := make([]scene.MediaRecord, 0, len(records))
	for _, r := range records {
		if filesystem.Exists(r.Path) {
			out = append(out, r)
		}
	}
	return out
}

// GetSceneStatus reports the media of every scene of project, with file
// existence checked at call time.
func (s *Service) GetSceneStatus(ctx context.Context, project string) (*ProjectStatus, error) {
	defer s.observe("get_scene_status", time.Now())

	status := &ProjectStatus{ProjectID: project, Scenes: []SceneStatus{}}
	if !indexer.ValidProjectID(project) {
		return status, nil
	}
	idx, err := s.snapshot(ctx, project)
	if err != nil {
		return nil, err
	}
	status.BuiltAt = idx.BuiltAt

	for _, id := range idx.SceneIDs() {
		entry := idx.Scenes[id]
		ss := SceneStatus{
			SceneID: id,
			Videos:  existing(entry.Records(mediatypes.MediaTypeVideo)),
			Audio:   existing(entry.Records(mediatypes.MediaTypeAudio)),
			Images:  existing(entry.Records(mediatypes.MediaTypeImage)),
		}
		ss.ReadyForEditing = len(ss.Videos) > 0

		if ss.ReadyForEditing {
			status.ScenesWithVideo++
		}
		if len(ss.Audio) > 0 {
			status.ScenesWithAudio++
		}
		if len(ss.Images) > 0 {
			status.ScenesWithImages++
		}
		status.TotalFiles += len(ss.Videos) + len(ss.Audio) + len(ss.Images)
		status.Scenes = append(status.Scenes, ss)
	}
	status.TotalScenes = len(status.Scenes)
	return status, nil
}

// PerformanceStats is the cumulative activity of a Service.
type PerformanceStats struct {
	Lookups         int64   `json:"lookups"`
	CacheHits       int64   `json:"cache_hits"`
	CacheMisses     int64   `json:"cache_misses"`
	Errors          int64   `json:"errors"`
	CacheHitRate    float64 `json:"cache_hit_rate"`
	Health          string  `json:"health"`
	CacheBackend    string  `json:"cache_backend"`
	Rebuilds        int64   `json:"rebuilds"`
	RebuildsSkipped int64   `json:"rebuilds_skipped"`
	DirectScans     int64   `json:"direct_scans"`
	WatcherStatus   string  `json:"watcher_status"`
	WatchedProjects int     `json:"watched_projects"`
	WatcherEvents   int64   `json:"watcher_events"`
	WatcherBatches  int64   `json:"watcher_batches"`
	AvgLookupMillis float64 `json:"avg_lookup_ms"`
}

// GetPerformanceStats returns the cache counters together with rebuild and
// watcher activity and the current health string.
func (s *Service) GetPerformanceStats(ctx context.Context) PerformanceStats {
	c := s.cache.Counters()
	b := s.builder.Stats()
	w := s.watcher.Stats()

	stats := PerformanceStats{
		Lookups:         c.Lookups,
		CacheHits:       c.CacheHits,
		CacheMisses:     c.CacheMisses,
		Errors:          c.Errors,
		CacheHitRate:    hitRate(c),
		Health:          s.Health(ctx),
		CacheBackend:    s.cache.BackendName(),
		Rebuilds:        b.Scans,
		RebuildsSkipped: s.skipped.Load(),
		DirectScans:     b.DirectScans,
		WatcherStatus:   string(s.watcher.Status()),
		WatchedProjects: w.Projects,
		WatcherEvents:   s.watcherEvents.Load(),
		WatcherBatches:  s.watcherBatches.Load(),
	}
	if n := s.findCalls.Load(); n > 0 {
		stats.AvgLookupMillis = float64(s.findNanos.Load()) / float64(n) / float64(time.Millisecond)
	}
	return stats
}

func hitRate(c cache.Counters) float64 {
	if c.Lookups == 0 {
		return 0
	}
	return float64(c.CacheHits) / float64(c.Lookups) * 100
}
