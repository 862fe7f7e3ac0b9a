// Package lookup is the public face of the scene index: video lookups,
// per-project listings and status, rebuild and invalidation entry points,
// and performance counters.
//
// A Service owns the index Builder and the change Watcher and works against a
// cache.SceneCache. Reads go to the cache first and fall back to direct scans;
// cache failures never surface to callers. Watcher batches are applied through
// the same InvalidateSceneCache/UpdateSceneIndex path that explicit callers use.
//
// Lifecycle:
//
//	svc := lookup.New(cfg, sceneCache)
//	if err := svc.Start(ctx); err != nil { ... }
//	defer svc.Close()
package lookup
