package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"scene-index/internal/filesystem"
	"scene-index/internal/logging"
	"scene-index/internal/metrics"
	"scene-index/internal/scene"
)

const (
	keyNamespace   = "scene_index:"
	staleNamespace = keyNamespace + "stale:"
)

// Config holds the TTLs of a SceneCache.
type Config struct {
	IndexTTL  time.Duration
	LookupTTL time.Duration
}

// DefaultConfig returns one hour for both the index and lookup entries.
func DefaultConfig() Config {
	return Config{IndexTTL: time.Hour, LookupTTL: time.Hour}
}

// Counters are cumulative for the life of the cache.
type Counters struct {
	Lookups     int64 `json:"lookups"`
	CacheHits   int64 `json:"cache_hits"`
	CacheMisses int64 `json:"cache_misses"`
	Errors      int64 `json:"errors"`
}

// SceneCache stores project snapshots, per-scene video lookups and stale
// scene markers on top of a Backend. Backend failures are absorbed: reads
// degrade to misses and writes are dropped after being counted and logged.
type SceneCache struct {
	backend Backend
	cfg     Config
	exists  func(path string) bool
	now     func() time.Time

	lookups atomic.Int64
	hits    atomic.Int64
	misses  atomic.Int64
	errors  atomic.Int64
}

// New creates a SceneCache over backend.
func New(backend Backend, cfg Config) *SceneCache {
	if cfg.IndexTTL <= 0 {
		cfg.IndexTTL = DefaultConfig().IndexTTL
	}
	if cfg.LookupTTL <= 0 {
		cfg.LookupTTL = DefaultConfig().LookupTTL
	}
	return &SceneCache{
		backend: backend,
		cfg:     cfg,
		exists:  filesystem.Exists,
		now:     time.Now,
	}
}

type lookupEntry struct {
	Path     string    `json:"path"`
	StoredAt time.Time `json:"stored_at"`
}

type staleMarker struct {
	InvalidatedAt time.Time `json:"invalidated_at"`
}

func lookupPrefix(project string) string { return keyNamespace + "lookup:" + project + ":" }
func stalePrefix(project string) string  { return staleNamespace + project + ":" }
func projectKey(project string) string   { return keyNamespace + "project:" + project }
func lookupKey(project, sceneID string) string {
	return lookupPrefix(project) + sceneID
}
func staleKey(project, sceneID string) string {
	return stalePrefix(project) + sceneID
}

// BackendName reports which backend is in use.
func (c *SceneCache) BackendName() string { return c.backend.Name() }

// IndexTTL returns the snapshot TTL.
func (c *SceneCache) IndexTTL() time.Duration { return c.cfg.IndexTTL }

func (c *SceneCache) backendError(op string, err error) {
	c.errors.Add(1)
	metrics.CacheBackendErrors.WithLabelValues(c.backend.Name(), op).Inc()
	logging.Warn("Cache: %s backend %s failed: %v", c.backend.Name(), op, err)
}

func (c *SceneCache) recordRead(op string, hit bool) {
	c.lookups.Add(1)
	if hit {
		c.hits.Add(1)
		metrics.CacheOperationsTotal.WithLabelValues(op, "hit").Inc()
		return
	}
	c.misses.Add(1)
	metrics.CacheOperationsTotal.WithLabelValues(op, "miss").Inc()
}

// GetProjectIndex returns the cached snapshot if it is younger than the
// index TTL. An expired snapshot is reported absent.
func (c *SceneCache) GetProjectIndex(ctx context.Context, project string) (*scene.ProjectIndex, bool) {
	data, err := c.backend.Get(ctx, projectKey(project))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.backendError("get", err)
			metrics.CacheOperationsTotal.WithLabelValues("get_project_index", "error").Inc()
		}
		c.recordRead("get_project_index", false)
		return nil, false
	}

	var idx scene.ProjectIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		logging.Warn("Cache: dropping undecodable index for project %s: %v", project, err)
		_ = c.backend.Delete(ctx, projectKey(project))
		c.recordRead("get_project_index", false)
		return nil, false
	}
	if idx.Scenes == nil {
		idx.Scenes = make(map[string]*scene.SceneEntry)
	}
	if !idx.FreshAt(c.now(), c.cfg.IndexTTL) {
		c.recordRead("get_project_index", false)
		return nil, false
	}

	c.recordRead("get_project_index", true)
	return &idx, true
}

// PutProjectIndex stores idx, replacing any previous snapshot, and drops the
// stale markers the new snapshot supersedes.
func (c *SceneCache) PutProjectIndex(ctx context.Context, idx *scene.ProjectIndex) error {
	data, err := json.Marshal(idx)
	if err != nil {
		return err
	}
	if err := c.backend.Put(ctx, projectKey(idx.ProjectID), data, c.cfg.IndexTTL); err != nil {
		c.backendError("put", err)
		return err
	}

	markers := c.StaleMarkers(ctx, idx.ProjectID)
	var superseded []string
	for sceneID, at := range markers {
		if idx.BuiltAt.After(at) {
			superseded = append(superseded, staleKey(idx.ProjectID, sceneID))
		}
	}
	if len(superseded) > 0 {
		if err := c.backend.Delete(ctx, superseded...); err != nil {
			c.backendError("delete", err)
		}
	}
	return nil
}

// GetLookup returns the cached video path for a scene. A path that no
// longer exists on disk is evicted and reported as a miss.
func (c *SceneCache) GetLookup(ctx context.Context, project, sceneID string) (string, bool) {
	key := lookupKey(project, sceneID)
	data, err := c.backend.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.backendError("get", err)
			metrics.CacheOperationsTotal.WithLabelValues("get_lookup", "error").Inc()
		}
		c.recordRead("get_lookup", false)
		return "", false
	}

	var entry lookupEntry
	if err := json.Unmarshal(data, &entry); err != nil || entry.Path == "" {
		_ = c.backend.Delete(ctx, key)
		c.recordRead("get_lookup", false)
		return "", false
	}

	if !c.exists(entry.Path) {
		logging.Debug("Cache: evicting stale lookup %s/%s -> %s", project, sceneID, entry.Path)
		if err := c.backend.Delete(ctx, key); err != nil {
			c.backendError("delete", err)
		}
		metrics.CacheStaleEvictions.Inc()
		c.recordRead("get_lookup", false)
		return "", false
	}

	c.recordRead("get_lookup", true)
	return entry.Path, true
}

// PutLookup caches the resolved video path for a scene.
func (c *SceneCache) PutLookup(ctx context.Context, project, sceneID, path string) error {
	data, err := json.Marshal(lookupEntry{Path: path, StoredAt: c.now()})
	if err != nil {
		return err
	}
	if err := c.backend.Put(ctx, lookupKey(project, sceneID), data, c.cfg.LookupTTL); err != nil {
		c.backendError("put", err)
		return err
	}
	return nil
}

// Invalidate removes cached data. With a scene id only that scene's lookup
// goes and a stale marker is recorded so older snapshots are not trusted
// for the scene. Without one, every lookup, marker and the snapshot of the
// project are removed.
func (c *SceneCache) Invalidate(ctx context.Context, project, sceneID string) {
	if sceneID != "" {
		metrics.CacheInvalidationsTotal.WithLabelValues("scene").Inc()
		if err := c.backend.Delete(ctx, lookupKey(project, sceneID)); err != nil {
			c.backendError("delete", err)
		}
		data, err := json.Marshal(staleMarker{InvalidatedAt: c.now()})
		if err != nil {
			return
		}
		if err := c.backend.Put(ctx, staleKey(project, sceneID), data, c.cfg.IndexTTL); err != nil {
			c.backendError("put", err)
		}
		return
	}

	metrics.CacheInvalidationsTotal.WithLabelValues("project").Inc()
	for _, prefix := range []string{lookupPrefix(project), stalePrefix(project)} {
		if _, err := c.backend.DeletePrefix(ctx, prefix); err != nil {
			c.backendError("delete_prefix", err)
		}
	}
	if err := c.backend.Delete(ctx, projectKey(project)); err != nil {
		c.backendError("delete", err)
	}
}

// StaleMarkers returns the invalidation time of every marked scene of project.
func (c *SceneCache) StaleMarkers(ctx context.Context, project string) map[string]time.Time {
	prefix := stalePrefix(project)
	keys, err := c.backend.ListPrefix(ctx, prefix)
	if err != nil {
		c.backendError("list_prefix", err)
		return nil
	}

	markers := make(map[string]time.Time, len(keys))
	for _, key := range keys {
		data, err := c.backend.Get(ctx, key)
		if err != nil {
			continue
		}
		var m staleMarker
		if json.Unmarshal(data, &m) != nil {
			continue
		}
		markers[strings.TrimPrefix(key, prefix)] = m.InvalidatedAt
	}
	return markers
}

// ClearStale removes the markers of the given scenes.
func (c *SceneCache) ClearStale(ctx context.Context, project string, sceneIDs ...string) {
	if len(sceneIDs) == 0 {
		return
	}
	keys := make([]string, len(sceneIDs))
	for i, id := range sceneIDs {
		keys[i] = staleKey(project, id)
	}
	if err := c.backend.Delete(ctx, keys...); err != nil {
		c.backendError("delete", err)
	}
}

// Ping checks the backend.
func (c *SceneCache) Ping(ctx context.Context) error {
	return c.backend.Ping(ctx)
}

// Counters returns a snapshot of the cumulative counters.
func (c *SceneCache) Counters() Counters {
	return Counters{
		Lookups:     c.lookups.Load(),
		CacheHits:   c.hits.Load(),
		CacheMisses: c.misses.Load(),
		Errors:      c.errors.Load(),
	}
}

// Close closes the backend.
func (c *SceneCache) Close() error {
	return c.backend.Close()
}
