package lookup

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"scene-index/internal/cache"
	"scene-index/internal/filesystem"
	"scene-index/internal/indexer"
	"scene-index/internal/logging"
	"scene-index/internal/metrics"
	"scene-index/internal/scene"
	"scene-index/internal/watcher"
)

// ErrUnknownProject is returned when a project has no directory under the root.
var ErrUnknownProject = errors.New("unknown project")

// Health values reported by Health and PerformanceStats.
const (
	HealthHealthy  = "healthy"
	HealthDegraded = "degraded"
)

// Config configures a Service.
type Config struct {
	Root string
	// ListingMaxAge bounds the age of a snapshot used for listings and status.
	ListingMaxAge time.Duration
	// RebuildDebounce is the window in which a non-forced rebuild is a no-op.
	RebuildDebounce time.Duration
	HealthInterval  time.Duration
	LogHealthChecks bool

	Builder indexer.Config

	WatchEnabled bool
	// WatchProjects lists the projects watched by Start; "*" watches every
	// project directory and any created later.
	WatchProjects []string
	Watcher       watcher.Config
	// OnBatch, when set, is called after a watcher batch has been applied.
	OnBatch func(batch watcher.Batch)
}

// DefaultConfig returns the standard service configuration for root.
func DefaultConfig(root string) Config {
	return Config{
		Root:            root,
		ListingMaxAge:   10 * time.Minute,
		RebuildDebounce: 5 * time.Minute,
		HealthInterval:  60 * time.Second,
		LogHealthChecks: true,
		Builder:         indexer.DefaultConfig(root),
		WatchEnabled:    true,
		WatchProjects:   []string{"*"},
		Watcher:         watcher.DefaultConfig(root),
	}
}

// Service is the entry point for scene video lookups, listings and cache
// maintenance. Watcher batches and explicit callers go through the same
// invalidation and rebuild methods.
type Service struct {
	cfg     Config
	cache   *cache.SceneCache
	builder *indexer.Builder
	watcher watcher.Watcher
	now     func() time.Time

	healthMu   sync.Mutex
	health     string
	lastHealth time.Time

	skipped        atomic.Int64
	watcherEvents  atomic.Int64
	watcherBatches atomic.Int64
	findCalls      atomic.Int64
	findNanos      atomic.Int64

	closeOnce sync.Once
}

// New builds a Service over sceneCache. The watcher is created here but
// projects are only watched after Start.
func New(cfg Config, sceneCache *cache.SceneCache) *Service {
	d := DefaultConfig(cfg.Root)
	if cfg.ListingMaxAge <= 0 {
		cfg.ListingMaxAge = d.ListingMaxAge
	}
	if cfg.RebuildDebounce <= 0 {
		cfg.RebuildDebounce = d.RebuildDebounce
	}
	if cfg.HealthInterval <= 0 {
		cfg.HealthInterval = d.HealthInterval
	}

	s := &Service{
		cfg:    cfg,
		cache:  sceneCache,
		now:    time.Now,
		health: HealthHealthy,
	}

	bcfg := cfg.Builder
	bcfg.Root = cfg.Root
	bcfg.Publish = s.publish
	s.builder = indexer.New(bcfg)

	if cfg.WatchEnabled {
		wcfg := cfg.Watcher
		wcfg.Root = s.builder.Root()
		wcfg.DiscoverProjects = watchAll(cfg.WatchProjects)
		s.watcher = watcher.New(wcfg, s)
	} else {
		s.watcher = watcher.NewDisabled(watcher.StatusDisabled)
	}
	return s
}

func watchAll(projects []string) bool {
	for _, p := range projects {
		if strings.TrimSpace(p) == "*" {
			return true
		}
	}
	return false
}

// publish stores a freshly built snapshot. A failed write is already counted
// by the cache; the snapshot still reaches the callers of the rebuild.
func (s *Service) publish(ctx context.Context, idx *scene.ProjectIndex) {
	_ = s.cache.PutProjectIndex(ctx, idx)
}

// Builder returns the index builder.
func (s *Service) Builder() *indexer.Builder { return s.builder }

// CacheBackend names the cache backend in use.
func (s *Service) CacheBackend() string { return s.cache.BackendName() }

// Root returns the absolute media root.
func (s *Service) Root() string { return s.builder.Root() }

// Start watches the configured projects. Failures are logged; the service
// keeps serving without live updates.
func (s *Service) Start(ctx context.Context) error {
	if status := s.watcher.Status(); status == watcher.StatusDisabled || status == watcher.StatusUnavailable {
		logging.Info("Lookup: change watcher %s, serving without live updates", status)
		return nil
	}

	projects := s.cfg.WatchProjects
	if watchAll(projects) {
		all, err := s.Projects()
		if err != nil {
			logging.Warn("Lookup: cannot list projects under %s: %v", s.Root(), err)
			return nil
		}
		projects = all
	}

	for _, p := range projects {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if err := s.WatchProject(p); err != nil {
			logging.Warn("Lookup: not watching project %s: %v", p, err)
		}
	}
	return nil
}

// Close stops the watcher and closes the cache.
func (s *Service) Close() error {
	var err error
	s.closeOnce.Do(func() {
		werr := s.watcher.Close()
		cerr := s.cache.Close()
		err = errors.Join(werr, cerr)
	})
	return err
}

// Projects lists the project directories under the root.
func (s *Service) Projects() ([]string, error) {
	entries, err := filesystem.ReadDirWithRetry(s.Root(), s.cfg.Builder.Retry)
	if err != nil {
		return nil, err
	}
	var projects []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") || !filesystem.IsDir(s.builder.ProjectDir(e.Name())) {
			continue
		}
		projects = append(projects, e.Name())
	}
	sort.Strings(projects)
	return projects, nil
}

func (s *Service) observe(op string, start time.Time) {
	metrics.LookupDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// FindSceneVideo resolves the video of one scene. A scene without a video
// is reported with ok == false and a nil error; only an unparseable target
// returns an error.
func (s *Service) FindSceneVideo(ctx context.Context, target, project string) (path string, ok bool, err error) {
	start := time.Now()
	defer func() {
		s.findCalls.Add(1)
		s.findNanos.Add(int64(time.Since(start)))
		s.observe("find_scene_video", start)
		switch {
		case err != nil:
			metrics.LookupResultsTotal.WithLabelValues("invalid").Inc()
		case ok:
			metrics.LookupResultsTotal.WithLabelValues("found").Inc()
		default:
			metrics.LookupResultsTotal.WithLabelValues("not_found").Inc()
		}
	}()

	id, alias, err := scene.NormalizeTarget(target)
	if err != nil {
		return "", false, err
	}
	if !indexer.ValidProjectID(project) {
		return "", false, nil
	}

	if alias {
		resolved, found, rerr := s.builder.ResolveAlias(ctx, project)
		if rerr != nil {
			logging.Error("Lookup: cannot resolve %s in project %s: %v", target, project, rerr)
			return "", false, nil
		}
		if !found {
			logging.Debug("Lookup: %s has no numeric scenes in project %s", target, project)
			return "", false, nil
		}
		id = resolved
	}

	if cached, hit := s.cache.GetLookup(ctx, project, id); hit {
		return cached, true, nil
	}

	found, ok, serr := s.builder.SceneVideo(ctx, project, id)
	if serr != nil {
		logging.Error("Lookup: scan of scene %s in project %s failed: %v", id, project, serr)
		return "", false, nil
	}
	if !ok {
		logging.Debug("Lookup: no video for scene %s in project %s", id, project)
		return "", false, nil
	}
	_ = s.cache.PutLookup(ctx, project, id, found)
	return found, true, nil
}

// snapshot returns a listing view of project: a cached snapshot no older than
// ListingMaxAge (or a new build), with scenes invalidated after the snapshot
// was taken re-scanned directly.
func (s *Service) snapshot(ctx context.Context, project string) (*scene.ProjectIndex, error) {
	idx, ok := s.cache.GetProjectIndex(ctx, project)
	if !ok || !idx.FreshAt(s.now(), s.cfg.ListingMaxAge) {
		built, _, err := s.builder.Build(ctx, project)
		if err != nil {
			return nil, err
		}
		idx = built
	}
	return s.applyStale(ctx, idx)
}

// applyStale returns idx with every scene marked stale after idx.BuiltAt
// replaced by a direct scan. idx itself is never modified.
func (s *Service) applyStale(ctx context.Context, idx *scene.ProjectIndex) (*scene.ProjectIndex, error) {
	markers := s.cache.StaleMarkers(ctx, idx.ProjectID)
	var rescan []string
	for id, at := range markers {
		if !idx.BuiltAt.After(at) {
			rescan = append(rescan, id)
		}
	}
	if len(rescan) == 0 {
		return idx, nil
	}
	scene.SortIDs(rescan)

	view := &scene.ProjectIndex{
		ProjectID: idx.ProjectID,
		Scenes:    make(map[string]*scene.SceneEntry, len(idx.Scenes)+len(rescan)),
		BuiltAt:   idx.BuiltAt,
	}
	for id, e := range idx.Scenes {
		view.Scenes[id] = e
	}
	for _, id := range rescan {
		entry, found, err := s.builder.ScanScene(ctx, idx.ProjectID, id)
		if err != nil {
			return nil, err
		}
		if found {
			view.Scenes[id] = entry
		} else {
			delete(view.Scenes, id)
		}
	}
	view.Recount()
	logging.Debug("Lookup: re-scanned %d invalidated scenes of project %s", len(rescan), idx.ProjectID)
	return view, nil
}

// GetAllSceneVideos returns one video per scene of project in scene order.
// The video is selected from the snapshot by priority; a scene whose
// selected video no longer exists is left out, even if a lower ranked
// candidate remains.
func (s *Service) GetAllSceneVideos(ctx context.Context, project string) ([]string, error) {
	defer s.observe("get_all_scene_videos", time.Now())

	if !indexer.ValidProjectID(project) {
		return []string{}, nil
	}
	idx, err := s.snapshot(ctx, project)
	if err != nil {
		logging.Error("Lookup: listing of project %s failed: %v", project, err)
		return nil, err
	}

	videos := make([]string, 0, len(idx.Scenes))
	for _, id := range idx.SceneIDs() {
		if r, ok := scene.SelectVideo(id, idx.Scenes[id].Videos); ok && filesystem.Exists(r.Path) {
			videos = append(videos, r.Path)
		}
	}
	return videos, nil
}

// UpdateSceneIndex rebuilds the snapshot of project. Without force it is a
// successful no-op when the cached snapshot is younger than RebuildDebounce
// or a rebuild is already running. It returns false only when the scan fails.
func (s *Service) UpdateSceneIndex(ctx context.Context, project string, force bool) bool {
	defer s.observe("update_scene_index", time.Now())

	if !indexer.ValidProjectID(project) {
		logging.Error("Lookup: refusing to index invalid project id %q", project)
		return false
	}

	if !force {
		if idx, ok := s.cache.GetProjectIndex(ctx, project); ok && idx.Age(s.now()) < s.cfg.RebuildDebounce {
			s.skip(project, "snapshot is recent")
			return true
		}
		_, started, err := s.builder.TryBuild(ctx, project)
		if !started {
			s.skip(project, "rebuild in flight")
			return true
		}
		return err == nil
	}

	_, joined, err := s.builder.Build(ctx, project)
	if joined && err == nil {
		// The joined scan may predate the caller's change.
		_, _, err = s.builder.Build(ctx, project)
	}
	return err == nil
}

func (s *Service) skip(project, reason string) {
	s.skipped.Add(1)
	metrics.IndexerRebuildsTotal.WithLabelValues("skipped").Inc()
	logging.Debug("Lookup: rebuild of project %s skipped: %s", project, reason)
}

// InvalidateSceneCache drops cached data for one scene, or for the whole
// project when sceneTarget is empty. Alias targets are resolved first.
func (s *Service) InvalidateSceneCache(ctx context.Context, project, sceneTarget string) error {
	if sceneTarget == "" {
		s.cache.Invalidate(ctx, project, "")
		logging.Debug("Lookup: invalidated project %s", project)
		return nil
	}

	id, alias, err := scene.NormalizeTarget(sceneTarget)
	if err != nil {
		return err
	}
	if alias {
		resolved, ok, err := s.builder.ResolveAlias(ctx, project)
		if err != nil || !ok {
			return nil
		}
		id = resolved
	}
	s.cache.Invalidate(ctx, project, id)
	logging.Debug("Lookup: invalidated scene %s of project %s", id, project)
	return nil
}

// WatchProject starts watching project for changes.
func (s *Service) WatchProject(project string) error {
	if !indexer.ValidProjectID(project) || !filesystem.IsDir(s.builder.ProjectDir(project)) {
		return fmt.Errorf("%w: %s", ErrUnknownProject, project)
	}
	if err := s.watcher.Watch(project); err != nil {
		if errors.Is(err, watcher.ErrProjectNotFound) {
			return fmt.Errorf("%w: %s", ErrUnknownProject, project)
		}
		return err
	}
	return nil
}

// UnwatchProject stops watching project.
func (s *Service) UnwatchProject(project string) error {
	return s.watcher.Unwatch(project)
}

// WatchedProjects returns the projects currently watched.
func (s *Service) WatchedProjects() []string {
	return s.watcher.Projects()
}

// WatcherStatus returns the change watcher status.
func (s *Service) WatcherStatus() watcher.Status {
	return s.watcher.Status()
}

// HandleBatch applies a watcher batch: per project, every touched scene is
// invalidated before a non-forced rebuild is requested.
func (s *Service) HandleBatch(ctx context.Context, batch watcher.Batch) {
	s.watcherBatches.Add(1)
	s.watcherEvents.Add(int64(len(batch.Events)))

	touched := make(map[string]map[string]struct{})
	for _, ev := range batch.Events {
		if ev.ProjectID == "" {
			continue
		}
		scenes, ok := touched[ev.ProjectID]
		if !ok {
			scenes = make(map[string]struct{})
			touched[ev.ProjectID] = scenes
		}
		if ev.SceneID != "" {
			scenes[ev.SceneID] = struct{}{}
		}
	}

	for project, scenes := range touched {
		ids := make([]string, 0, len(scenes))
		for id := range scenes {
			ids = append(ids, id)
		}
		scene.SortIDs(ids)
		for _, id := range ids {
			s.cache.Invalidate(ctx, project, id)
		}
		ok := s.UpdateSceneIndex(ctx, project, false)
		logging.Info("Lookup: batch %s invalidated %d scenes of project %s (rebuild ok=%v)", batch.ID, len(ids), project, ok)
	}

	if s.cfg.OnBatch != nil {
		s.cfg.OnBatch(batch)
	}
}
