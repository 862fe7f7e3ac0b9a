package indexer

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"scene-index/internal/filesystem"
	"scene-index/internal/logging"
	"scene-index/internal/mediatypes"
	"scene-index/internal/metrics"
	"scene-index/internal/scene"
)

// SceneDir is a scene directory found under a project.
type SceneDir struct {
	ID   string
	Name string
	Path string
}

// sceneJob is a scene directory queued for the worker pool.
type sceneJob struct {
	pos int
	dir SceneDir
}

// BuildProjectIndex walks root/<project>/scene_*/{video,audio,images} once and
// returns a new snapshot. A missing project directory yields an empty index.
// Callers normally go through Build so concurrent scans are collapsed.
func (b *Builder) BuildProjectIndex(ctx context.Context, project string) (*scene.ProjectIndex, error) {
	if !ValidProjectID(project) {
		return nil, b.errorf(project, "invalid project id")
	}

	startTime := time.Now()
	b.scans.Add(1)
	idx := scene.NewProjectIndex(project, startTime)

	dirs, err := b.ListScenes(ctx, project)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logging.Debug("Indexer: project %s has no directory, returning empty index", project)
			return idx, nil
		}
		return nil, err
	}

	numWorkers := b.cfg.NumWorkers
	if numWorkers > len(dirs) {
		numWorkers = len(dirs)
	}
	logging.Debug("Indexer: scanning %d scenes of project %s with %d workers", len(dirs), project, numWorkers)

	entries := make([]*scene.SceneEntry, len(dirs))
	jobs := make(chan sceneJob)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				// Each worker owns distinct slots of entries.
				entries[job.pos] = b.scanSceneDir(ctx, project, job.dir)
			}
		}()
	}

	aborted := false
enqueue:
	for pos, dir := range dirs {
		if b.cfg.Memory != nil && !b.cfg.Memory.WaitIfPaused() {
			aborted = true
			break
		}
		select {
		case jobs <- sceneJob{pos: pos, dir: dir}:
		case <-ctx.Done():
			break enqueue
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, b.errorf(project, "scan canceled: %w", err)
	}
	if aborted {
		return nil, b.errorf(project, "scan abandoned while waiting for memory")
	}

	for _, entry := range entries {
		idx.Scenes[entry.ID] = entry
	}
	idx.Recount()

	duration := time.Since(startTime)
	b.lastBuild.Store(time.Now())
	b.lastDur.Store(int64(duration))
	metrics.IndexerRebuildDuration.Observe(duration.Seconds())
	metrics.IndexerLastRebuildTimestamp.Set(float64(time.Now().Unix()))
	metrics.IndexerFilesIndexed.Add(float64(idx.TotalFiles))

	logging.Info("Indexer: project %s indexed: %d scenes, %d files in %v",
		project, len(idx.Scenes), idx.TotalFiles, duration)
	return idx, nil
}

// ListScenes returns the scene directories of project in listing order. When
// two directories normalise to the same id the first one listed wins.
func (b *Builder) ListScenes(ctx context.Context, project string) ([]SceneDir, error) {
	if !ValidProjectID(project) {
		return nil, b.errorf(project, "invalid project id")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	projectDir := b.ProjectDir(project)
	entries, err := filesystem.ReadDirWithRetry(projectDir, b.cfg.Retry)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, b.errorf(project, "list scenes: %w", err)
	}

	seen := make(map[string]bool, len(entries))
	dirs := make([]SceneDir, 0, len(entries))
	for _, entry := range entries {
		if b.cfg.SkipHidden && strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		id, ok := scene.ParseDirName(entry.Name())
		if !ok || seen[id] {
			continue
		}
		path := filepath.Join(projectDir, entry.Name())
		if !isDir(entry, path) {
			continue
		}
		seen[id] = true
		dirs = append(dirs, SceneDir{ID: id, Name: entry.Name(), Path: path})
	}
	return dirs, nil
}

// isDir follows symlinks, which DirEntry.IsDir does not.
func isDir(entry fs.DirEntry, path string) bool {
	if entry.IsDir() {
		return true
	}
	if entry.Type()&fs.ModeSymlink != 0 {
		return filesystem.IsDir(path)
	}
	return false
}

// scanSceneDir builds the entry of one scene directory. Unreadable media
// directories are logged and left empty so the scene still shows up.
func (b *Builder) scanSceneDir(ctx context.Context, project string, dir SceneDir) *scene.SceneEntry {
	entry := &scene.SceneEntry{ID: dir.ID, Dir: dir.Name}

	for _, mt := range mediatypes.AllMediaTypes {
		mediaDir := filepath.Join(dir.Path, mediatypes.Subdirectories[mt])
		files, err := filesystem.ReadDirWithRetry(mediaDir, b.cfg.Retry)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				logging.Warn("Indexer: cannot list %s: %v", mediaDir, err)
			}
			continue
		}

		for _, f := range files {
			if ctx.Err() != nil {
				return entry
			}
			name := f.Name()
			if f.IsDir() || (b.cfg.SkipHidden && strings.HasPrefix(name, ".")) {
				continue
			}
			if mediatypes.FromPath(name) != mt {
				continue
			}

			path := filepath.Join(mediaDir, name)
			info, err := b.cfg.Prober.Probe(ctx, path, mt)
			if err != nil {
				// Removed between listing and probing, or not a regular file.
				logging.Debug("Indexer: skipping %s: %v", path, err)
				continue
			}

			entry.Add(scene.MediaRecord{
				ProjectID:       project,
				SceneID:         dir.ID,
				Path:            path,
				MediaType:       mt,
				SizeBytes:       info.SizeBytes,
				ModifiedAt:      info.ModifiedAt.Unix(),
				Format:          mediatypes.Format(name),
				DurationSeconds: info.DurationSeconds,
				Width:           info.Width,
				Height:          info.Height,
			})
		}
	}
	return entry
}

// findSceneDir locates the directory of sceneID within project.
func (b *Builder) findSceneDir(ctx context.Context, project, sceneID string) (SceneDir, bool, error) {
	dirs, err := b.ListScenes(ctx, project)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return SceneDir{}, false, nil
		}
		return SceneDir{}, false, err
	}
	for _, d := range dirs {
		if d.ID == sceneID {
			return d, true, nil
		}
	}
	return SceneDir{}, false, nil
}

// ScanScene builds a fresh entry for a single scene without touching the
// rest of the project.
func (b *Builder) ScanScene(ctx context.Context, project, sceneID string) (*scene.SceneEntry, bool, error) {
	b.directScans.Add(1)
	metrics.IndexerDirectScans.Inc()

	dir, ok, err := b.findSceneDir(ctx, project, sceneID)
	if err != nil || !ok {
		return nil, false, err
	}
	return b.scanSceneDir(ctx, project, dir), true, nil
}

// SceneVideo resolves the video of one scene by listing only its video
// directory. No probing is done; candidates are checked for existence in
// priority order.
func (b *Builder) SceneVideo(ctx context.Context, project, sceneID string) (string, bool, error) {
	b.directScans.Add(1)
	metrics.IndexerDirectScans.Inc()

	dir, ok, err := b.findSceneDir(ctx, project, sceneID)
	if err != nil || !ok {
		return "", false, err
	}

	videoDir := filepath.Join(dir.Path, mediatypes.Subdirectories[mediatypes.MediaTypeVideo])
	files, err := filesystem.ReadDirWithRetry(videoDir, b.cfg.Retry)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, b.errorf(project, "list %s: %w", videoDir, err)
	}

	candidates := make([]scene.MediaRecord, 0, len(files))
	for _, f := range files {
		if f.IsDir() || (b.cfg.SkipHidden && strings.HasPrefix(f.Name(), ".")) {
			continue
		}
		candidates = append(candidates, scene.MediaRecord{
			ProjectID: project,
			SceneID:   sceneID,
			Path:      filepath.Join(videoDir, f.Name()),
			MediaType: mediatypes.MediaTypeVideo,
		})
	}
	for _, c := range scene.RankVideos(sceneID, candidates) {
		if filesystem.Exists(c.Path) {
			return c.Path, true, nil
		}
	}
	return "", false, nil
}

// ResolveAlias returns the highest numeric scene id of project, read from
// the directory listing on every call.
func (b *Builder) ResolveAlias(ctx context.Context, project string) (string, bool, error) {
	dirs, err := b.ListScenes(ctx, project)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, err
	}
	ids := make([]string, len(dirs))
	for i, d := range dirs {
		ids[i] = d.ID
	}
	id, ok := scene.HighestNumeric(ids)
	return id, ok, nil
}
