package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"scene-index/internal/filesystem"
	"scene-index/internal/logging"
	"scene-index/internal/metrics"
	"scene-index/internal/scene"
)

// FSWatcher watches project trees with fsnotify.
//
// Events flow through three goroutines connected by channels: readLoop
// normalizes OS events, debounceLoop owns the per-path debounce table and
// releases the latest event of each path once it has been quiet for the
// debounce delay, and batchLoop groups released events into batches for the
// Handler. No table is shared between goroutines.
type FSWatcher struct {
	cfg     Config
	handler Handler
	fsw     *fsnotify.Watcher

	raw   chan scene.WatcherEvent
	ready chan scene.WatcherEvent

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once

	mu         sync.Mutex
	projects   map[string]bool
	dirs       map[string]string // watched directory -> project
	status     Status
	lastHealth time.Time
	errSince   int64 // errors since the last health check
	closed     bool

	events    atomic.Int64
	coalesced atomic.Int64
	batches   atomic.Int64
	errors    atomic.Int64
}

// NewFS creates and starts an fsnotify watcher. It returns ErrUnavailable
// when the OS backend cannot be created.
func NewFS(cfg Config, handler Handler) (*FSWatcher, error) {
	cfg.applyDefaults()
	if abs, err := filepath.Abs(cfg.Root); err == nil {
		cfg.Root = abs
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		logging.Warn("Watcher: filesystem notifications unavailable: %v", err)
		metrics.WatcherErrors.Inc()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &FSWatcher{
		cfg:      cfg,
		handler:  handler,
		fsw:      fsw,
		raw:      make(chan scene.WatcherEvent, cfg.EventBuffer),
		ready:    make(chan scene.WatcherEvent, cfg.EventBuffer),
		ctx:      ctx,
		cancel:   cancel,
		projects: make(map[string]bool),
		dirs:     make(map[string]string),
		status:   StatusActive,
	}

	if cfg.DiscoverProjects {
		if err := fsw.Add(cfg.Root); err != nil {
			logging.Warn("Watcher: cannot watch media root %s for new projects: %v", cfg.Root, err)
		}
	}

	w.wg.Add(3)
	go w.readLoop()
	go w.debounceLoop()
	go w.batchLoop()

	logging.Info("Watcher: started (debounce=%v, batch=%v/%d events, max delay %v)",
		cfg.Debounce, cfg.BatchInterval, cfg.BatchSize, cfg.MaxDelay())
	return w, nil
}

// Watch adds every directory of project to the watch set. Watching an
// already watched project is a no-op.
func (w *FSWatcher) Watch(project string) error {
	if project == "" || strings.ContainsAny(project, `/\`) || project == "." || project == ".." {
		return fmt.Errorf("%w: %q", ErrProjectNotFound, project)
	}
	dir := filepath.Join(w.cfg.Root, project)
	if !filesystem.IsDir(dir) {
		return fmt.Errorf("%w: %s", ErrProjectNotFound, dir)
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	if w.projects[project] {
		w.mu.Unlock()
		return nil
	}
	w.projects[project] = true
	w.mu.Unlock()

	added := w.addTree(project, dir, nil)
	logging.Info("Watcher: watching project %s (%d directories)", project, added)
	w.updateGauges()
	return nil
}

// Unwatch removes every watch belonging to project.
func (w *FSWatcher) Unwatch(project string) error {
	w.mu.Lock()
	if !w.projects[project] {
		w.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotWatched, project)
	}
	delete(w.projects, project)
	var dirs []string
	for dir, p := range w.dirs {
		if p == project {
			dirs = append(dirs, dir)
			delete(w.dirs, dir)
		}
	}
	w.mu.Unlock()

	for _, dir := range dirs {
		// The directory may already be gone; fsnotify drops those watches itself.
		_ = w.fsw.Remove(dir)
	}
	logging.Info("Watcher: stopped watching project %s", project)
	w.updateGauges()
	return nil
}

// Projects returns the watched project ids, sorted.
func (w *FSWatcher) Projects() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	projects := make([]string, 0, len(w.projects))
	for p := range w.projects {
		projects = append(projects, p)
	}
	sort.Strings(projects)
	return projects
}

func (w *FSWatcher) watched(project string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.projects[project]
}

func (w *FSWatcher) updateGauges() {
	w.mu.Lock()
	projects, dirs := len(w.projects), len(w.dirs)
	w.mu.Unlock()
	metrics.WatcherWatchedProjects.Set(float64(projects))
	metrics.WatcherWatchedDirectories.Set(float64(dirs))
}

// addTree watches dir and every non-hidden directory below it. When emit is
// set, files found in the tree are reported to it as created.
func (w *FSWatcher) addTree(project, dir string, emit func(path string)) int {
	added := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Vanished or unreadable entries are skipped, not fatal.
			return nil //nolint:nilerr
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			if emit != nil {
				emit(path)
			}
			return nil
		}

		if addErr := w.fsw.Add(path); addErr != nil {
			logging.Warn("Watcher: failed to add path to watcher %s: %v", path, addErr)
			w.recordError()
			return nil
		}
		w.mu.Lock()
		w.dirs[path] = project
		w.mu.Unlock()
		added++
		return nil
	})
	if err != nil {
		logging.Warn("Watcher: failed to walk %s: %v", dir, err)
		w.recordError()
	}
	return added
}

func (w *FSWatcher) recordError() {
	w.errors.Add(1)
	metrics.WatcherErrors.Inc()
	w.mu.Lock()
	w.errSince++
	w.mu.Unlock()
}

func (w *FSWatcher) readLoop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.Warn("Watcher error: %v", err)
			w.recordError()
		}
	}
}

// handleEvent turns one fsnotify event into zero or more WatcherEvents.
func (w *FSWatcher) handleEvent(event fsnotify.Event) {
	path := filepath.Clean(event.Name)
	if strings.HasPrefix(filepath.Base(path), ".") {
		return
	}

	// New project directory directly below the root.
	if filepath.Dir(path) == w.cfg.Root {
		if w.cfg.DiscoverProjects && event.Op.Has(fsnotify.Create) && filesystem.IsDir(path) {
			if err := w.Watch(filepath.Base(path)); err != nil {
				logging.Debug("Watcher: not watching new project %s: %v", path, err)
			}
		}
		return
	}

	project, ok := scene.ProjectOf(w.cfg.Root, path)
	if !ok || !w.watched(project) {
		metrics.WatcherEventsDropped.WithLabelValues("unwatched").Inc()
		return
	}

	switch {
	case event.Op.Has(fsnotify.Create):
		if filesystem.IsDir(path) {
			w.handleNewDir(project, path)
			return
		}
		w.emitFile(scene.EventCreated, path)
	case event.Op.Has(fsnotify.Write):
		w.emitFile(scene.EventModified, path)
	case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
		// A rename reports the old name here; the new name arrives as Create.
		if w.forgetDir(path) {
			w.emitDir(scene.EventDeleted, path)
			return
		}
		w.emitFile(scene.EventDeleted, path)
	}
}

// handleNewDir watches a directory created under a watched project and
// reports the files that were written into it before the watch existed.
func (w *FSWatcher) handleNewDir(project, dir string) {
	w.emitDir(scene.EventCreated, dir)
	w.addTree(project, dir, func(path string) {
		w.emitFile(scene.EventCreated, path)
	})
	w.updateGauges()
}

// forgetDir drops dir and everything below it from the watch table and
// reports whether dir was a watched directory.
func (w *FSWatcher) forgetDir(dir string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.dirs[dir]; !ok {
		return false
	}
	prefix := dir + string(filepath.Separator)
	for d := range w.dirs {
		if d == dir || strings.HasPrefix(d, prefix) {
			delete(w.dirs, d)
		}
	}
	return true
}

func (w *FSWatcher) emitFile(kind scene.EventKind, path string) {
	loc, ok := scene.ClassifyPath(w.cfg.Root, path)
	if !ok {
		metrics.WatcherEventsDropped.WithLabelValues("unclassified").Inc()
		return
	}
	w.emit(scene.WatcherEvent{
		Kind:      kind,
		FilePath:  path,
		ProjectID: loc.ProjectID,
		SceneID:   loc.SceneID,
		MediaType: loc.MediaType,
		Timestamp: time.Now(),
	})
}

// emitDir reports a scene directory appearing or disappearing. Directories
// outside any scene are not reported.
func (w *FSWatcher) emitDir(kind scene.EventKind, dir string) {
	loc, ok := scene.SceneDirOf(w.cfg.Root, dir)
	if !ok || loc.SceneID == "" {
		return
	}
	w.emit(scene.WatcherEvent{
		Kind:      kind,
		FilePath:  dir,
		ProjectID: loc.ProjectID,
		SceneID:   loc.SceneID,
		Timestamp: time.Now(),
	})
}

func (w *FSWatcher) emit(ev scene.WatcherEvent) {
	w.events.Add(1)
	metrics.WatcherEventsTotal.WithLabelValues(string(ev.Kind)).Inc()
	select {
	case w.raw <- ev:
	case <-w.ctx.Done():
	}
}

type pendingEvent struct {
	event scene.WatcherEvent
	due   time.Time
}

// debounceLoop owns the per-path table. A new event for a path replaces the
// pending one and restarts its quiet period.
func (w *FSWatcher) debounceLoop() {
	defer w.wg.Done()

	pending := make(map[string]pendingEvent)
	ticker := time.NewTicker(w.cfg.debounceTick())
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			if len(pending) > 0 {
				logging.Debug("Watcher: discarding %d pending events on shutdown", len(pending))
			}
			return

		case ev := <-w.raw:
			if _, ok := pending[ev.FilePath]; ok {
				w.coalesced.Add(1)
				metrics.WatcherEventsCoalesced.Inc()
			}
			pending[ev.FilePath] = pendingEvent{event: ev, due: time.Now().Add(w.cfg.Debounce)}

		case now := <-ticker.C:
			for path, p := range pending {
				if now.Before(p.due) {
					continue
				}
				delete(pending, path)
				select {
				case w.ready <- p.event:
				case <-w.ctx.Done():
					return
				}
			}
		}
	}
}

// batchLoop flushes released events every BatchInterval or as soon as
// BatchSize events are queued.
func (w *FSWatcher) batchLoop() {
	defer w.wg.Done()

	queue := make([]scene.WatcherEvent, 0, w.cfg.BatchSize)
	ticker := time.NewTicker(w.cfg.BatchInterval)
	defer ticker.Stop()

	flush := func(trigger string) {
		batch := Batch{ID: uuid.NewString(), Trigger: trigger, Events: queue}
		queue = make([]scene.WatcherEvent, 0, w.cfg.BatchSize)

		w.batches.Add(1)
		metrics.WatcherBatchesTotal.WithLabelValues(trigger).Inc()
		metrics.WatcherBatchSize.Observe(float64(len(batch.Events)))
		logging.Debug("Watcher: flushing batch %s with %d events (%s)", batch.ID, len(batch.Events), trigger)

		if w.handler != nil {
			w.handler.HandleBatch(w.ctx, batch)
		}
	}

	for {
		select {
		case <-w.ctx.Done():
			return
		case ev := <-w.ready:
			queue = append(queue, ev)
			if len(queue) >= w.cfg.BatchSize {
				flush("size")
			}
		case <-ticker.C:
			if len(queue) > 0 {
				flush("interval")
			}
			w.maybeCheckHealth()
		}
	}
}

// Status implements Watcher. It runs the self-check when the last one is
// older than HealthInterval.
func (w *FSWatcher) Status() Status {
	w.maybeCheckHealth()
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

func (w *FSWatcher) maybeCheckHealth() {
	w.mu.Lock()
	due := !w.closed && time.Since(w.lastHealth) >= w.cfg.HealthInterval
	if due {
		w.lastHealth = time.Now()
	}
	w.mu.Unlock()
	if due {
		w.checkHealth()
	}
}

// checkHealth verifies the root and every watched project directory still
// exist and that no backend errors were seen since the previous check.
func (w *FSWatcher) checkHealth() {
	var problems []string
	if !filesystem.IsDir(w.cfg.Root) {
		problems = append(problems, "media root missing")
	}
	for _, p := range w.Projects() {
		if !filesystem.IsDir(filepath.Join(w.cfg.Root, p)) {
			problems = append(problems, "project "+p+" missing")
		}
	}

	w.mu.Lock()
	if w.errSince > 0 {
		problems = append(problems, fmt.Sprintf("%d watcher errors", w.errSince))
		w.errSince = 0
	}
	if w.closed {
		w.mu.Unlock()
		return
	}
	previous := w.status
	if len(problems) > 0 {
		w.status = StatusDegraded
	} else {
		w.status = StatusActive
	}
	current := w.status
	w.mu.Unlock()

	if len(problems) > 0 {
		logging.Warn("Watcher: health check degraded: %s", strings.Join(problems, ", "))
	} else if previous != current {
		logging.Info("Watcher: health check recovered")
	}
}

// Stats implements Watcher.
func (w *FSWatcher) Stats() Stats {
	w.mu.Lock()
	s := Stats{
		Status:      w.status,
		Projects:    len(w.projects),
		Directories: len(w.dirs),
	}
	w.mu.Unlock()
	s.Events = w.events.Load()
	s.Coalesced = w.coalesced.Load()
	s.Batches = w.batches.Load()
	s.Errors = w.errors.Load()
	return s
}

// Close stops the event loops, discards pending events and releases the
// OS watches. It is safe to call more than once.
func (w *FSWatcher) Close() error {
	var err error
	w.once.Do(func() {
		w.mu.Lock()
		w.closed = true
		w.status = StatusStopped
		w.mu.Unlock()

		w.cancel()
		err = w.fsw.Close()
		w.wg.Wait()
		metrics.WatcherWatchedProjects.Set(0)
		metrics.WatcherWatchedDirectories.Set(0)
		logging.Info("Watcher: stopped")
	})
	return err
}
