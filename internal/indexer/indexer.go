package indexer

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"scene-index/internal/filesystem"
	"scene-index/internal/logging"
	"scene-index/internal/metrics"
	"scene-index/internal/probe"
	"scene-index/internal/scene"
	"scene-index/internal/workers"
)

// Config configures a Builder.
type Config struct {
	// Root is the media root holding one directory per project.
	Root string
	// NumWorkers is the scene scan pool size (0 = auto based on CPU).
	NumWorkers int
	// Prober collects per-file facts; defaults to a stat-only prober.
	Prober probe.Prober
	// Retry is the NFS retry policy for directory listings.
	Retry filesystem.RetryConfig
	// SkipHidden skips files and directories starting with ".".
	SkipHidden bool
	// Memory, when set, is consulted before each scene is handed to a
	// worker so scans wait out memory pressure.
	Memory Gate
	// Publish, when set, is called with every successful snapshot before
	// callers waiting on the same rebuild are released.
	Publish func(ctx context.Context, idx *scene.ProjectIndex)
}

// Gate holds back scan work. WaitIfPaused returns false when the scan
// should be abandoned.
type Gate interface {
	WaitIfPaused() bool
}

// DefaultConfig returns the builder defaults for root.
func DefaultConfig(root string) Config {
	return Config{
		Root:       root,
		NumWorkers: workers.ForIO(16),
		Retry:      filesystem.DefaultRetryConfig(),
		SkipHidden: true,
	}
}

// flight is an in-progress project rebuild that later callers can join.
type flight struct {
	done  chan struct{}
	index *scene.ProjectIndex
	err   error
}

// Stats reports cumulative builder activity.
type Stats struct {
	Scans        int64         `json:"scans"`
	DirectScans  int64         `json:"direct_scans"`
	LastBuild    time.Time     `json:"last_build,omitempty"`
	LastDuration time.Duration `json:"last_duration"`
}

// Builder scans project directories into ProjectIndex snapshots. At most one
// scan per project runs at any time.
type Builder struct {
	cfg Config

	mu       sync.Mutex
	inflight map[string]*flight

	scans       atomic.Int64
	directScans atomic.Int64
	lastBuild   atomic.Value // time.Time
	lastDur     atomic.Int64
}

// New creates a Builder.
func New(cfg Config) *Builder {
	if abs, err := filepath.Abs(cfg.Root); err == nil {
		cfg.Root = abs
	}
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = workers.ForIO(16)
	}
	if cfg.Prober == nil {
		cfg.Prober = probe.NewStatProber()
	}
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.InitialBackoff == 0 {
		cfg.Retry = filesystem.DefaultRetryConfig()
	}
	metrics.IndexerScanWorkers.Set(float64(cfg.NumWorkers))

	return &Builder{
		cfg:      cfg,
		inflight: make(map[string]*flight),
	}
}

// Root returns the absolute media root.
func (b *Builder) Root() string { return b.cfg.Root }

// ValidProjectID reports whether id can name a directory directly below the root.
func ValidProjectID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}

// ProjectDir returns the directory of project.
func (b *Builder) ProjectDir(project string) string {
	return filepath.Join(b.cfg.Root, project)
}

// Build scans project, or waits for the scan already running for it.
// joined reports whether the result came from another caller's scan.
func (b *Builder) Build(ctx context.Context, project string) (idx *scene.ProjectIndex, joined bool, err error) {
	f, leader := b.begin(project)
	if !leader {
		select {
		case <-f.done:
			return f.index, true, f.err
		case <-ctx.Done():
			return nil, true, ctx.Err()
		}
	}
	b.run(ctx, project, f)
	return f.index, false, f.err
}

// TryBuild scans project unless a scan is already running, in which case
// it returns immediately with started == false.
func (b *Builder) TryBuild(ctx context.Context, project string) (idx *scene.ProjectIndex, started bool, err error) {
	f, leader := b.begin(project)
	if !leader {
		return nil, false, nil
	}
	b.run(ctx, project, f)
	return f.index, true, f.err
}

// inFlight reports whether a scan of project is running.
func (b *Builder) inFlight(project string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.inflight[project]
	return ok
}

func (b *Builder) begin(project string) (*flight, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if f, ok := b.inflight[project]; ok {
		return f, false
	}
	f := &flight{done: make(chan struct{})}
	b.inflight[project] = f
	return f, true
}

func (b *Builder) run(ctx context.Context, project string, f *flight) {
	defer func() {
		b.mu.Lock()
		delete(b.inflight, project)
		b.mu.Unlock()
		close(f.done)
	}()

	metrics.IndexerRebuildsInFlight.Inc()
	defer metrics.IndexerRebuildsInFlight.Dec()

	f.index, f.err = b.BuildProjectIndex(ctx, project)
	if f.err != nil {
		metrics.IndexerRebuildsTotal.WithLabelValues("error").Inc()
		logging.Error("Indexer: rebuild of project %s failed: %v", project, f.err)
		return
	}
	metrics.IndexerRebuildsTotal.WithLabelValues("success").Inc()
	if b.cfg.Publish != nil {
		b.cfg.Publish(ctx, f.index)
	}
}

// Stats returns cumulative builder activity.
func (b *Builder) Stats() Stats {
	s := Stats{
		Scans:        b.scans.Load(),
		DirectScans:  b.directScans.Load(),
		LastDuration: time.Duration(b.lastDur.Load()),
	}
	if t, ok := b.lastBuild.Load().(time.Time); ok {
		s.LastBuild = t
	}
	return s
}

func (b *Builder) errorf(project, format string, args ...any) error {
	return fmt.Errorf("project %s: "+format, append([]any{project}, args...)...)
}
