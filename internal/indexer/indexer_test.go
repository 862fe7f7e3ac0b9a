package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"scene-index/internal/mediatypes"
	"scene-index/internal/probe"
	"scene-index/internal/scene"
)

// createTestFile creates a file with the given size, making parent directories.
func createTestFile(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatalf("Failed to create file %s: %v", path, err)
	}
}

func newTestBuilder(t *testing.T, root string) *Builder {
	t.Helper()
	cfg := DefaultConfig(root)
	cfg.NumWorkers = 4
	return New(cfg)
}

// blockingProber holds every probe until release is closed.
type blockingProber struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
	calls   atomic.Int64
}

func (p *blockingProber) Probe(ctx context.Context, path string, mt mediatypes.MediaType) (probe.Info, error) {
	p.calls.Add(1)
	p.once.Do(func() { close(p.started) })
	<-p.release
	return probe.NewStatProber().Probe(ctx, path, mt)
}

func TestBuildProjectIndex(t *testing.T) {
	root := t.TempDir()
	createTestFile(t, filepath.Join(root, "p1", "scene_1", "video", "scene_1.mp4"), 500*1024)
	createTestFile(t, filepath.Join(root, "p1", "scene_1", "audio", "voice.wav"), 10)
	createTestFile(t, filepath.Join(root, "p1", "scene_1", "images", "frame.png"), 10)
	createTestFile(t, filepath.Join(root, "p1", "scene_1", "video", "notes.txt"), 10)
	createTestFile(t, filepath.Join(root, "p1", "scene_1", "video", ".hidden.mp4"), 10)
	if err := os.MkdirAll(filepath.Join(root, "p1", "scene_2"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(root, "p1", "assets"), 0o755); err != nil {
		t.Fatal(err)
	}

	b := newTestBuilder(t, root)
	before := time.Now()
	idx, err := b.BuildProjectIndex(context.Background(), "p1")
	if err != nil {
		t.Fatalf("BuildProjectIndex: %v", err)
	}

	if idx.ProjectID != "p1" {
		t.Errorf("ProjectID = %q", idx.ProjectID)
	}
	if idx.BuiltAt.Before(before) {
		t.Errorf("BuiltAt %v is before the build started", idx.BuiltAt)
	}
	if len(idx.Scenes) != 2 {
		t.Fatalf("expected 2 scenes, got %v", idx.SceneIDs())
	}
	if idx.TotalFiles != 3 {
		t.Errorf("TotalFiles = %d, want 3", idx.TotalFiles)
	}

	s1 := idx.Scenes["1"]
	if len(s1.Videos) != 1 || len(s1.Audio) != 1 || len(s1.Images) != 1 {
		t.Fatalf("scene 1 records = %d/%d/%d, want 1/1/1", len(s1.Videos), len(s1.Audio), len(s1.Images))
	}
	video := s1.Videos[0]
	if video.SizeBytes != 500*1024 || video.Format != "mp4" || video.SceneID != "1" || video.ProjectID != "p1" {
		t.Errorf("unexpected video record: %+v", video)
	}
	if !filepath.IsAbs(video.Path) {
		t.Errorf("record path %q is not absolute", video.Path)
	}

	s2 := idx.Scenes["2"]
	if s2 == nil || s2.FileCount() != 0 {
		t.Errorf("scene 2 should exist with no files, got %+v", s2)
	}
}

func TestBuildProjectIndexMissingProject(t *testing.T) {
	b := newTestBuilder(t, t.TempDir())

	idx, err := b.BuildProjectIndex(context.Background(), "nope")
	if err != nil {
		t.Fatalf("missing project should not be an error: %v", err)
	}
	if len(idx.Scenes) != 0 || idx.TotalFiles != 0 {
		t.Errorf("expected empty index, got %+v", idx)
	}
}

func TestBuildProjectIndexInvalidProject(t *testing.T) {
	b := newTestBuilder(t, t.TempDir())

	for _, project := range []string{"", "..", "a/b"} {
		if _, err := b.BuildProjectIndex(context.Background(), project); err == nil {
			t.Errorf("expected error for project id %q", project)
		}
	}
}

func TestBuildProjectIndexUnreadableProject(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}
	root := t.TempDir()
	projectDir := filepath.Join(root, "p1")
	if err := os.MkdirAll(projectDir, 0o000); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(projectDir, 0o755) })

	b := newTestBuilder(t, root)
	if _, err := b.BuildProjectIndex(context.Background(), "p1"); err == nil {
		t.Error("expected scan failure for unreadable project")
	}
}

func TestListScenesCollisionFirstWins(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{"scene_02", "scene_2", "scene_last", "scene_intro", "scenery", ".scene_9"} {
		if err := os.MkdirAll(filepath.Join(root, "p1", dir), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	createTestFile(t, filepath.Join(root, "p1", "scene_5"), 1) // a file, not a directory

	dirs, err := newTestBuilder(t, root).ListScenes(context.Background(), "p1")
	if err != nil {
		t.Fatal(err)
	}
	if len(dirs) != 2 {
		t.Fatalf("expected 2 scene dirs, got %+v", dirs)
	}
	if dirs[0].ID != "2" || dirs[0].Name != "scene_02" {
		t.Errorf("expected scene_02 to win id 2, got %+v", dirs[0])
	}
	if dirs[1].ID != "intro" {
		t.Errorf("expected intro scene, got %+v", dirs[1])
	}
}

func TestBuildIsSingleFlight(t *testing.T) {
	root := t.TempDir()
	createTestFile(t, filepath.Join(root, "p1", "scene_1", "video", "scene_1.mp4"), 10)

	prober := &blockingProber{started: make(chan struct{}), release: make(chan struct{})}
	var published atomic.Int64
	cfg := DefaultConfig(root)
	cfg.Prober = prober
	cfg.Publish = func(context.Context, *scene.ProjectIndex) { published.Add(1) }
	b := New(cfg)

	ctx := context.Background()
	type result struct {
		idx    *scene.ProjectIndex
		joined bool
		err    error
	}
	first := make(chan result, 1)
	go func() {
		idx, joined, err := b.Build(ctx, "p1")
		first <- result{idx, joined, err}
	}()

	<-prober.started
	if !b.inFlight("p1") {
		t.Fatal("expected p1 to be in flight")
	}

	if _, started, _ := b.TryBuild(ctx, "p1"); started {
		t.Error("TryBuild should not start a second scan")
	}

	second := make(chan result, 1)
	go func() {
		idx, joined, err := b.Build(ctx, "p1")
		second <- result{idx, joined, err}
	}()

	// Give the second caller time to join before releasing the scan.
	time.Sleep(20 * time.Millisecond)
	close(prober.release)

	r1, r2 := <-first, <-second
	if r1.err != nil || r2.err != nil {
		t.Fatalf("errors: %v, %v", r1.err, r2.err)
	}
	if r1.joined || !r2.joined {
		t.Errorf("joined = %v/%v, want false/true", r1.joined, r2.joined)
	}
	if r1.idx != r2.idx {
		t.Error("joined caller should receive the same snapshot")
	}
	if got := b.Stats().Scans; got != 1 {
		t.Errorf("Scans = %d, want 1", got)
	}
	if got := published.Load(); got != 1 {
		t.Errorf("published = %d, want 1", got)
	}
	if b.inFlight("p1") {
		t.Error("p1 should no longer be in flight")
	}
}

func TestBuildJoinHonoursContext(t *testing.T) {
	root := t.TempDir()
	createTestFile(t, filepath.Join(root, "p1", "scene_1", "video", "scene_1.mp4"), 10)

	prober := &blockingProber{started: make(chan struct{}), release: make(chan struct{})}
	cfg := DefaultConfig(root)
	cfg.Prober = prober
	b := New(cfg)

	go func() { _, _, _ = b.Build(context.Background(), "p1") }()
	<-prober.started
	defer close(prober.release)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, joined, err := b.Build(ctx, "p1"); !joined || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Build = (joined %v, %v), want joined with deadline error", joined, err)
	}
}

func TestSceneVideoPriority(t *testing.T) {
	root := t.TempDir()
	videoDir := filepath.Join(root, "p1", "scene_3", "video")
	for _, name := range []string{"other.mp4", "scene_3.mp4", "scene_3_generated.mp4", "readme.txt"} {
		createTestFile(t, filepath.Join(videoDir, name), 10)
	}

	b := newTestBuilder(t, root)
	for i := 0; i < 5; i++ {
		path, ok, err := b.SceneVideo(context.Background(), "p1", "3")
		if err != nil || !ok {
			t.Fatalf("SceneVideo = (%q, %v, %v)", path, ok, err)
		}
		if filepath.Base(path) != "scene_3_generated.mp4" {
			t.Fatalf("SceneVideo = %s, want the generated file", path)
		}
	}

	if err := os.Remove(filepath.Join(videoDir, "scene_3_generated.mp4")); err != nil {
		t.Fatal(err)
	}
	path, _, _ := b.SceneVideo(context.Background(), "p1", "3")
	if filepath.Base(path) != "scene_3.mp4" {
		t.Errorf("SceneVideo after removal = %s, want scene_3.mp4", path)
	}
	if got := b.Stats().DirectScans; got != 6 {
		t.Errorf("DirectScans = %d, want 6", got)
	}
}

func TestSceneVideoMissing(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "p1", "scene_2"), 0o755); err != nil {
		t.Fatal(err)
	}
	b := newTestBuilder(t, root)

	for _, tc := range []struct{ project, scene string }{{"p1", "2"}, {"p1", "9"}, {"nope", "1"}} {
		if path, ok, err := b.SceneVideo(context.Background(), tc.project, tc.scene); ok || err != nil {
			t.Errorf("SceneVideo(%s, %s) = (%q, %v, %v), want absent", tc.project, tc.scene, path, ok, err)
		}
	}
}

func TestScanScene(t *testing.T) {
	root := t.TempDir()
	createTestFile(t, filepath.Join(root, "p1", "scene_04", "audio", "a.mp3"), 10)

	entry, ok, err := newTestBuilder(t, root).ScanScene(context.Background(), "p1", "4")
	if err != nil || !ok {
		t.Fatalf("ScanScene = (%v, %v)", ok, err)
	}
	if entry.ID != "4" || entry.Dir != "scene_04" || len(entry.Audio) != 1 {
		t.Errorf("unexpected entry %+v", entry)
	}
}

func TestResolveAlias(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{"scene_1", "scene_2", "scene_10", "scene_outro"} {
		if err := os.MkdirAll(filepath.Join(root, "p1", dir), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	b := newTestBuilder(t, root)

	id, ok, err := b.ResolveAlias(context.Background(), "p1")
	if err != nil || !ok || id != "10" {
		t.Fatalf("ResolveAlias = (%q, %v, %v), want 10", id, ok, err)
	}

	// Re-read on every call.
	if err := os.MkdirAll(filepath.Join(root, "p1", "scene_11"), 0o755); err != nil {
		t.Fatal(err)
	}
	if id, _, _ := b.ResolveAlias(context.Background(), "p1"); id != "11" {
		t.Errorf("ResolveAlias after new scene = %q, want 11", id)
	}

	if _, ok, err := b.ResolveAlias(context.Background(), "missing"); ok || err != nil {
		t.Errorf("ResolveAlias(missing) = (%v, %v), want absent without error", ok, err)
	}
}

func TestBuildManyScenes(t *testing.T) {
	root := t.TempDir()
	for i := 1; i <= 100; i++ {
		name := "scene_" + strconv.Itoa(i)
		createTestFile(t, filepath.Join(root, "p1", name, "video", name+".mp4"), 1)
	}

	idx, err := newTestBuilder(t, root).BuildProjectIndex(context.Background(), "p1")
	if err != nil {
		t.Fatal(err)
	}
	if len(idx.Scenes) != 100 || idx.TotalFiles != 100 {
		t.Errorf("got %d scenes and %d files, want 100 and 100", len(idx.Scenes), idx.TotalFiles)
	}
	ids := idx.SceneIDs()
	if ids[0] != "1" || ids[99] != "100" {
		t.Errorf("scene order = %s..%s, want 1..100", ids[0], ids[99])
	}
}

// countingGate lets the first allow scenes through and then reports a
// stopped monitor.
type countingGate struct {
	allow int64
	calls atomic.Int64
}

func (g *countingGate) WaitIfPaused() bool {
	return g.calls.Add(1) <= g.allow
}

func TestMemoryGate(t *testing.T) {
	root := t.TempDir()
	for i := 1; i <= 5; i++ {
		name := "scene_" + strconv.Itoa(i)
		createTestFile(t, filepath.Join(root, "p1", name, "video", name+".mp4"), 1)
	}

	tests := []struct {
		name    string
		allow   int64
		wantErr bool
	}{
		{name: "open gate scans every scene", allow: 100},
		{name: "stopped gate abandons the scan", allow: 2, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := &countingGate{allow: tt.allow}
			cfg := DefaultConfig(root)
			cfg.NumWorkers = 2
			cfg.Memory = gate

			idx, err := New(cfg).BuildProjectIndex(context.Background(), "p1")
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if len(idx.Scenes) != 5 || gate.calls.Load() != 5 {
				t.Errorf("got %d scenes after %d gate calls, want 5 and 5", len(idx.Scenes), gate.calls.Load())
			}
		})
	}
}
