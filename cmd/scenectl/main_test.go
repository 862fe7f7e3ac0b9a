package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"scene-index/internal/lookup"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
}

// setupMediaRoot lays out p1 with a video in scene_1, audio in scene_2 and
// an empty scene_3.
func setupMediaRoot(t *testing.T) (root, video1 string) {
	t.Helper()
	t.Setenv("SCENE_INDEX_CONFIG", "")
	root = t.TempDir()
	video1 = filepath.Join(root, "p1", "scene_1", "video", "scene_1.mp4")
	writeFile(t, video1)
	writeFile(t, filepath.Join(root, "p1", "scene_2", "audio", "voice.wav"))
	if err := os.MkdirAll(filepath.Join(root, "p1", "scene_3"), 0o755); err != nil {
		t.Fatal(err)
	}
	return root, video1
}

func runCLI(t *testing.T, root string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--root", root, "--cache", "memory"}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestLookupCommand(t *testing.T) {
	root, video1 := setupMediaRoot(t)

	tests := []struct {
		name    string
		scene   string
		want    string
		wantErr string
	}{
		{name: "canonical", scene: "scene_1", want: video1},
		{name: "zero padded", scene: "scene_01", want: video1},
		{name: "bare number", scene: "1", want: video1},
		{name: "no video", scene: "scene_2", wantErr: "no video for scene"},
		{name: "alias to empty scene", scene: "scene_last", wantErr: "no video for scene"},
		{name: "invalid", scene: "scene_", wantErr: "invalid scene target"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := runCLI(t, root, "lookup", "p1", tt.scene)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("lookup: %v", err)
			}
			if strings.TrimSpace(out) != tt.want {
				t.Errorf("Expected %s, got %q", tt.want, out)
			}
		})
	}
}

func TestLookupCommandJSON(t *testing.T) {
	root, video1 := setupMediaRoot(t)

	out, _, err := runCLI(t, root, "--json", "lookup", "p1", "scene_1")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	var result lookupResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if !result.Found || result.Path != video1 || result.Project != "p1" {
		t.Errorf("Unexpected result %+v", result)
	}

	out, _, err = runCLI(t, root, "--json", "lookup", "p1", "scene_3")
	if err == nil {
		t.Fatal("Expected an error for a scene without video")
	}
	result = lookupResult{}
	if jerr := json.Unmarshal([]byte(out), &result); jerr != nil || result.Found {
		t.Errorf("Expected found=false in %q", out)
	}
}

func TestLookupManyScenes(t *testing.T) {
	root, video1 := setupMediaRoot(t)

	out, _, err := runCLI(t, root, "lookup", "p1", "scene_1", "01")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	want := "scene_1\t" + video1 + "\n01\t" + video1 + "\n"
	if out != want {
		t.Errorf("Expected %q, got %q", want, out)
	}

	out, _, err = runCLI(t, root, "--json", "lookup", "p1", "scene_1", "scene_2", "scene_")
	if err == nil || !strings.Contains(err.Error(), "2 of 3 scenes") {
		t.Fatalf("Expected a missing-scenes error, got %v", err)
	}
	var results []lookupResult
	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(results) != 3 || !results[0].Found || results[1].Found || results[2].Found {
		t.Errorf("Unexpected results %+v", results)
	}
}

func TestLookupRequiresArguments(t *testing.T) {
	root, _ := setupMediaRoot(t)
	if _, _, err := runCLI(t, root, "lookup", "p1"); err == nil {
		t.Error("Expected an argument error")
	}
}

func TestVideosCommand(t *testing.T) {
	root, video1 := setupMediaRoot(t)
	video3 := filepath.Join(root, "p1", "scene_3", "video", "take.mov")
	writeFile(t, video3)

	out, _, err := runCLI(t, root, "videos", "p1")
	if err != nil {
		t.Fatalf("videos: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 || lines[0] != video1 || lines[1] != video3 {
		t.Errorf("Unexpected listing %q", out)
	}

	out, stderr, err := runCLI(t, root, "videos", "missing")
	if err != nil {
		t.Fatalf("videos missing: %v", err)
	}
	if out != "" || !strings.Contains(stderr, "No videos") {
		t.Errorf("Expected empty output, got stdout=%q stderr=%q", out, stderr)
	}

	out, _, err = runCLI(t, root, "--json", "videos", "missing")
	if err != nil {
		t.Fatalf("videos missing json: %v", err)
	}
	if strings.TrimSpace(out) != "[]" {
		t.Errorf("Expected [], got %q", out)
	}
}

func TestStatusCommand(t *testing.T) {
	root, _ := setupMediaRoot(t)

	out, stderr, err := runCLI(t, root, "status", "p1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	want := []string{
		"1\t1\t0\t0\tyes",
		"2\t0\t1\t0\tno",
		"3\t0\t0\t0\tno",
	}
	if got := strings.Split(strings.TrimSpace(out), "\n"); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("Expected %q, got %q", want, got)
	}
	if !strings.Contains(stderr, "3 scenes, 1 with video, 2 files") {
		t.Errorf("Unexpected summary %q", stderr)
	}

	out, _, err = runCLI(t, root, "--json", "status", "p1")
	if err != nil {
		t.Fatalf("status json: %v", err)
	}
	var status lookup.ProjectStatus
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.ProjectID != "p1" || status.ScenesWithAudio != 1 {
		t.Errorf("Unexpected status %+v", status)
	}
}

func TestRebuildCommand(t *testing.T) {
	root, _ := setupMediaRoot(t)

	out, _, err := runCLI(t, root, "rebuild", "p1", "--force")
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if !strings.HasPrefix(out, "Rebuilt p1 in ") {
		t.Errorf("Unexpected output %q", out)
	}

	writeFile(t, filepath.Join(root, "broken"))
	if _, _, err := runCLI(t, root, "rebuild", "broken"); err == nil || !strings.Contains(err.Error(), "broken") {
		t.Errorf("Expected a rebuild failure naming the project, got %v", err)
	}
}

func TestStatsCommand(t *testing.T) {
	root, _ := setupMediaRoot(t)

	out, _, err := runCLI(t, root, "--json", "stats")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	var stats lookup.PerformanceStats
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if stats.Health != lookup.HealthHealthy || stats.CacheBackend != "memory" || stats.WatcherStatus != "disabled" {
		t.Errorf("Unexpected stats %+v", stats)
	}

	out, _, err = runCLI(t, root, "stats")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if !strings.Contains(out, "cache backend\tmemory") {
		t.Errorf("Expected plain rows, got %q", out)
	}
}

func TestBoltCacheIsReusedAcrossInvocations(t *testing.T) {
	root, video1 := setupMediaRoot(t)
	dbPath := filepath.Join(t.TempDir(), "scenes.db")

	for i := 0; i < 2; i++ {
		cmd := newRootCommand()
		var stdout bytes.Buffer
		cmd.SetOut(&stdout)
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"--root", root, "--cache", "bolt", "--cache-addr", dbPath, "lookup", "p1", "1"})
		if err := cmd.Execute(); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if strings.TrimSpace(stdout.String()) != video1 {
			t.Errorf("run %d: unexpected output %q", i, stdout.String())
		}
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("Expected bolt file to exist: %v", err)
	}
}

func TestCacheBackendValidation(t *testing.T) {
	root, _ := setupMediaRoot(t)

	if _, _, err := runCLI(t, root, "--cache", "nope", "stats"); err == nil {
		t.Error("Expected an error for an unknown backend")
	}

	cmd := newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--root", root, "--cache", "redis", "stats"})
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "CACHE_ADDR") {
		t.Errorf("Expected a missing address error, got %v", err)
	}
}

func TestWatchCommand(t *testing.T) {
	root, _ := setupMediaRoot(t)
	t.Setenv("WATCH_DEBOUNCE", "50ms")
	t.Setenv("BATCH_INTERVAL", "50ms")

	cmd := newRootCommand()
	stdout, stderr := &syncBuffer{}, &syncBuffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs([]string{"--root", root, "--cache", "memory", "watch", "p1", "--for", "5s"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- cmd.ExecuteContext(ctx)
	}()

	started := false
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && !started {
		select {
		case err := <-done:
			if errors.Is(err, errWatcherNotActive) {
				t.Skipf("filesystem notifications unavailable: %v", err)
			}
			t.Fatalf("watch exited early: %v", err)
		default:
		}
		started = strings.Contains(stderr.String(), "Watching p1")
		time.Sleep(10 * time.Millisecond)
	}
	if !started {
		t.Fatal("watch did not start")
	}

	created := filepath.Join(root, "p1", "scene_3", "video", "scene_3.mp4")
	writeFile(t, created)
	waitFor(t, 3*time.Second, func() bool { return strings.Contains(stdout.String(), created) })
	if !strings.Contains(stdout.String(), "scene 3") {
		t.Errorf("Expected scene id in output, got %q", stdout.String())
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("watch returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("watch did not stop after cancellation")
	}
}

func TestWatchUnknownProject(t *testing.T) {
	root, _ := setupMediaRoot(t)
	_, _, err := runCLI(t, root, "watch", "nope", "--for", "10ms")
	if err == nil {
		t.Fatal("Expected an error for an unknown project")
	}
	if !errors.Is(err, errWatcherNotActive) && !strings.Contains(err.Error(), "cannot be watched") {
		t.Errorf("Unexpected error %v", err)
	}
}

func TestRenderTable(t *testing.T) {
	rendered := renderTable([]string{"Scene", "Videos"}, [][]string{{"1", "2"}, {"10"}}, []columnAlignment{alignLeft, alignRight})
	for _, want := range []string{"Scene", "Videos", "10"} {
		if !strings.Contains(rendered, want) {
			t.Errorf("Expected %q in table:\n%s", want, rendered)
		}
	}
	if renderTable(nil, nil, nil) != "" {
		t.Error("Expected empty output without headers")
	}

	var buf bytes.Buffer
	writeTable(&buf, []string{"A", "B"}, [][]string{{"x", "y"}}, nil)
	if buf.String() != "x\ty\n" {
		t.Errorf("Expected plain output for a non-terminal, got %q", buf.String())
	}
}
