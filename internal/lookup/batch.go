package lookup

import (
	"context"
	"sync"
	"time"

	"scene-index/internal/workers"
)

const maxBatchWorkers = 16

// SceneVideo is one result of FindSceneVideos.
type SceneVideo struct {
	Scene string `json:"scene"`
	Path  string `json:"path,omitempty"`
	Found bool   `json:"found"`
	Error string `json:"error,omitempty"`
}

// FindSceneVideos resolves many scene targets of one project. Results are in
// input order; an unparseable target is reported in its own result and does
// not fail the others. Targets still queued when ctx ends come back not found.
func (s *Service) FindSceneVideos(ctx context.Context, project string, targets []string) []SceneVideo {
	defer s.observe("find_scene_videos", time.Now())

	results := make([]SceneVideo, len(targets))
	for i, t := range targets {
		results[i].Scene = t
	}
	if len(targets) == 0 {
		return results
	}

	numWorkers := workers.ForIO(maxBatchWorkers)
	if numWorkers > len(targets) {
		numWorkers = len(targets)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for pos := range jobs {
				path, ok, err := s.FindSceneVideo(ctx, targets[pos], project)
				if err != nil {
					results[pos].Error = err.Error()
					continue
				}
				results[pos].Path, results[pos].Found = path, ok
			}
		}()
	}

enqueue:
	for pos := range targets {
		select {
		case jobs <- pos:
		case <-ctx.Done():
			break enqueue
		}
	}
	close(jobs)
	wg.Wait()
	return results
}
