package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"scene-index/internal/logging"
	"scene-index/internal/lookup"
	"scene-index/internal/watcher"

	"github.com/gorilla/mux"
)

// VideoResponse is the body of a successful scene video lookup.
type VideoResponse struct {
	Project string `json:"project"`
	Scene   string `json:"scene"`
	Path    string `json:"path"`
}

// SuccessResponse reports the outcome of a maintenance call.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Project string `json:"project,omitempty"`
	Error   string `json:"error,omitempty"`
}

// FindSceneVideo resolves the video of one scene.
func (h *Handlers) FindSceneVideo(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	project, target := vars["project"], vars["scene"]

	path, ok, err := h.svc.FindSceneVideo(r.Context(), target, project)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !ok {
		writeJSONError(w, "no video for scene "+target+" in project "+project, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, VideoResponse{Project: project, Scene: target, Path: path})
}

// maxBatchScenes bounds the number of scenes in one batch lookup.
const maxBatchScenes = 1000

// BatchLookupRequest is the body of a batch scene video lookup.
type BatchLookupRequest struct {
	Scenes []string `json:"scenes"`
}

// FindSceneVideos resolves many scenes of one project in a single request.
func (h *Handlers) FindSceneVideos(w http.ResponseWriter, r *http.Request) {
	project := mux.Vars(r)["project"]

	var req BatchLookupRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Scenes) > maxBatchScenes {
		writeJSONError(w, "too many scenes in one request", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, h.svc.FindSceneVideos(r.Context(), project, req.Scenes))
}

// GetAllSceneVideos lists one video per scene in scene order.
func (h *Handlers) GetAllSceneVideos(w http.ResponseWriter, r *http.Request) {
	project := mux.Vars(r)["project"]

	videos, err := h.svc.GetAllSceneVideos(r.Context(), project)
	if err != nil {
		writeJSONStatusCode(w, SuccessResponse{Project: project, Error: err.Error()}, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, videos)
}

// GetSceneStatus reports the media of every scene of a project.
func (h *Handlers) GetSceneStatus(w http.ResponseWriter, r *http.Request) {
	project := mux.Vars(r)["project"]

	status, err := h.svc.GetSceneStatus(r.Context(), project)
	if err != nil {
		writeJSONStatusCode(w, SuccessResponse{Project: project, Error: err.Error()}, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, status)
}

// UpdateSceneIndex rebuilds a project index; ?force=true bypasses the
// rebuild debounce.
func (h *Handlers) UpdateSceneIndex(w http.ResponseWriter, r *http.Request) {
	project := mux.Vars(r)["project"]

	force := false
	if raw := r.URL.Query().Get("force"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeJSONError(w, "invalid force value "+strconv.Quote(raw), http.StatusBadRequest)
			return
		}
		force = parsed
	}

	if !h.svc.UpdateSceneIndex(r.Context(), project, force) {
		writeJSONStatusCode(w, SuccessResponse{Project: project, Error: "index rebuild failed"}, http.StatusInternalServerError)
		return
	}
	writeJSONStatusCode(w, SuccessResponse{Success: true, Project: project}, http.StatusOK)
}

// InvalidateSceneCache drops cached data for a project, or for one scene
// when ?scene= is given.
func (h *Handlers) InvalidateSceneCache(w http.ResponseWriter, r *http.Request) {
	project := mux.Vars(r)["project"]

	if err := h.svc.InvalidateSceneCache(r.Context(), project, r.URL.Query().Get("scene")); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// WatchProject starts watching a project for changes. A watcher that is
// disabled or unavailable is reported with success=false and status 200.
func (h *Handlers) WatchProject(w http.ResponseWriter, r *http.Request) {
	project := mux.Vars(r)["project"]

	err := h.svc.WatchProject(project)
	switch {
	case err == nil:
		writeJSONStatusCode(w, SuccessResponse{Success: true, Project: project}, http.StatusOK)
	case errors.Is(err, lookup.ErrUnknownProject):
		writeJSONStatusCode(w, SuccessResponse{Project: project, Error: err.Error()}, http.StatusNotFound)
	default:
		logging.Warn("Watch request for project %s failed: %v", project, err)
		writeJSONStatusCode(w, SuccessResponse{Project: project, Error: err.Error()}, http.StatusOK)
	}
}

// UnwatchProject stops watching a project.
func (h *Handlers) UnwatchProject(w http.ResponseWriter, r *http.Request) {
	project := mux.Vars(r)["project"]

	err := h.svc.UnwatchProject(project)
	switch {
	case err == nil:
		writeJSONStatusCode(w, SuccessResponse{Success: true, Project: project}, http.StatusOK)
	case errors.Is(err, watcher.ErrNotWatched):
		writeJSONStatusCode(w, SuccessResponse{Project: project, Error: err.Error()}, http.StatusNotFound)
	default:
		writeJSONStatusCode(w, SuccessResponse{Project: project, Error: err.Error()}, http.StatusOK)
	}
}

// GetStats returns the service performance counters. It answers 200 even
// when the service is degraded.
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, h.svc.GetPerformanceStats(r.Context()))
}
