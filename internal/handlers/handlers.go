package handlers

import (
	"net/http"
	"sync/atomic"
	"time"

	"scene-index/internal/lookup"

	"github.com/gorilla/mux"
)

// Handlers exposes a lookup.Service over HTTP.
type Handlers struct {
	svc       *lookup.Service
	startTime time.Time
	ready     atomic.Bool
}

// New creates the handlers. Readiness stays false until SetReady(true).
func New(svc *lookup.Service) *Handlers {
	return &Handlers{
		svc:       svc,
		startTime: time.Now(),
	}
}

// SetReady marks the service as ready to accept traffic.
func (h *Handlers) SetReady(ready bool) {
	h.ready.Store(ready)
}

// Register adds every API and health route to router.
func (h *Handlers) Register(router *mux.Router) {
	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet, http.MethodHead)
	router.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet, http.MethodHead)
	router.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	router.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet, http.MethodHead)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet)
	api.HandleFunc("/stats", h.GetStats).Methods(http.MethodGet)

	project := api.PathPrefix("/projects/{project}").Subrouter()
	project.HandleFunc("/scenes/{scene}/video", h.FindSceneVideo).Methods(http.MethodGet)
	project.HandleFunc("/scenes/videos", h.FindSceneVideos).Methods(http.MethodPost)
	project.HandleFunc("/videos", h.GetAllSceneVideos).Methods(http.MethodGet)
	project.HandleFunc("/status", h.GetSceneStatus).Methods(http.MethodGet)
	project.HandleFunc("/index", h.UpdateSceneIndex).Methods(http.MethodPost)
	project.HandleFunc("/cache", h.InvalidateSceneCache).Methods(http.MethodDelete)
	project.HandleFunc("/watch", h.WatchProject).Methods(http.MethodPost)
	project.HandleFunc("/watch", h.UnwatchProject).Methods(http.MethodDelete)
}
