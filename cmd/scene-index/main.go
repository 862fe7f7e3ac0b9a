package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"scene-index/internal/cache"
	"scene-index/internal/filesystem"
	"scene-index/internal/handlers"
	"scene-index/internal/logging"
	"scene-index/internal/lookup"
	"scene-index/internal/memory"
	"scene-index/internal/metrics"
	"scene-index/internal/middleware"
	"scene-index/internal/probe"
	"scene-index/internal/startup"
	"scene-index/internal/workers"

	"github.com/gorilla/mux"
)

const (
	shutdownTimeout    = 30 * time.Second
	collectorInterval  = time.Minute
	cacheOpenTimeout   = 10 * time.Second
	maxScanWorkers     = 32
	serverReadTimeout  = 15 * time.Second
	serverWriteTimeout = 30 * time.Second
	serverIdleTimeout  = 60 * time.Second
	metricsTimeout     = 10 * time.Second
	metricsIdleTimeout = 30 * time.Second
)

func main() {
	startTime := time.Now()

	// Set GOMEMLIMIT before anything large is allocated
	memory.ConfigureFromEnv()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}
	if level, ok := logging.ParseLevel(config.LogLevel); ok {
		logging.SetLevel(level)
	}

	filesystem.SetObserver(metrics.NewFilesystemObserver())

	// Open cache backend
	cacheStart := time.Now()
	openCtx, cancelOpen := context.WithTimeout(context.Background(), cacheOpenTimeout)
	backend, err := cache.Open(openCtx, config.CacheBackend, config.CacheAddr, config.CacheMaxEntries)
	cancelOpen()
	if err != nil {
		startup.LogFatal("Failed to open %s cache: %v", config.CacheBackend, err)
	}
	startup.LogCacheInit(backend.Name(), config.CacheAddr, time.Since(cacheStart))
	sceneCache := cache.New(backend, cache.Config{IndexTTL: config.IndexTTL, LookupTTL: config.LookupTTL})

	startup.LogProbeInit(config.ProbeMetadata, config.FFprobePath)

	memMonitor := memory.NewMonitor(memory.DefaultConfig())
	memMonitor.Start()

	svcConfig := serviceConfig(config)
	svcConfig.Builder.Memory = memMonitor
	svc := lookup.New(svcConfig, sceneCache)
	if err := svc.Start(context.Background()); err != nil {
		logging.Error("Failed to start change watcher: %v", err)
	}
	startup.LogWatcherInit(string(svc.WatcherStatus()), svc.WatchedProjects())

	metrics.InitializeMetrics(backend.Name())
	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion, backend.Name())
	collector := metrics.NewCollector(svc, collectorInterval)
	collector.Start()

	h := handlers.New(svc)
	router := setupRouter(h)
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	srv := newServer(":"+config.Port, wrapHandler(router, config.LogHealthChecks))

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsSrv = newMetricsServer(":"+config.MetricsPort, h)
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		handleShutdown(srv, metricsSrv, collector, memMonitor, svc)
	}()

	h.SetReady(true)
	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := serve(srv, shutdownDone); err != nil {
		startup.LogFatal("Server error: %v", err)
	}
}

// serve runs srv until it is shut down, then blocks until the rest of the
// shutdown sequence has finished.
func serve(srv *http.Server, shutdownDone <-chan struct{}) error {
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	<-shutdownDone
	return nil
}

// serviceConfig maps the application configuration onto the lookup service.
func serviceConfig(config *startup.Config) lookup.Config {
	cfg := lookup.DefaultConfig(config.MediaRoot)
	cfg.ListingMaxAge = config.ListingMaxAge
	cfg.RebuildDebounce = config.RebuildDebounce
	cfg.HealthInterval = config.HealthInterval
	cfg.LogHealthChecks = config.LogHealthChecks

	cfg.Builder.NumWorkers = workers.Resolve(config.ScanWorkers, maxScanWorkers)
	cfg.Builder.Prober = probe.New(config.ProbeMetadata, config.FFprobePath, config.ProbeTimeout)

	cfg.WatchEnabled = config.WatchEnabled
	if len(config.WatchProjects) > 0 {
		cfg.WatchProjects = config.WatchProjects
	}
	cfg.Watcher.Debounce = config.WatchDebounce
	cfg.Watcher.BatchInterval = config.BatchInterval
	cfg.Watcher.BatchSize = config.BatchSize
	cfg.Watcher.HealthInterval = config.HealthInterval
	return cfg
}

// setupRouter registers every route. The metrics middleware runs inside the
// router so requests are labelled with their route template.
func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))
	h.Register(r)
	return r
}

// wrapHandler applies request logging around the router.
func wrapHandler(router http.Handler, logHealthChecks bool) http.Handler {
	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = logHealthChecks
	return middleware.Logger(loggingConfig)(router)
}

func newServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}
}

func newMetricsServer(addr string, h *handlers.Handlers) *http.Server {
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", h.MetricsHandler())
	metricsMux.HandleFunc("/health", h.LivenessCheck)
	return &http.Server{
		Addr:         addr,
		Handler:      metricsMux,
		ReadTimeout:  metricsTimeout,
		WriteTimeout: metricsTimeout,
		IdleTimeout:  metricsIdleTimeout,
	}
}

func handleShutdown(srv, metricsSrv *http.Server, collector *metrics.Collector, memMonitor *memory.Monitor, svc *lookup.Service) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	shutdown(ctx, srv, metricsSrv, collector, memMonitor, svc)
}

// shutdown drains the HTTP servers and then stops every background component.
func shutdown(ctx context.Context, srv, metricsSrv *http.Server, collector *metrics.Collector, memMonitor *memory.Monitor, svc *lookup.Service) {
	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownStep("Stopping metrics collector")
	collector.Stop()
	startup.LogShutdownStepComplete("Metrics collector stopped")

	if metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownStep("Stopping memory monitor")
	memMonitor.Stop()
	startup.LogShutdownStepComplete("Memory monitor stopped")

	startup.LogShutdownStep("Stopping change watcher and closing cache")
	if err := svc.Close(); err != nil {
		logging.Warn("Service close error: %v", err)
	} else {
		startup.LogShutdownStepComplete("Lookup service closed")
	}

	startup.LogShutdownComplete()
}
