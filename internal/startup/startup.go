package startup

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"scene-index/internal/logging"

	"github.com/gorilla/mux"
	"github.com/spf13/viper"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// ConfigFileEnv names the environment variable pointing at an optional YAML
// configuration file.
const ConfigFileEnv = "SCENE_INDEX_CONFIG"

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Config holds all application configuration
type Config struct {
	MediaRoot      string
	Port           string
	MetricsPort    string
	MetricsEnabled bool

	CacheBackend    string
	CacheAddr       string
	CacheMaxEntries int
	IndexTTL        time.Duration
	LookupTTL       time.Duration
	ListingMaxAge   time.Duration
	RebuildDebounce time.Duration

	WatchEnabled   bool
	WatchProjects  []string
	WatchDebounce  time.Duration
	BatchInterval  time.Duration
	BatchSize      int
	HealthInterval time.Duration

	ProbeMetadata bool
	FFprobePath   string
	ProbeTimeout  time.Duration
	ScanWorkers   int

	LogLevel        string
	LogHealthChecks bool
}

var defaults = map[string]any{
	"media_root":        "/projects",
	"port":              "8080",
	"metrics_port":      "9090",
	"metrics_enabled":   true,
	"cache_backend":     "memory",
	"cache_addr":        "",
	"cache_max_entries": 100000,
	"index_ttl":         "1h",
	"lookup_ttl":        "1h",
	"listing_max_age":   "10m",
	"rebuild_debounce":  "5m",
	"watch_enabled":     true,
	"watch_projects":    "*",
	"watch_debounce":    "500ms",
	"batch_interval":    "2s",
	"batch_size":        100,
	"health_interval":   "60s",
	"probe_metadata":    false,
	"ffprobe_path":      "ffprobe",
	"probe_timeout":     "10s",
	"scan_workers":      0,
	"log_level":         "info",
	"log_health_checks": true,
}

// NewViper returns a viper instance with the defaults, the optional YAML file
// named by SCENE_INDEX_CONFIG and the environment layered in that order.
func NewViper() (*viper.Viper, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	if path := os.Getenv(ConfigFileEnv); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}
	v.AutomaticEnv()
	return v, nil
}

// LoadConfig logs the startup banner, then loads and validates configuration
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	v, err := NewViper()
	if err != nil {
		return nil, err
	}
	config, err := FromViper(v)
	if err != nil {
		return nil, err
	}
	logConfig(config, v.ConfigFileUsed())

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Media root (absolute): %s", config.MediaRoot)
	if err := ensureDirectory(config.MediaRoot, "media"); err != nil {
		logging.Warn("  Media root issue: %v", err)
	}
	return config, nil
}

// FromViper builds a Config from v. Unparseable values fall back to their
// defaults with a warning; an unknown cache backend is an error.
func FromViper(v *viper.Viper) (*Config, error) {
	mediaRoot, err := filepath.Abs(v.GetString("media_root"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve media root path: %w", err)
	}

	config := &Config{
		MediaRoot:      mediaRoot,
		Port:           v.GetString("port"),
		MetricsPort:    v.GetString("metrics_port"),
		MetricsEnabled: getBool(v, "metrics_enabled"),

		CacheBackend:    strings.ToLower(strings.TrimSpace(v.GetString("cache_backend"))),
		CacheAddr:       v.GetString("cache_addr"),
		CacheMaxEntries: getInt(v, "cache_max_entries"),
		IndexTTL:        getDuration(v, "index_ttl"),
		LookupTTL:       getDuration(v, "lookup_ttl"),
		ListingMaxAge:   getDuration(v, "listing_max_age"),
		RebuildDebounce: getDuration(v, "rebuild_debounce"),

		WatchEnabled:   getBool(v, "watch_enabled"),
		WatchProjects:  getList(v, "watch_projects"),
		WatchDebounce:  getDuration(v, "watch_debounce"),
		BatchInterval:  getDuration(v, "batch_interval"),
		BatchSize:      getInt(v, "batch_size"),
		HealthInterval: getDuration(v, "health_interval"),

		ProbeMetadata: getBool(v, "probe_metadata"),
		FFprobePath:   v.GetString("ffprobe_path"),
		ProbeTimeout:  getDuration(v, "probe_timeout"),
		ScanWorkers:   getInt(v, "scan_workers"),

		LogLevel:        v.GetString("log_level"),
		LogHealthChecks: getBool(v, "log_health_checks"),
	}

	switch config.CacheBackend {
	case "memory", "bolt", "redis":
	default:
		return nil, fmt.Errorf("unknown CACHE_BACKEND %q (want memory, bolt or redis)", config.CacheBackend)
	}
	if config.CacheBackend != "memory" && config.CacheAddr == "" {
		return nil, fmt.Errorf("CACHE_ADDR is required for the %s cache backend", config.CacheBackend)
	}
	return config, nil
}

func logConfig(c *Config, configFile string) {
	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")
	if configFile != "" {
		logging.Info("  Config file:         %s", configFile)
	}
	logging.Info("  MEDIA_ROOT:          %s", c.MediaRoot)
	logging.Info("  PORT:                %s", c.Port)
	logging.Info("  METRICS_PORT:        %s", c.MetricsPort)
	logging.Info("  METRICS_ENABLED:     %v", c.MetricsEnabled)
	logging.Info("  CACHE_BACKEND:       %s", c.CacheBackend)
	if c.CacheAddr != "" {
		logging.Info("  CACHE_ADDR:          %s", c.CacheAddr)
	}
	logging.Info("  INDEX_TTL:           %v", c.IndexTTL)
	logging.Info("  LOOKUP_TTL:          %v", c.LookupTTL)
	logging.Info("  LISTING_MAX_AGE:     %v", c.ListingMaxAge)
	logging.Info("  REBUILD_DEBOUNCE:    %v", c.RebuildDebounce)
	logging.Info("  WATCH_ENABLED:       %v", c.WatchEnabled)
	logging.Info("  WATCH_PROJECTS:      %s", strings.Join(c.WatchProjects, ","))
	logging.Info("  WATCH_DEBOUNCE:      %v", c.WatchDebounce)
	logging.Info("  BATCH_INTERVAL:      %v", c.BatchInterval)
	logging.Info("  BATCH_SIZE:          %d", c.BatchSize)
	logging.Info("  HEALTH_INTERVAL:     %v", c.HealthInterval)
	logging.Info("  PROBE_METADATA:      %v", c.ProbeMetadata)
	logging.Info("  LOG_HEALTH_CHECKS:   %v", c.LogHealthChecks)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())
}

func getDuration(v *viper.Viper, key string) time.Duration {
	raw := v.GetString(key)
	d, err := time.ParseDuration(raw)
	if err == nil && d > 0 {
		return d
	}
	fallback, _ := time.ParseDuration(defaults[key].(string))
	logging.Warn("  Invalid %s %q, using default: %v", strings.ToUpper(key), raw, fallback)
	return fallback
}

func getBool(v *viper.Viper, key string) bool {
	raw := strings.TrimSpace(v.GetString(key))
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		fallback := defaults[key].(bool)
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", strings.ToUpper(key), raw, fallback)
		return fallback
	}
	return parsed
}

func getInt(v *viper.Viper, key string) int {
	raw := strings.TrimSpace(v.GetString(key))
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed < 0 {
		fallback := defaults[key].(int)
		logging.Warn("Invalid integer value for %s: %q, using default: %d", strings.ToUpper(key), raw, fallback)
		return fallback
	}
	return parsed
}

// getList accepts a comma separated string or a YAML list.
func getList(v *viper.Viper, key string) []string {
	var items []string
	if s, ok := v.Get(key).(string); ok {
		items = strings.Split(s, ",")
	} else {
		items = v.GetStringSlice(key)
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// LogCacheInit logs the selected cache backend
func LogCacheInit(backend, addr string, duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("CACHE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	if addr != "" {
		logging.Info("  [OK] %s cache at %s opened in %v", backend, addr, duration)
	} else {
		logging.Info("  [OK] %s cache opened in %v", backend, duration)
	}
}

// LogProbeInit logs prober selection and checks ffprobe when it is needed
func LogProbeInit(probeMetadata bool, ffprobePath string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("MEDIA PROBE INITIALIZATION")
	logging.Info("------------------------------------------------------------")

	if !probeMetadata {
		logging.Info("  Metadata probing disabled, records carry size and mtime only")
		return
	}

	if err := checkFFprobe(ffprobePath); err != nil {
		logging.Warn("  FFprobe check failed: %v", err)
		logging.Warn("  Video and audio durations will not be reported")
	} else {
		logging.Info("  [OK] FFprobe is available")
	}
}

// LogWatcherInit logs the change watcher state after startup
func LogWatcherInit(status string, projects []string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("CHANGE WATCHER INITIALIZATION")
	logging.Info("------------------------------------------------------------")

	switch status {
	case "active":
		logging.Info("  [OK] Watching %d projects", len(projects))
		for _, p := range projects {
			logging.Debug("    %s", p)
		}
	case "disabled":
		logging.Info("  Change watcher disabled (set WATCH_ENABLED=true to enable)")
	default:
		logging.Warn("  Change watcher %s", status)
		logging.Warn("  Cached data will only refresh on TTL expiry or manual rebuild")
	}
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			// Route might not restrict methods
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}
		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes dynamically
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))
		logging.Debug("")

		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		for _, group := range groupKeys {
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}
			for _, route := range groups[group] {
				logging.Debug("    %-6s %s", route.Method, route.Path)
			}
			logging.Debug("")
		}
	}

	logging.Info("  HTTP logging enabled")
	if logHealthChecks {
		logging.Info("    Health check logging: ON")
	} else {
		logging.Info("    Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")

	parts := strings.SplitN(path, "/", 2)
	first := parts[0]

	// API routes group by their second segment
	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}

	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    API:           http://0.0.0.0:%s/api", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:       %s", enabledString(false))
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

func printBanner() {
	banner := `
------------------------------------------------------------
   ____                        ___           _
  / ___|  ___ ___ _ __   ___  |_ _|_ __   __| | _____  __
  \___ \ / __/ _ \ '_ \ / _ \  | || '_ \ / _' |/ _ \ \/ /
   ___) | (_|  __/ | | |  __/  | || | | | (_| |  __/>  <
  |____/ \___\___|_| |_|\___| |___|_| |_|\__,_|\___/_/\_\

------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		logging.Debug("  Goroutines:      %d", runtime.NumGoroutine())
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

// ensureDirectory checks that path is a directory. The media root is never
// created; an absent root only means no projects yet.
func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")

	if logging.IsDebugEnabled() {
		entries, err := os.ReadDir(path)
		if err == nil {
			dirCount := 0
			for _, e := range entries {
				if e.IsDir() {
					dirCount++
				}
			}
			logging.Debug("    Contents: %d project directories (top level)", dirCount)
		}
	}

	return nil
}

func checkFFprobe(binary string) error {
	path, err := exec.LookPath(binary)
	if err != nil {
		return fmt.Errorf("%s not found in PATH", binary)
	}
	logging.Debug("  FFprobe path: %s", path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		return fmt.Errorf("failed to get ffprobe version: %w", err)
	}

	lines := strings.Split(string(output), "\n")
	if len(lines) > 0 {
		logging.Debug("  FFprobe version: %s", strings.TrimSpace(lines[0]))
	}
	return nil
}
