package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"scene-index/internal/cache"
	"scene-index/internal/logging"
	"scene-index/internal/lookup"
	"scene-index/internal/probe"
	"scene-index/internal/startup"
	"scene-index/internal/watcher"
	"scene-index/internal/workers"
)

const maxScanWorkers = 32

type globalOptions struct {
	root         string
	cacheBackend string
	cacheAddr    string
	json         bool
	verbose      bool
}

type commandContext struct {
	opts *globalOptions

	configOnce sync.Once
	config     *startup.Config
	configErr  error
}

func newCommandContext(opts *globalOptions) *commandContext {
	return &commandContext{opts: opts}
}

// applyLogLevel keeps the CLI quiet unless --verbose is set. LOG_LEVEL still
// wins when it asks for something noisier than warn.
func (c *commandContext) applyLogLevel() {
	if c.opts.verbose {
		logging.SetLevel(logging.LevelDebug)
		return
	}
	if logging.GetLevel() < logging.LevelWarn {
		logging.SetLevel(logging.LevelWarn)
	}
}

// ensureConfig layers the command line flags over the server configuration
// (defaults, SCENE_INDEX_CONFIG file, environment).
func (c *commandContext) ensureConfig() (*startup.Config, error) {
	c.configOnce.Do(func() {
		v, err := startup.NewViper()
		if err != nil {
			c.configErr = err
			return
		}
		if root := strings.TrimSpace(c.opts.root); root != "" {
			v.Set("media_root", root)
		}
		if backend := strings.TrimSpace(c.opts.cacheBackend); backend != "" {
			v.Set("cache_backend", backend)
		}
		if addr := strings.TrimSpace(c.opts.cacheAddr); addr != "" {
			v.Set("cache_addr", addr)
		}
		c.config, c.configErr = startup.FromViper(v)
	})
	return c.config, c.configErr
}

// serviceOptions tunes the service opened for a single command.
type serviceOptions struct {
	watchProjects []string
	onBatch       func(watcher.Batch)
}

func (c *commandContext) openService(ctx context.Context, so serviceOptions) (*lookup.Service, error) {
	config, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	backend, err := cache.Open(ctx, config.CacheBackend, config.CacheAddr, config.CacheMaxEntries)
	if err != nil {
		return nil, fmt.Errorf("open %s cache: %w", config.CacheBackend, err)
	}
	sceneCache := cache.New(backend, cache.Config{IndexTTL: config.IndexTTL, LookupTTL: config.LookupTTL})

	cfg := lookup.DefaultConfig(config.MediaRoot)
	cfg.ListingMaxAge = config.ListingMaxAge
	cfg.RebuildDebounce = config.RebuildDebounce
	cfg.LogHealthChecks = false
	cfg.Builder.NumWorkers = workers.Resolve(config.ScanWorkers, maxScanWorkers)
	cfg.Builder.Prober = probe.New(config.ProbeMetadata, config.FFprobePath, config.ProbeTimeout)

	cfg.WatchEnabled = len(so.watchProjects) > 0
	cfg.WatchProjects = so.watchProjects
	cfg.Watcher.Debounce = config.WatchDebounce
	cfg.Watcher.BatchInterval = config.BatchInterval
	cfg.Watcher.BatchSize = config.BatchSize
	cfg.OnBatch = so.onBatch

	return lookup.New(cfg, sceneCache), nil
}

// withService opens a service, runs fn and closes the service again.
func (c *commandContext) withService(ctx context.Context, fn func(*lookup.Service) error) error {
	svc, err := c.openService(ctx, serviceOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := svc.Close(); cerr != nil {
			logging.Warn("scenectl: close: %v", cerr)
		}
	}()
	return fn(svc)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
