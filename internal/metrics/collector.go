package metrics

import (
	"time"

	"scene-index/internal/logging"
)

// StatsProvider interface for collecting stats
type StatsProvider interface {
	CollectorStats() Stats
}

// Stats holds the service-level values the collector mirrors into gauges.
type Stats struct {
	Lookups         int64
	CacheHits       int64
	CacheMisses     int64
	Errors          int64
	CacheHitRate    float64
	Healthy         bool
	WatchedProjects int
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
	doneChan      chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
		doneChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection and waits for the loop to exit.
func (c *Collector) Stop() {
	close(c.stopChan)
	<-c.doneChan
}

func (c *Collector) collectLoop() {
	defer close(c.doneChan)

	// Collect immediately on start
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	stats := c.statsProvider.CollectorStats()

	CacheHitRate.Set(stats.CacheHitRate)
	WatcherWatchedProjects.Set(float64(stats.WatchedProjects))
	if stats.Healthy {
		ServiceHealthy.Set(1)
	} else {
		ServiceHealthy.Set(0)
	}

	logging.Debug("Metrics collected: lookups=%d, hits=%d, misses=%d, errors=%d, hit_rate=%.1f%%",
		stats.Lookups, stats.CacheHits, stats.CacheMisses, stats.Errors, stats.CacheHitRate)
}
