package lookup

import (
	"context"
	"strings"
	"time"

	"scene-index/internal/logging"
	"scene-index/internal/metrics"
	"scene-index/internal/watcher"
)

// Health returns the result of the last self-check, running a new one when
// the previous check is older than HealthInterval.
func (s *Service) Health(ctx context.Context) string {
	s.healthMu.Lock()
	defer s.healthMu.Unlock()

	if !s.lastHealth.IsZero() && s.now().Sub(s.lastHealth) < s.cfg.HealthInterval {
		return s.health
	}
	s.lastHealth = s.now()

	var problems []string
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.cache.Ping(pingCtx); err != nil {
		problems = append(problems, "cache backend: "+err.Error())
	}
	switch status := s.watcher.Status(); status {
	case watcher.StatusActive, watcher.StatusDisabled:
	default:
		problems = append(problems, "watcher "+string(status))
	}

	previous := s.health
	if len(problems) == 0 {
		s.health = HealthHealthy
	} else {
		s.health = HealthDegraded
	}
	s.logHealth(previous, problems)
	return s.health
}

func (s *Service) logHealth(previous string, problems []string) {
	switch {
	case len(problems) > 0:
		logging.Warn("Lookup: self-check degraded: %s", strings.Join(problems, "; "))
	case previous != HealthHealthy:
		logging.Info("Lookup: self-check recovered")
	case s.cfg.LogHealthChecks:
		logging.Debug("Lookup: self-check healthy")
	}
}

// CollectorStats implements metrics.StatsProvider.
func (s *Service) CollectorStats() metrics.Stats {
	c := s.cache.Counters()
	return metrics.Stats{
		Lookups:         c.Lookups,
		CacheHits:       c.CacheHits,
		CacheMisses:     c.CacheMisses,
		Errors:          c.Errors,
		CacheHitRate:    hitRate(c),
		Healthy:         s.Health(context.Background()) == HealthHealthy,
		WatchedProjects: len(s.watcher.Projects()),
	}
}
