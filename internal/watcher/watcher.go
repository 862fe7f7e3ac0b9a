package watcher

import (
	"context"
	"errors"
	"time"

	"scene-index/internal/scene"
)

var (
	// ErrUnavailable is returned when the OS notification backend cannot be used.
	ErrUnavailable = errors.New("filesystem watcher unavailable")
	// ErrDisabled is returned by a watcher turned off in configuration.
	ErrDisabled = errors.New("filesystem watcher disabled")
	// ErrProjectNotFound is returned when asked to watch a project with no directory.
	ErrProjectNotFound = errors.New("project directory not found")
	// ErrNotWatched is returned when unwatching a project that is not watched.
	ErrNotWatched = errors.New("project not watched")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("watcher closed")
)

// Status is the reported state of a Watcher.
type Status string

const (
	StatusActive      Status = "active"
	StatusDegraded    Status = "degraded"
	StatusUnavailable Status = "unavailable"
	StatusDisabled    Status = "disabled"
	StatusStopped     Status = "stopped"
)

// Batch is a group of debounced events flushed together.
type Batch struct {
	ID      string
	Trigger string // "interval" or "size"
	Events  []scene.WatcherEvent
}

// Handler consumes flushed batches. Batches are delivered one at a time.
type Handler interface {
	HandleBatch(ctx context.Context, batch Batch)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, batch Batch)

// HandleBatch implements Handler.
func (f HandlerFunc) HandleBatch(ctx context.Context, batch Batch) { f(ctx, batch) }

// Stats reports cumulative watcher activity.
type Stats struct {
	Status      Status `json:"status"`
	Projects    int    `json:"projects"`
	Directories int    `json:"directories"`
	Events      int64  `json:"events"`
	Coalesced   int64  `json:"coalesced"`
	Batches     int64  `json:"batches"`
	Errors      int64  `json:"errors"`
}

// Watcher keeps the cache informed of filesystem changes under watched projects.
type Watcher interface {
	Watch(project string) error
	Unwatch(project string) error
	Projects() []string
	Status() Status
	Stats() Stats
	Close() error
}

// Config configures a filesystem watcher.
type Config struct {
	Root           string
	Debounce       time.Duration
	BatchInterval  time.Duration
	BatchSize      int
	HealthInterval time.Duration
	// DiscoverProjects watches the root itself so new project directories
	// are picked up without an explicit Watch call.
	DiscoverProjects bool
	EventBuffer      int
}

// DefaultConfig returns the standard timings for root.
func DefaultConfig(root string) Config {
	return Config{
		Root:           root,
		Debounce:       500 * time.Millisecond,
		BatchInterval:  2 * time.Second,
		BatchSize:      100,
		HealthInterval: 60 * time.Second,
		EventBuffer:    1024,
	}
}

// debounceTick is how often the debounce table is swept for released events.
func (c Config) debounceTick() time.Duration {
	tick := c.Debounce / 4
	if tick < 5*time.Millisecond {
		tick = 5 * time.Millisecond
	}
	return tick
}

// MaxDelay is the longest a settled file change can wait before its batch
// is handed to the handler: the debounce quiet period, one sweep of the
// debounce table and one batch interval.
func (c Config) MaxDelay() time.Duration {
	return c.Debounce + c.debounceTick() + c.BatchInterval
}

func (c *Config) applyDefaults() {
	d := DefaultConfig(c.Root)
	if c.Debounce <= 0 {
		c.Debounce = d.Debounce
	}
	if c.BatchInterval <= 0 {
		c.BatchInterval = d.BatchInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.HealthInterval <= 0 {
		c.HealthInterval = d.HealthInterval
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = d.EventBuffer
	}
}

// New returns an fsnotify backed watcher, or a Disabled watcher reporting
// unavailable when the platform backend cannot be created.
func New(cfg Config, handler Handler) Watcher {
	w, err := NewFS(cfg, handler)
	if err != nil {
		return NewDisabled(StatusUnavailable)
	}
	return w
}

// Disabled is a Watcher that never reports changes.
type Disabled struct {
	status Status
}

// NewDisabled returns a no-op watcher reporting status.
func NewDisabled(status Status) *Disabled {
	return &Disabled{status: status}
}

func (d *Disabled) err() error {
	if d.status == StatusDisabled {
		return ErrDisabled
	}
	return ErrUnavailable
}

// Watch implements Watcher.
func (d *Disabled) Watch(string) error { return d.err() }

// Unwatch implements Watcher.
func (d *Disabled) Unwatch(string) error { return d.err() }

// Projects implements Watcher.
func (d *Disabled) Projects() []string { return nil }

// Status implements Watcher.
func (d *Disabled) Status() Status { return d.status }

// Stats implements Watcher.
func (d *Disabled) Stats() Stats { return Stats{Status: d.status} }

// Close implements Watcher.
func (d *Disabled) Close() error { return nil }
