package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned by a Backend when a key is absent or expired.
	ErrNotFound = errors.New("cache: key not found")

	// ErrBackendUnavailable wraps every transport or storage failure of a Backend.
	ErrBackendUnavailable = errors.New("cache backend unavailable")
)

// Backend is the key-value store behind a SceneCache. Implementations must be
// safe for concurrent use and must honour per-key TTLs.
type Backend interface {
	// Name identifies the backend in logs and metrics.
	Name() string
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// DeletePrefix removes every key starting with prefix and reports how many went.
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	// ListPrefix returns the live keys starting with prefix, in no particular order.
	ListPrefix(ctx context.Context, prefix string) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendBolt   = "bolt"
	BackendRedis  = "redis"
)

// Open builds the Backend named by kind. addr is the bbolt file path or the
// redis address, and is ignored by the memory backend.
func Open(ctx context.Context, kind, addr string, maxEntries int) (Backend, error) {
	switch kind {
	case "", BackendMemory:
		return NewMemoryBackend(maxEntries), nil
	case BackendBolt:
		return NewBoltBackend(addr)
	case BackendRedis:
		return NewRedisBackend(ctx, addr)
	}
	return nil, fmt.Errorf("unknown cache backend %q", kind)
}
