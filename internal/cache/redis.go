package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"scene-index/internal/logging"
)

const redisScanCount = 500

// RedisBackend keeps entries in a redis server so several processes on one
// host can share a warm index. TTLs map directly onto redis expiry.
type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend connects to addr, which is either a redis:// URL or a
// host:port pair. A failed PING is logged and the backend is returned anyway:
// operations degrade to misses until the server is reachable.
func NewRedisBackend(ctx context.Context, addr string) (*RedisBackend, error) {
	if addr == "" {
		addr = "localhost:6379"
	}

	var opts *redis.Options
	if parsed, err := redis.ParseURL(addr); err == nil {
		opts = parsed
	} else {
		opts = &redis.Options{Addr: addr}
	}
	opts.DialTimeout = 2 * time.Second
	opts.ReadTimeout = time.Second
	opts.WriteTimeout = time.Second

	b := &RedisBackend{client: redis.NewClient(opts)}
	if err := b.Ping(ctx); err != nil {
		logging.Warn("Cache: redis at %s not reachable, serving from direct scans until it is: %v", opts.Addr, err)
	}
	return b, nil
}

// NewRedisBackendFromClient wraps an existing client without pinging it.
func NewRedisBackendFromClient(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

// Name implements Backend.
func (b *RedisBackend) Name() string { return BackendRedis }

// Get implements Backend.
func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := b.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable("get", err)
	}
	return data, nil
}

// Put implements Backend.
func (b *RedisBackend) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := b.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return unavailable("put", err)
	}
	return nil
}

// Delete implements Backend.
func (b *RedisBackend) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := b.client.Del(ctx, keys...).Err(); err != nil {
		return unavailable("delete", err)
	}
	return nil
}

// DeletePrefix implements Backend.
func (b *RedisBackend) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	keys, err := b.scan(ctx, prefix)
	if err != nil {
		return 0, unavailable("delete_prefix", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := b.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, unavailable("delete_prefix", err)
	}
	return int(n), nil
}

// ListPrefix implements Backend.
func (b *RedisBackend) ListPrefix(ctx context.Context, prefix string) ([]string, error) {
	keys, err := b.scan(ctx, prefix)
	if err != nil {
		return nil, unavailable("list_prefix", err)
	}
	return keys, nil
}

func (b *RedisBackend) scan(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := b.client.Scan(ctx, 0, escapeGlob(prefix)+"*", redisScanCount).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	return keys, iter.Err()
}

// escapeGlob quotes the characters redis MATCH treats as patterns.
func escapeGlob(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '*', '?', '[', ']', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}

// Ping implements Backend.
func (b *RedisBackend) Ping(ctx context.Context) error {
	if err := b.client.Ping(ctx).Err(); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Close implements Backend.
func (b *RedisBackend) Close() error {
	return b.client.Close()
}
