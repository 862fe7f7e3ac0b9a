package cache

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	bolt "go.etcd.io/bbolt"
)

// backendFactory returns a fresh backend and a function advancing its clock.
type backendFactory func(t *testing.T) (Backend, func(time.Duration))

func memoryFactory(t *testing.T) (Backend, func(time.Duration)) {
	m := NewMemoryBackend(0)
	now := time.Now()
	m.now = func() time.Time { return now }
	return m, func(d time.Duration) { now = now.Add(d) }
}

func boltFactory(t *testing.T) (Backend, func(time.Duration)) {
	b, err := NewBoltBackend(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("NewBoltBackend: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	now := time.Now()
	b.now = func() time.Time { return now }
	return b, func(d time.Duration) { now = now.Add(d) }
}

func redisFactory(t *testing.T) (Backend, func(time.Duration)) {
	mr := miniredis.RunT(t)
	b, err := NewRedisBackend(context.Background(), mr.Addr())
	if err != nil {
		t.Fatalf("NewRedisBackend: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b, mr.FastForward
}

var factories = map[string]backendFactory{
	BackendMemory: memoryFactory,
	BackendBolt:   boltFactory,
	BackendRedis:  redisFactory,
}

func TestBackendContract(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			b, advance := factory(t)

			if b.Name() != name {
				t.Errorf("Name() = %q, want %q", b.Name(), name)
			}
			if err := b.Ping(ctx); err != nil {
				t.Fatalf("Ping: %v", err)
			}

			if _, err := b.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
			}

			if err := b.Put(ctx, "a:1", []byte("one"), time.Minute); err != nil {
				t.Fatalf("Put: %v", err)
			}
			got, err := b.Get(ctx, "a:1")
			if err != nil || string(got) != "one" {
				t.Fatalf("Get(a:1) = (%q, %v), want one", got, err)
			}

			// Expiry
			if err := b.Put(ctx, "short", []byte("x"), time.Second); err != nil {
				t.Fatal(err)
			}
			advance(2 * time.Second)
			if _, err := b.Get(ctx, "short"); !errors.Is(err, ErrNotFound) {
				t.Errorf("expired key error = %v, want ErrNotFound", err)
			}
			if _, err := b.Get(ctx, "a:1"); err != nil {
				t.Errorf("unexpired key lost: %v", err)
			}

			// Prefix operations
			for _, key := range []string{"a:2", "a:3", "ab:1", "b:1"} {
				if err := b.Put(ctx, key, []byte(key), time.Minute); err != nil {
					t.Fatal(err)
				}
			}
			keys, err := b.ListPrefix(ctx, "a:")
			if err != nil {
				t.Fatalf("ListPrefix: %v", err)
			}
			sort.Strings(keys)
			if len(keys) != 3 || keys[0] != "a:1" || keys[2] != "a:3" {
				t.Errorf("ListPrefix(a:) = %v, want [a:1 a:2 a:3]", keys)
			}

			n, err := b.DeletePrefix(ctx, "a:")
			if err != nil || n != 3 {
				t.Errorf("DeletePrefix(a:) = (%d, %v), want 3", n, err)
			}
			if _, err := b.Get(ctx, "ab:1"); err != nil {
				t.Errorf("DeletePrefix removed a key outside the prefix: %v", err)
			}

			if err := b.Delete(ctx, "ab:1", "b:1", "never-existed"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if _, err := b.Get(ctx, "b:1"); !errors.Is(err, ErrNotFound) {
				t.Errorf("deleted key still present: %v", err)
			}
		})
	}
}

func TestMemoryBackendBoundsSize(t *testing.T) {
	m := NewMemoryBackend(memoryShards)
	ctx := context.Background()
	for i := 0; i < 500; i++ {
		_ = m.Put(ctx, string(rune('a'+i%26))+time.Duration(i).String(), []byte("v"), 0)
	}
	if m.size() > memoryShards {
		t.Errorf("size() = %d, want at most %d", m.size(), memoryShards)
	}
}

func TestMemoryBackendCopiesValues(t *testing.T) {
	m := NewMemoryBackend(0)
	ctx := context.Background()
	value := []byte("abc")
	_ = m.Put(ctx, "k", value, 0)
	value[0] = 'z'

	got, _ := m.Get(ctx, "k")
	if string(got) != "abc" {
		t.Errorf("stored value changed with caller slice: %q", got)
	}
}

func TestBoltBackendPurgesExpiredOnOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	b, err := NewBoltBackend(path)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	_ = b.Put(ctx, "gone", []byte("x"), time.Millisecond)
	_ = b.Put(ctx, "kept", []byte("y"), time.Hour)
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)

	b, err = NewBoltBackend(path)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	keys, err := b.ListPrefix(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 1 || keys[0] != "kept" {
		t.Errorf("keys after reopen = %v, want [kept]", keys)
	}
}

func TestBoltBackendPurgesExpiredPeriodically(t *testing.T) {
	b, err := newBoltBackend(filepath.Join(t.TempDir(), "cache.db"), 10*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	ctx := context.Background()
	_ = b.Put(ctx, "gone", []byte("x"), time.Millisecond)
	_ = b.Put(ctx, "kept", []byte("y"), time.Hour)

	stored := func() int {
		n := 0
		_ = b.db.View(func(tx *bolt.Tx) error {
			n = tx.Bucket(bucketEntries).Stats().KeyN
			return nil
		})
		return n
	}
	deadline := time.Now().Add(2 * time.Second)
	for stored() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("Expected the expired entry to be purged, %d keys stored", stored())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestBoltBackendClosedIsUnavailable(t *testing.T) {
	b, err := NewBoltBackend(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	_ = b.Close()

	if err := b.Ping(context.Background()); !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("Ping after close = %v, want ErrBackendUnavailable", err)
	}
	if _, err := b.Get(context.Background(), "k"); !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("Get after close = %v, want ErrBackendUnavailable", err)
	}
}

func TestRedisBackendServerDown(t *testing.T) {
	mr := miniredis.RunT(t)
	b := NewRedisBackendFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1}))
	defer b.Close()
	mr.Close()

	ctx := context.Background()
	if _, err := b.Get(ctx, "k"); !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("Get with server down = %v, want ErrBackendUnavailable", err)
	}
	if err := b.Ping(ctx); !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("Ping with server down = %v, want ErrBackendUnavailable", err)
	}
}

func TestRedisBackendUnreachableAtOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	ctx := context.Background()
	b, err := Open(ctx, BackendRedis, addr, 0)
	if err != nil {
		t.Fatalf("Open with server down = %v, expected a degraded backend", err)
	}
	defer b.Close()
	if err := b.Ping(ctx); !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("Ping = %v, want ErrBackendUnavailable", err)
	}

	c := New(b, DefaultConfig())
	if _, ok := c.GetLookup(ctx, "p1", "1"); ok {
		t.Error("Expected a miss from an unreachable backend")
	}
	if c.Counters().Errors == 0 {
		t.Error("Expected the backend failure to be counted")
	}
}

func TestEscapeGlob(t *testing.T) {
	if got := escapeGlob("scene_index:lookup:p[1]*?:"); got != `scene_index:lookup:p\[1\]\*\?:` {
		t.Errorf("escapeGlob = %q", got)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	b, err := Open(ctx, "", "", 0)
	if err != nil || b.Name() != BackendMemory {
		t.Errorf("Open(\"\") = (%v, %v), want memory backend", b, err)
	}

	b, err = Open(ctx, BackendBolt, filepath.Join(t.TempDir(), "c.db"), 0)
	if err != nil || b.Name() != BackendBolt {
		t.Fatalf("Open(bolt) = (%v, %v)", b, err)
	}
	_ = b.Close()

	mr := miniredis.RunT(t)
	b, err = Open(ctx, BackendRedis, mr.Addr(), 0)
	if err != nil || b.Name() != BackendRedis {
		t.Fatalf("Open(redis) = (%v, %v)", b, err)
	}
	_ = b.Close()

	if _, err := Open(ctx, "memcached", "", 0); err == nil {
		t.Error("expected error for unknown backend")
	}
}
