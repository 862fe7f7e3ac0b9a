package cache

import (
	"context"
	"hash/fnv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const memoryShards = 16

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryBackend is an in-process Backend. Keys are spread over independently
// locked LRU shards so concurrent readers of different keys rarely contend.
// Stale scene markers live in separate shards that are never evicted for
// size; they leave only by expiry or deletion.
type MemoryBackend struct {
	shards [memoryShards]*expirable.LRU[string, memoryEntry]
	marks  [memoryShards]*expirable.LRU[string, memoryEntry]
	now    func() time.Time
}

// NewMemoryBackend creates a memory backend holding at most maxEntries keys
// in total (0 for no limit), stale markers excepted. Least recently used
// keys are evicted first.
func NewMemoryBackend(maxEntries int) *MemoryBackend {
	perShard := 0
	if maxEntries > 0 {
		perShard = (maxEntries + memoryShards - 1) / memoryShards
	}
	m := &MemoryBackend{now: time.Now}
	for i := range m.shards {
		// Expiry is tracked per entry; the LRU only bounds the size.
		m.shards[i] = expirable.NewLRU[string, memoryEntry](perShard, nil, 0)
		m.marks[i] = expirable.NewLRU[string, memoryEntry](0, nil, 0)
	}
	return m
}

func (m *MemoryBackend) shard(key string) *expirable.LRU[string, memoryEntry] {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	if strings.HasPrefix(key, staleNamespace) {
		return m.marks[h.Sum32()%memoryShards]
	}
	return m.shards[h.Sum32()%memoryShards]
}

func (m *MemoryBackend) all() []*expirable.LRU[string, memoryEntry] {
	all := make([]*expirable.LRU[string, memoryEntry], 0, 2*memoryShards)
	all = append(all, m.shards[:]...)
	return append(all, m.marks[:]...)
}

// Name implements Backend.
func (m *MemoryBackend) Name() string { return BackendMemory }

// Get implements Backend.
func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	s := m.shard(key)
	entry, ok := s.Get(key)
	if !ok {
		return nil, ErrNotFound
	}
	if !entry.expiresAt.IsZero() && !m.now().Before(entry.expiresAt) {
		s.Remove(key)
		return nil, ErrNotFound
	}
	return entry.value, nil
}

// Put implements Backend. A non-positive ttl stores the key without expiry.
func (m *MemoryBackend) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}
	m.shard(key).Add(key, entry)
	return nil
}

// Delete implements Backend.
func (m *MemoryBackend) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		m.shard(key).Remove(key)
	}
	return nil
}

// DeletePrefix implements Backend.
func (m *MemoryBackend) DeletePrefix(_ context.Context, prefix string) (int, error) {
	removed := 0
	for _, s := range m.all() {
		for _, key := range s.Keys() {
			if strings.HasPrefix(key, prefix) && s.Remove(key) {
				removed++
			}
		}
	}
	return removed, nil
}

// ListPrefix implements Backend.
func (m *MemoryBackend) ListPrefix(_ context.Context, prefix string) ([]string, error) {
	now := m.now()
	var keys []string
	for _, s := range m.all() {
		for _, key := range s.Keys() {
			if !strings.HasPrefix(key, prefix) {
				continue
			}
			// Peek does not promote the key in the LRU order.
			entry, ok := s.Peek(key)
			if !ok {
				continue
			}
			if !entry.expiresAt.IsZero() && !now.Before(entry.expiresAt) {
				s.Remove(key)
				continue
			}
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// size returns the number of stored keys, including expired ones not yet reclaimed.
func (m *MemoryBackend) size() int {
	n := 0
	for _, s := range m.all() {
		n += s.Len()
	}
	return n
}

// Ping implements Backend.
func (m *MemoryBackend) Ping(context.Context) error { return nil }

// Close implements Backend.
func (m *MemoryBackend) Close() error {
	for _, s := range m.all() {
		s.Purge()
	}
	return nil
}
