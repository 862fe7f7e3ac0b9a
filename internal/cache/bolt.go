package cache

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"scene-index/internal/logging"
)

var bucketEntries = []byte("scene_index")

const boltPurgeInterval = 10 * time.Minute

// BoltBackend stores entries in a single bbolt file. Every value is prefixed
// with its expiry as big-endian unix nanoseconds (0 for none).
type BoltBackend struct {
	db   *bolt.DB
	path string
	now  func() time.Time

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewBoltBackend opens (or creates) the bbolt file at path and drops any
// entries that expired while the process was down. Expired entries are
// purged again every ten minutes until Close.
func NewBoltBackend(path string) (*BoltBackend, error) {
	return newBoltBackend(path, boltPurgeInterval)
}

func newBoltBackend(path string, purgeEvery time.Duration) (*BoltBackend, error) {
	if path == "" {
		return nil, fmt.Errorf("bolt backend: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("bolt backend: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketEntries)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	b := &BoltBackend{
		db:   db,
		path: path,
		now:  time.Now,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	b.purge()
	go b.purgeLoop(purgeEvery)
	return b, nil
}

func (b *BoltBackend) purgeLoop(every time.Duration) {
	defer close(b.done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			b.purge()
		case <-b.stop:
			return
		}
	}
}

func (b *BoltBackend) purge() {
	if n, err := b.purgeExpired(); err != nil {
		logging.Warn("Cache: failed to purge expired bolt entries: %v", err)
	} else if n > 0 {
		logging.Info("Cache: purged %d expired entries from %s", n, b.path)
	}
}

func (b *BoltBackend) encode(value []byte, ttl time.Duration) []byte {
	var expires int64
	if ttl > 0 {
		expires = b.now().Add(ttl).UnixNano()
	}
	buf := make([]byte, 8+len(value))
	binary.BigEndian.PutUint64(buf, uint64(expires))
	copy(buf[8:], value)
	return buf
}

func (b *BoltBackend) expired(raw []byte, now int64) bool {
	if len(raw) < 8 {
		return true
	}
	expires := int64(binary.BigEndian.Uint64(raw[:8]))
	return expires != 0 && now >= expires
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrBackendUnavailable, op, err)
}

// Name implements Backend.
func (b *BoltBackend) Name() string { return BackendBolt }

// Get implements Backend.
func (b *BoltBackend) Get(_ context.Context, key string) ([]byte, error) {
	var data []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketEntries).Get([]byte(key))
		if raw == nil || b.expired(raw, b.now().UnixNano()) {
			return nil
		}
		// Values are only valid for the life of the transaction.
		data = make([]byte, len(raw)-8)
		copy(data, raw[8:])
		return nil
	})
	if err != nil {
		return nil, unavailable("get", err)
	}
	if data == nil {
		return nil, ErrNotFound
	}
	return data, nil
}

// Put implements Backend.
func (b *BoltBackend) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEntries).Put([]byte(key), b.encode(value, ttl))
	})
	if err != nil {
		return unavailable("put", err)
	}
	return nil
}

// Delete implements Backend.
func (b *BoltBackend) Delete(_ context.Context, keys ...string) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketEntries)
		for _, key := range keys {
			if err := bucket.Delete([]byte(key)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return unavailable("delete", err)
	}
	return nil
}

// DeletePrefix implements Backend.
func (b *BoltBackend) DeletePrefix(_ context.Context, prefix string) (int, error) {
	removed := 0
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketEntries)
		p := []byte(prefix)

		// Collect first; deleting while iterating a cursor skips keys.
		var keys [][]byte
		c := bucket.Cursor()
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
		for _, k := range keys {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		removed = len(keys)
		return nil
	})
	if err != nil {
		return 0, unavailable("delete_prefix", err)
	}
	return removed, nil
}

// ListPrefix implements Backend.
func (b *BoltBackend) ListPrefix(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	now := b.now().UnixNano()
	err := b.db.View(func(tx *bolt.Tx) error {
		p := []byte(prefix)
		c := tx.Bucket(bucketEntries).Cursor()
		for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
			if !b.expired(v, now) {
				keys = append(keys, string(k))
			}
		}
		return nil
	})
	if err != nil {
		return nil, unavailable("list_prefix", err)
	}
	return keys, nil
}

func (b *BoltBackend) purgeExpired() (int, error) {
	removed := 0
	now := b.now().UnixNano()
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketEntries)
		var keys [][]byte
		err := bucket.ForEach(func(k, v []byte) error {
			if b.expired(v, now) {
				keys = append(keys, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range keys {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		removed = len(keys)
		return nil
	})
	return removed, err
}

// Ping implements Backend. A closed database reports unavailable.
func (b *BoltBackend) Ping(context.Context) error {
	err := b.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketEntries) == nil {
			return fmt.Errorf("bucket %s missing", bucketEntries)
		}
		return nil
	})
	if err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Close implements Backend. It stops the purge loop before closing the file.
func (b *BoltBackend) Close() error {
	b.closeOnce.Do(func() {
		close(b.stop)
		<-b.done
	})
	return b.db.Close()
}
