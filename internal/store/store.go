package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/trackr/internal/cache"
	bolt "go.etcd.io/bbolt"
)

// Bucket names, one per entity cache
const (
	BucketBooks           = "books"
	BucketTracked         = "tracked"
	BucketCategories      = "categories"
	BucketCategoryDetails = "category_details"
	BucketPublicLists     = "lists"
	BucketMyLists         = "my_lists"
	BucketListDetails     = "list_details"
	BucketSearch          = "search"
)

var allBuckets = []string{
	BucketBooks,
	BucketTracked,
	BucketCategories,
	BucketCategoryDetails,
	BucketPublicLists,
	BucketMyLists,
	BucketListDetails,
	BucketSearch,
}

// DB persists cache entries in BoltDB with an in-memory read-through layer.
// A DB opened without a directory keeps everything in memory.
type DB struct {
	db *bolt.DB
	mu sync.RWMutex // Protects mem

	// Raw JSON keyed by "bucket:key", promoted on access
	mem map[string][]byte
}

// Open opens (or creates) the cache database for serverURL under baseDir.
// Each server gets its own subdirectory so caches never mix accounts.
func Open(baseDir, serverURL string) (*DB, error) {
	if baseDir == "" {
		return &DB{mem: make(map[string][]byte)}, nil
	}

	dir := baseDir
	if serverURL != "" {
		dir = filepath.Join(baseDir, hashServerURL(serverURL))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := bolt.Open(filepath.Join(dir, "trackr.db"), 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &DB{db: db, mem: make(map[string][]byte)}, nil
}

func hashServerURL(serverURL string) string {
	normalized := strings.TrimRight(strings.ToLower(serverURL), "/")
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:6])
}

// Persistent reports whether entries survive a restart
func (s *DB) Persistent() bool { return s.db != nil }

func (s *DB) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func memKey(bucket, key string) string { return bucket + ":" + key }

func (s *DB) get(bucket, key string) ([]byte, bool) {
	mk := memKey(bucket, key)

	s.mu.RLock()
	if data, ok := s.mem[mk]; ok {
		s.mu.RUnlock()
		return data, true
	}
	s.mu.RUnlock()

	if s.db == nil {
		return nil, false
	}

	var data []byte
	s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	if data == nil {
		return nil, false
	}

	s.mu.Lock()
	s.mem[mk] = data
	s.mu.Unlock()
	return data, true
}

func (s *DB) put(bucket, key string, data []byte) error {
	s.mu.Lock()
	s.mem[memKey(bucket, key)] = data
	s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
}

func (s *DB) delete(bucket, key string) error {
	s.mu.Lock()
	delete(s.mem, memKey(bucket, key))
	s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		if b := tx.Bucket([]byte(bucket)); b != nil {
			return b.Delete([]byte(key))
		}
		return nil
	})
}

// all returns every entry in bucket. The memory layer wins over disk.
func (s *DB) all(bucket string) (map[string][]byte, error) {
	out := make(map[string][]byte)

	if s.db != nil {
		err := s.db.View(func(tx *bolt.Tx) error {
			b := tx.Bucket([]byte(bucket))
			if b == nil {
				return nil
			}
			return b.ForEach(func(k, v []byte) error {
				data := make([]byte, len(v))
				copy(data, v)
				out[string(k)] = data
				return nil
			})
		})
		if err != nil {
			return nil, err
		}
	}

	prefix := bucket + ":"
	s.mu.RLock()
	for k, v := range s.mem {
		if strings.HasPrefix(k, prefix) {
			out[strings.TrimPrefix(k, prefix)] = v
		}
	}
	s.mu.RUnlock()
	return out, nil
}

func (s *DB) clearBucket(bucket string) error {
	prefix := bucket + ":"
	s.mu.Lock()
	for k := range s.mem {
		if strings.HasPrefix(k, prefix) {
			delete(s.mem, k)
		}
	}
	s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		var keys [][]byte
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// InvalidateAll wipes every bucket
func (s *DB) InvalidateAll() error {
	for _, name := range allBuckets {
		if err := s.clearBucket(name); err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.mem = make(map[string][]byte)
	s.mu.Unlock()
	return nil
}

// Bucket is a typed view of one bucket storing cache records as JSON.
// It satisfies cache.Backing.
type Bucket[T any] struct {
	db   *DB
	name string
}

var _ cache.Backing[int] = (*Bucket[int])(nil)

// NewBucket returns a typed view of the named bucket
func NewBucket[T any](db *DB, name string) *Bucket[T] {
	return &Bucket[T]{db: db, name: name}
}

// Get returns the record stored under key
func (b *Bucket[T]) Get(key string) (cache.Record[T], bool) {
	var rec cache.Record[T]
	data, ok := b.db.get(b.name, key)
	if !ok {
		return rec, false
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, false
	}
	return rec, true
}

// Load decodes every record in the bucket, skipping any that no longer decode
func (b *Bucket[T]) Load() (map[string]cache.Record[T], error) {
	raw, err := b.db.all(b.name)
	if err != nil {
		return nil, err
	}
	out := make(map[string]cache.Record[T], len(raw))
	for key, data := range raw {
		var rec cache.Record[T]
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		out[key] = rec
	}
	return out, nil
}

func (b *Bucket[T]) Save(key string, rec cache.Record[T]) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return b.db.put(b.name, key, data)
}

func (b *Bucket[T]) Delete(key string) error {
	return b.db.delete(b.name, key)
}

func (b *Bucket[T]) Clear() error {
	return b.db.clearBucket(b.name)
}
