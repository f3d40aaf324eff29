package cache

import (
	"context"
	"time"
)

// Entry is a read-only snapshot of one cached entity and its metadata
type Entry[T any] struct {
	Value         T
	HasValue      bool
	LastFetchedAt time.Time // Zero means never fetched
	IsLoading     bool      // A fetch is in flight
	Err           error     // Last fetch error; cleared when a new fetch starts
}

// Record is the persisted form of an entry
type Record[T any] struct {
	Value     T         `json:"value"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Backing persists cache entries between runs
type Backing[T any] interface {
	Load() (map[string]Record[T], error)
	Save(id string, rec Record[T]) error
	Delete(id string) error
	Clear() error
}

// collectionKey is the single id a Collection stores its sequence under
const collectionKey = "all"

// Collection is a singleton cache entry holding an ordered sequence of
// entities, with the same freshness and in-flight gating as Cache.
type Collection[T any] struct {
	cache *Cache[[]T]
}

// NewCollection creates an empty collection. clone copies a single element.
func NewCollection[T any](opts Options[[]T], clone func(T) T) *Collection[T] {
	if opts.Clone == nil {
		opts.Clone = func(items []T) []T {
			if items == nil {
				return nil
			}
			dup := make([]T, len(items))
			for i, item := range items {
				if clone != nil {
					item = clone(item)
				}
				dup[i] = item
			}
			return dup
		}
	}
	return &Collection[T]{cache: New(opts)}
}

// FetchList loads the sequence unless it is fresh or already loading
func (c *Collection[T]) FetchList(ctx context.Context, force bool, load LoadFunc[[]T]) error {
	return c.cache.Fetch(ctx, collectionKey, force, load)
}

// Items returns the cached sequence, fresh or stale
func (c *Collection[T]) Items() ([]T, bool) {
	return c.cache.Get(collectionKey)
}

// Entry returns the sequence with its metadata
func (c *Collection[T]) Entry() Entry[[]T] {
	return c.cache.Entry(collectionKey)
}

// IsLoading reports whether a list fetch is in flight
func (c *Collection[T]) IsLoading() bool { return c.cache.IsLoading(collectionKey) }

// Err returns the last list fetch error
func (c *Collection[T]) Err() error { return c.cache.Err(collectionKey) }

// IsFresh reports whether the sequence was fetched within the TTL
func (c *Collection[T]) IsFresh() bool { return c.cache.IsFresh(collectionKey) }

// Update patches the cached sequence in place
func (c *Collection[T]) Update(fn func([]T) []T) bool {
	return c.cache.Update(collectionKey, fn)
}

// Restore loads the persisted sequence
func (c *Collection[T]) Restore() error { return c.cache.Restore() }

// Clear drops the sequence
func (c *Collection[T]) Clear() { c.cache.Clear() }
