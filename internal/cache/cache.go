package cache

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/trackr/internal/domain"
	"golang.org/x/sync/singleflight"
)

// LoadFunc performs the network read for one entry
type LoadFunc[T any] func(ctx context.Context) (T, error)

// Options configure a Cache
type Options[T any] struct {
	Name    string           // Used in log lines
	TTL     time.Duration    // Zero means entries never go stale on their own
	Now     func() time.Time // Defaults to time.Now
	Logger  *slog.Logger
	Backing Backing[T] // Optional persistence
	Clone   func(T) T  // Deep copy applied on every read; identity when nil
}

type entry[T any] struct {
	value     T
	hasValue  bool
	fetchedAt time.Time
	loading   bool
	err       error
	seq       uint64 // Load sequence; keys the in-flight call
}

// Cache is an id-keyed entity cache with TTL freshness, per-id in-flight
// de-duplication and stale-on-error reads.
type Cache[T any] struct {
	name    string
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger
	backing Backing[T]
	clone   func(T) T

	mu         sync.RWMutex
	entries    map[string]*entry[T]
	generation uint64 // Bumped by Clear so loads started before it are dropped

	group singleflight.Group
}

// New creates an empty cache
func New[T any](opts Options[T]) *Cache[T] {
	c := &Cache[T]{
		name:    opts.Name,
		ttl:     opts.TTL,
		now:     opts.Now,
		logger:  opts.Logger,
		backing: opts.Backing,
		clone:   opts.Clone,
		entries: make(map[string]*entry[T]),
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.clone == nil {
		c.clone = func(v T) T { return v }
	}
	if c.name == "" {
		c.name = "cache"
	}
	return c
}

// TTL returns the freshness window
func (c *Cache[T]) TTL() time.Duration { return c.ttl }

// Restore loads persisted entries, keeping their original fetch times so
// freshness carries across restarts.
func (c *Cache[T]) Restore() error {
	if c.backing == nil {
		return nil
	}
	records, err := c.backing.Load()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for id, rec := range records {
		if _, exists := c.entries[id]; exists {
			continue
		}
		c.entries[id] = &entry[T]{value: rec.Value, hasValue: true, fetchedAt: rec.FetchedAt}
	}
	c.logger.Debug("restored cache", "cache", c.name, "count", len(records))
	return nil
}

// Fetch loads id through load unless a fresh entry exists or a load for id
// is already in flight, in which case the caller waits for that load instead.
// Errors are recorded on the entry and previously cached values are kept.
// The returned error mirrors the recorded one.
func (c *Cache[T]) Fetch(ctx context.Context, id string, force bool, load LoadFunc[T]) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.ErrInvalidID
	}

	c.mu.Lock()
	e, ok := c.entries[id]
	if !ok {
		e = &entry[T]{}
		c.entries[id] = e
	}

	if !e.loading && !force && c.isFresh(e) {
		c.mu.Unlock()
		c.logger.Debug("cache hit", "cache", c.name, "id", id)
		return nil
	}

	if !e.loading {
		e.loading = true
		e.err = nil
		e.seq++
	}
	gen := c.generation
	key := id + "#" + strconv.FormatUint(gen, 10) + "." + strconv.FormatUint(e.seq, 10)
	shared := context.WithoutCancel(ctx)

	// DoChan is called with mu held: the load can only clear e.loading after
	// acquiring mu, so joiners always find the call still registered.
	ch := c.group.DoChan(key, func() (any, error) {
		return nil, c.run(shared, id, gen, load)
	})
	c.mu.Unlock()

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Cache[T]) run(ctx context.Context, id string, gen uint64, load LoadFunc[T]) error {
	value, err := load(ctx)

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		c.logger.Debug("dropping load after clear", "cache", c.name, "id", id)
		return err
	}
	e, ok := c.entries[id]
	if !ok {
		e = &entry[T]{}
		c.entries[id] = e
	}
	e.loading = false
	if err != nil {
		e.err = err
		stale := e.hasValue
		c.mu.Unlock()
		c.logger.Error("fetch failed", "cache", c.name, "id", id, "error", err, "stale", stale)
		return err
	}
	e.value = value
	e.hasValue = true
	e.fetchedAt = c.now()
	e.err = nil
	rec := Record[T]{Value: value, FetchedAt: e.fetchedAt}
	c.mu.Unlock()

	c.persist(id, rec)
	c.logger.Debug("fetched", "cache", c.name, "id", id)
	return nil
}

// Get returns the cached value for id, fresh or stale
func (c *Cache[T]) Get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	if !ok || !e.hasValue {
		var zero T
		return zero, false
	}
	return c.clone(e.value), true
}

// Entry returns a snapshot of id's value and metadata
func (c *Cache[T]) Entry(id string) Entry[T] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	if !ok {
		return Entry[T]{}
	}
	snap := Entry[T]{
		HasValue:      e.hasValue,
		LastFetchedAt: e.fetchedAt,
		IsLoading:     e.loading,
		Err:           e.err,
	}
	if e.hasValue {
		snap.Value = c.clone(e.value)
	}
	return snap
}

// IsLoading reports whether a fetch for id is in flight
func (c *Cache[T]) IsLoading(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	return ok && e.loading
}

// Err returns the last fetch error for id
func (c *Cache[T]) Err(id string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if e, ok := c.entries[id]; ok {
		return e.err
	}
	return nil
}

// IsFresh reports whether id holds a value fetched within the TTL
func (c *Cache[T]) IsFresh(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	return ok && c.isFresh(e)
}

func (c *Cache[T]) isFresh(e *entry[T]) bool {
	if !e.hasValue || e.fetchedAt.IsZero() {
		return false
	}
	if c.ttl <= 0 {
		return true
	}
	return c.now().Sub(e.fetchedAt) < c.ttl
}

// Put stores a server-confirmed value and marks it fetched now
func (c *Cache[T]) Put(id string, value T) {
	c.persist(id, c.set(id, value))
}

// Stage stores a value in memory only. The backing sees it on the next
// Put or Update of id, so an unconfirmed write never outlives the process.
func (c *Cache[T]) Stage(id string, value T) {
	c.set(id, value)
}

func (c *Cache[T]) set(id string, value T) Record[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok {
		e = &entry[T]{}
		c.entries[id] = e
	}
	e.value = value
	e.hasValue = true
	e.fetchedAt = c.now()
	e.err = nil
	return Record[T]{Value: value, FetchedAt: e.fetchedAt}
}

// Update patches a cached value in place without touching its fetch time.
// fn receives a private copy. Returns false when id holds no value.
func (c *Cache[T]) Update(id string, fn func(T) T) bool {
	c.mu.Lock()
	e, ok := c.entries[id]
	if !ok || !e.hasValue {
		c.mu.Unlock()
		return false
	}
	e.value = fn(c.clone(e.value))
	rec := Record[T]{Value: e.value, FetchedAt: e.fetchedAt}
	c.mu.Unlock()

	c.persist(id, rec)
	return true
}

// UpdateAll applies fn to every cached value; fn reports whether it changed anything
func (c *Cache[T]) UpdateAll(fn func(id string, value T) (T, bool)) int {
	c.mu.Lock()
	changed := make(map[string]Record[T])
	for id, e := range c.entries {
		if !e.hasValue {
			continue
		}
		if next, ok := fn(id, c.clone(e.value)); ok {
			e.value = next
			changed[id] = Record[T]{Value: next, FetchedAt: e.fetchedAt}
		}
	}
	c.mu.Unlock()

	for id, rec := range changed {
		c.persist(id, rec)
	}
	return len(changed)
}

// Replace swaps the whole contents for values, all marked fetched now.
// Loads in flight are discarded on completion, as with Clear.
func (c *Cache[T]) Replace(values map[string]T) {
	now := c.now()
	entries := make(map[string]*entry[T], len(values))
	for id, v := range values {
		entries[id] = &entry[T]{value: v, hasValue: true, fetchedAt: now}
	}

	c.mu.Lock()
	c.entries = entries
	c.generation++
	c.mu.Unlock()

	if c.backing == nil {
		return
	}
	if err := c.backing.Clear(); err != nil {
		c.logger.Warn("failed to clear persisted cache", "cache", c.name, "error", err)
	}
	for id, v := range values {
		c.persist(id, Record[T]{Value: v, FetchedAt: now})
	}
}

// Delete drops id
func (c *Cache[T]) Delete(id string) {
	c.mu.Lock()
	delete(c.entries, id)
	c.mu.Unlock()

	if c.backing != nil {
		if err := c.backing.Delete(id); err != nil {
			c.logger.Warn("failed to delete persisted entry", "cache", c.name, "id", id, "error", err)
		}
	}
}

// Keys returns cached ids in sorted order
func (c *Cache[T]) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.entries))
	for id, e := range c.entries {
		if e.hasValue {
			keys = append(keys, id)
		}
	}
	sort.Strings(keys)
	return keys
}

// Clear resets the cache, including persisted entries.
// Loads in flight when Clear runs are discarded on completion.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*entry[T])
	c.generation++
	c.mu.Unlock()

	if c.backing != nil {
		if err := c.backing.Clear(); err != nil {
			c.logger.Warn("failed to clear persisted cache", "cache", c.name, "error", err)
		}
	}
	c.logger.Debug("cleared cache", "cache", c.name)
}

func (c *Cache[T]) persist(id string, rec Record[T]) {
	if c.backing == nil {
		return
	}
	if err := c.backing.Save(id, rec); err != nil {
		c.logger.Warn("failed to persist entry", "cache", c.name, "id", id, "error", err)
	}
}
