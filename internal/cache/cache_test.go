package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type memBacking struct {
	mu      sync.Mutex
	records map[string]Record[string]
}

func (m *memBacking) Load() (map[string]Record[string], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]Record[string], len(m.records))
	for k, v := range m.records {
		out[k] = v
	}
	return out, nil
}

func (m *memBacking) Save(id string, rec Record[string]) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.records == nil {
		m.records = make(map[string]Record[string])
	}
	m.records[id] = rec
	return nil
}

func (m *memBacking) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}

func (m *memBacking) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = nil
	return nil
}

func constLoad(calls *atomic.Int32, value string) LoadFunc[string] {
	return func(ctx context.Context) (string, error) {
		calls.Add(1)
		return value, nil
	}
}

func TestFetch_SkipsNetworkWhileFresh(t *testing.T) {
	clock := newFakeClock()
	c := New(Options[string]{TTL: 30 * time.Minute, Now: clock.Now})
	var calls atomic.Int32
	ctx := context.Background()

	if err := c.Fetch(ctx, "b1", false, constLoad(&calls, "v1")); err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	clock.Advance(29 * time.Minute)
	if err := c.Fetch(ctx, "b1", false, constLoad(&calls, "v2")); err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("load calls = %d, want 1 while fresh", got)
	}
	if v, _ := c.Get("b1"); v != "v1" {
		t.Fatalf("value = %q, want v1", v)
	}

	clock.Advance(2 * time.Minute)
	if c.IsFresh("b1") {
		t.Fatal("entry still fresh after TTL elapsed")
	}
	if err := c.Fetch(ctx, "b1", false, constLoad(&calls, "v3")); err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if v, _ := c.Get("b1"); v != "v3" || calls.Load() != 2 {
		t.Fatalf("value = %q calls = %d, want v3 after 2 calls", v, calls.Load())
	}

	if err := c.Fetch(ctx, "b1", true, constLoad(&calls, "v4")); err != nil {
		t.Fatalf("forced Fetch returned error: %v", err)
	}
	if v, _ := c.Get("b1"); v != "v4" {
		t.Fatalf("forced value = %q, want v4", v)
	}
}

func TestFetch_RejectsBlankID(t *testing.T) {
	c := New(Options[string]{})
	var calls atomic.Int32
	if err := c.Fetch(context.Background(), "  ", false, constLoad(&calls, "x")); err == nil {
		t.Fatal("Fetch with blank id should fail")
	}
	if calls.Load() != 0 {
		t.Fatal("load ran for a blank id")
	}
}

func TestFetch_DeduplicatesConcurrentLoads(t *testing.T) {
	c := New(Options[string]{TTL: time.Minute})
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})

	load := func(ctx context.Context) (string, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return "shared", nil
	}

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)

	wg.Add(1)
	go func() {
		defer wg.Done()
		errs <- c.Fetch(context.Background(), "b1", false, load)
	}()
	<-started

	if !c.IsLoading("b1") {
		t.Fatal("IsLoading = false during load")
	}

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- c.Fetch(context.Background(), "b1", false, load)
		}()
	}

	// Give joiners a moment to reach the in-flight call before releasing.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("Fetch returned error: %v", err)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("load calls = %d, want 1", got)
	}
	if c.IsLoading("b1") {
		t.Fatal("IsLoading = true after load completed")
	}
}

func TestFetch_KeepsStaleValueOnError(t *testing.T) {
	clock := newFakeClock()
	c := New(Options[string]{TTL: time.Minute, Now: clock.Now})
	var calls atomic.Int32
	ctx := context.Background()

	if err := c.Fetch(ctx, "b1", false, constLoad(&calls, "good")); err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	fetchedAt := c.Entry("b1").LastFetchedAt

	clock.Advance(5 * time.Minute)
	boom := errors.New("boom")
	err := c.Fetch(ctx, "b1", false, func(ctx context.Context) (string, error) {
		return "", boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Fetch error = %v, want boom", err)
	}

	entry := c.Entry("b1")
	if entry.Value != "good" || !entry.HasValue {
		t.Fatalf("value = %q, want stale good value", entry.Value)
	}
	if !errors.Is(entry.Err, boom) {
		t.Fatalf("recorded error = %v, want boom", entry.Err)
	}
	if !entry.LastFetchedAt.Equal(fetchedAt) {
		t.Fatalf("LastFetchedAt moved on failure: %v != %v", entry.LastFetchedAt, fetchedAt)
	}

	// The next attempt clears the recorded error.
	if err := c.Fetch(ctx, "b1", false, constLoad(&calls, "better")); err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if c.Err("b1") != nil {
		t.Fatalf("error not cleared: %v", c.Err("b1"))
	}
}

func TestFetch_CancelledCallerLeavesLoadRunning(t *testing.T) {
	c := New(Options[string]{TTL: time.Minute})
	release := make(chan struct{})
	done := make(chan struct{})

	load := func(ctx context.Context) (string, error) {
		defer close(done)
		<-release
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return "late", nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- c.Fetch(ctx, "b1", false, load) }()

	for !c.IsLoading("b1") {
		time.Sleep(time.Millisecond)
	}
	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("Fetch error = %v, want context.Canceled", err)
	}

	close(release)
	<-done
	for c.IsLoading("b1") {
		time.Sleep(time.Millisecond)
	}
	if v, ok := c.Get("b1"); !ok || v != "late" {
		t.Fatalf("value = %q, %v; want late", v, ok)
	}
}

func TestClear_DropsLoadsInFlight(t *testing.T) {
	c := New(Options[string]{TTL: time.Minute})
	started := make(chan struct{})
	release := make(chan struct{})

	errc := make(chan error, 1)
	go func() {
		errc <- c.Fetch(context.Background(), "b1", false, func(ctx context.Context) (string, error) {
			close(started)
			<-release
			return "before-clear", nil
		})
	}()
	<-started

	c.Clear()
	close(release)
	if err := <-errc; err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}

	if _, ok := c.Get("b1"); ok {
		t.Fatal("load started before Clear was applied")
	}
	if c.IsLoading("b1") {
		t.Fatal("entry left loading after Clear")
	}

	// A fresh fetch after Clear starts its own load.
	var calls atomic.Int32
	if err := c.Fetch(context.Background(), "b1", false, constLoad(&calls, "after")); err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if v, _ := c.Get("b1"); v != "after" || calls.Load() != 1 {
		t.Fatalf("value = %q calls = %d, want after with 1 call", v, calls.Load())
	}
}

func TestUpdate_KeepsFetchTime(t *testing.T) {
	clock := newFakeClock()
	c := New(Options[string]{TTL: time.Minute, Now: clock.Now})
	c.Put("b1", "a")
	fetchedAt := c.Entry("b1").LastFetchedAt

	clock.Advance(30 * time.Second)
	if !c.Update("b1", func(v string) string { return v + "b" }) {
		t.Fatal("Update returned false for a cached id")
	}
	entry := c.Entry("b1")
	if entry.Value != "ab" || !entry.LastFetchedAt.Equal(fetchedAt) {
		t.Fatalf("entry = %#v, want ab with original fetch time", entry)
	}
	if c.Update("missing", func(v string) string { return v }) {
		t.Fatal("Update returned true for a missing id")
	}

	c.Put("b2", "x")
	n := c.UpdateAll(func(id, v string) (string, bool) {
		if id != "b2" {
			return v, false
		}
		return "y", true
	})
	if n != 1 {
		t.Fatalf("UpdateAll changed %d entries, want 1", n)
	}
	if v, _ := c.Get("b2"); v != "y" {
		t.Fatalf("b2 = %q, want y", v)
	}
	if keys := c.Keys(); len(keys) != 2 || keys[0] != "b1" || keys[1] != "b2" {
		t.Fatalf("Keys = %v, want [b1 b2]", keys)
	}
}

func TestRestore_CarriesFreshnessAcrossRuns(t *testing.T) {
	clock := newFakeClock()
	backing := &memBacking{}

	first := New(Options[string]{TTL: time.Hour, Now: clock.Now, Backing: backing})
	first.Put("c1", "manga")

	clock.Advance(10 * time.Minute)
	second := New(Options[string]{TTL: time.Hour, Now: clock.Now, Backing: backing})
	if err := second.Restore(); err != nil {
		t.Fatalf("Restore returned error: %v", err)
	}
	if !second.IsFresh("c1") {
		t.Fatal("restored entry should still be fresh")
	}

	var calls atomic.Int32
	if err := second.Fetch(context.Background(), "c1", false, constLoad(&calls, "other")); err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if calls.Load() != 0 {
		t.Fatal("restored fresh entry triggered a load")
	}

	second.Delete("c1")
	if recs, _ := backing.Load(); len(recs) != 0 {
		t.Fatalf("backing still holds %d records after Delete", len(recs))
	}
}

func TestCollection_ReturnsCopies(t *testing.T) {
	col := NewCollection(Options[[]string]{TTL: time.Hour}, nil)
	err := col.FetchList(context.Background(), false, func(ctx context.Context) ([]string, error) {
		return []string{"a", "b"}, nil
	})
	if err != nil {
		t.Fatalf("FetchList returned error: %v", err)
	}

	items, ok := col.Items()
	if !ok || len(items) != 2 {
		t.Fatalf("Items = %v, %v", items, ok)
	}
	items[0] = "mutated"

	again, _ := col.Items()
	if again[0] != "a" {
		t.Fatalf("cached sequence was mutated through a read: %v", again)
	}
	if !col.IsFresh() || col.IsLoading() || col.Err() != nil {
		t.Fatalf("entry = %#v, want fresh and idle", col.Entry())
	}

	col.Clear()
	if _, ok := col.Items(); ok {
		t.Fatal("Items returned a value after Clear")
	}
}

func TestStage_StaysInMemoryUntilUpdated(t *testing.T) {
	backing := &memBacking{}
	c := New(Options[string]{Backing: backing})

	c.Stage("b1", "pending")
	if v, ok := c.Get("b1"); !ok || v != "pending" {
		t.Fatalf("Get = %q, %v; want staged value", v, ok)
	}
	if recs, _ := backing.Load(); len(recs) != 0 {
		t.Fatalf("staged value persisted: %v", recs)
	}

	c.Update("b1", func(v string) string { return "confirmed" })
	recs, _ := backing.Load()
	if recs["b1"].Value != "confirmed" {
		t.Fatalf("persisted = %v, want confirmed", recs)
	}
}
