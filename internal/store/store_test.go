package store

import (
	"testing"
	"time"

	"github.com/mmcdole/trackr/internal/cache"
	"github.com/mmcdole/trackr/internal/domain"
)

func TestBucket_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	fetched := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

	db, err := Open(dir, "https://api.trackr.app/")
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if !db.Persistent() {
		t.Fatal("DB opened with a directory should be persistent")
	}
	books := NewBucket[domain.Book](db, BucketBooks)
	if err := books.Save("b1", cache.Record[domain.Book]{
		Value:     domain.Book{ID: "b1", Title: "Vinland Saga"},
		FetchedAt: fetched,
	}); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	// Trailing slash and case don't change which database is used.
	db, err = Open(dir, "HTTPS://API.TRACKR.APP")
	if err != nil {
		t.Fatalf("reopen returned error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	books = NewBucket[domain.Book](db, BucketBooks)
	recs, err := books.Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	rec, ok := recs["b1"]
	if !ok {
		t.Fatalf("Load = %v, want b1", recs)
	}
	if rec.Value.Title != "Vinland Saga" || !rec.FetchedAt.Equal(fetched) {
		t.Fatalf("record = %#v, want Vinland Saga fetched at %v", rec, fetched)
	}

	got, ok := books.Get("b1")
	if !ok || got.Value.ID != "b1" {
		t.Fatalf("Get = %#v, %v", got, ok)
	}
}

func TestBucket_DeleteAndClear(t *testing.T) {
	db, err := Open(t.TempDir(), "")
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	lists := NewBucket[domain.List](db, BucketPublicLists)
	books := NewBucket[domain.Book](db, BucketBooks)
	for _, id := range []string{"a", "b", "c"} {
		if err := lists.Save(id, cache.Record[domain.List]{Value: domain.List{ID: id}}); err != nil {
			t.Fatalf("Save returned error: %v", err)
		}
	}
	if err := books.Save("x", cache.Record[domain.Book]{Value: domain.Book{ID: "x"}}); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	if err := lists.Delete("b"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, ok := lists.Get("b"); ok {
		t.Fatal("deleted record still readable")
	}

	if err := lists.Clear(); err != nil {
		t.Fatalf("Clear returned error: %v", err)
	}
	if recs, _ := lists.Load(); len(recs) != 0 {
		t.Fatalf("lists after Clear = %v, want empty", recs)
	}
	if _, ok := books.Get("x"); !ok {
		t.Fatal("clearing one bucket touched another")
	}

	if err := db.InvalidateAll(); err != nil {
		t.Fatalf("InvalidateAll returned error: %v", err)
	}
	if _, ok := books.Get("x"); ok {
		t.Fatal("InvalidateAll left records behind")
	}
}

func TestDB_MemoryOnly(t *testing.T) {
	db, err := Open("", "https://api.trackr.app")
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if db.Persistent() {
		t.Fatal("memory-only DB reports persistent")
	}

	search := NewBucket[[]string](db, BucketSearch)
	if err := search.Save("berserk", cache.Record[[]string]{Value: []string{"b1"}}); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	recs, err := search.Load()
	if err != nil || len(recs["berserk"].Value) != 1 {
		t.Fatalf("Load = %v, %v", recs, err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
}

func TestBucket_BacksCache(t *testing.T) {
	db, err := Open(t.TempDir(), "")
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	backing := NewBucket[domain.Category](db, BucketCategoryDetails)
	c := cache.New(cache.Options[domain.Category]{TTL: time.Hour, Backing: backing})
	c.Put("c1", domain.Category{ID: "c1", Name: "Seinen"})

	restored := cache.New(cache.Options[domain.Category]{TTL: time.Hour, Backing: backing})
	if err := restored.Restore(); err != nil {
		t.Fatalf("Restore returned error: %v", err)
	}
	if got, ok := restored.Get("c1"); !ok || got.Name != "Seinen" {
		t.Fatalf("restored = %#v, %v", got, ok)
	}

	c.Clear()
	if _, ok := backing.Get("c1"); ok {
		t.Fatal("cache Clear did not reach the bucket")
	}
}
