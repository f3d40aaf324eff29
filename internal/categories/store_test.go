package categories

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mmcdole/trackr/internal/domain"
)

type fakeRepo struct {
	listCalls   atomic.Int32
	detailCalls atomic.Int32
	categories  []domain.Category
}

func (r *fakeRepo) GetCategories(ctx context.Context, offset, limit int) ([]domain.Category, int, error) {
	r.listCalls.Add(1)
	end := offset + limit
	if end > len(r.categories) {
		end = len(r.categories)
	}
	return r.categories[offset:end], len(r.categories), nil
}

func (r *fakeRepo) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	r.detailCalls.Add(1)
	for _, c := range r.categories {
		if c.ID == id {
			c.Books = []domain.Book{{ID: "b1", Title: "Berserk"}, {ID: "b2", Title: "Claymore"}}
			return &c, nil
		}
	}
	return nil, domain.ErrNotFound
}

func TestFetchCategories_PagesAndCachesForAnHour(t *testing.T) {
	repo := &fakeRepo{categories: []domain.Category{
		{ID: "c1", Name: "Seinen"}, {ID: "c2", Name: "Shoujo"}, {ID: "c3", Name: "Horror"},
	}}
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewStore(repo, Options{PageSize: 2, Now: func() time.Time { return now }})
	ctx := context.Background()

	if err := store.FetchCategories(ctx, false); err != nil {
		t.Fatalf("FetchCategories returned error: %v", err)
	}
	if got := store.GetCategories(); len(got) != 3 || got[2].Name != "Horror" {
		t.Fatalf("categories = %v, want 3 across two pages", got)
	}
	if repo.listCalls.Load() != 2 {
		t.Fatalf("page calls = %d, want 2", repo.listCalls.Load())
	}

	now = now.Add(59 * time.Minute)
	if err := store.FetchCategories(ctx, false); err != nil {
		t.Fatalf("FetchCategories returned error: %v", err)
	}
	if repo.listCalls.Load() != 2 {
		t.Fatal("fresh category list was refetched")
	}

	now = now.Add(2 * time.Minute)
	if err := store.FetchCategories(ctx, false); err != nil {
		t.Fatalf("FetchCategories returned error: %v", err)
	}
	if repo.listCalls.Load() != 4 {
		t.Fatalf("page calls = %d, want 4 after the TTL", repo.listCalls.Load())
	}
}

func TestCategoryDetail_InjectTrackedStatus(t *testing.T) {
	repo := &fakeRepo{categories: []domain.Category{{ID: "c1", Name: "Seinen"}}}
	store := NewStore(repo, Options{})
	if err := store.FetchCategory(context.Background(), "c1", false); err != nil {
		t.Fatalf("FetchCategory returned error: %v", err)
	}

	store.InjectTrackedStatus("b2", &domain.BookTracking{Status: domain.StatusDropped})
	c, ok := store.GetCategory("c1")
	if !ok || len(c.Books) != 2 {
		t.Fatalf("category = %#v, %v", c, ok)
	}
	if c.Books[0].Tracking {
		t.Fatal("injection touched an unrelated book")
	}
	if !c.Books[1].Tracking || c.Books[1].TrackingStatus.Status != domain.StatusDropped {
		t.Fatalf("book = %#v, want dropped", c.Books[1])
	}

	store.Clear()
	if _, ok := store.GetCategory("c1"); ok || store.GetCategories() != nil {
		t.Fatal("Clear left cached categories")
	}
}

func TestFetchCategory_CachesDetailForHalfAnHour(t *testing.T) {
	repo := &fakeRepo{categories: []domain.Category{{ID: "c1", Name: "Seinen"}}}
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewStore(repo, Options{Now: func() time.Time { return now }})
	ctx := context.Background()

	fetch := func() {
		t.Helper()
		if err := store.FetchCategory(ctx, "c1", false); err != nil {
			t.Fatalf("FetchCategory returned error: %v", err)
		}
	}

	fetch()
	now = now.Add(29 * time.Minute)
	fetch()
	if repo.detailCalls.Load() != 1 {
		t.Fatalf("detail calls = %d, want 1 while fresh", repo.detailCalls.Load())
	}

	now = now.Add(2 * time.Minute)
	fetch()
	if repo.detailCalls.Load() != 2 {
		t.Fatalf("detail calls = %d, want 2 after the TTL", repo.detailCalls.Load())
	}
}
