package search

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/mmcdole/trackr/internal/domain"
)

type fakeRepo struct {
	calls atomic.Int32
	books []domain.Book
}

func (r *fakeRepo) GetBook(ctx context.Context, id string) (*domain.Book, error) {
	return nil, domain.ErrNotFound
}

func (r *fakeRepo) SearchBooks(ctx context.Context, query string, offset, limit int) ([]domain.Book, int, error) {
	r.calls.Add(1)
	return r.books, len(r.books), nil
}

func TestSearch_CachesPerNormalizedQuery(t *testing.T) {
	repo := &fakeRepo{books: []domain.Book{
		{ID: "1", Title: "Berserk of Gluttony"},
		{ID: "2", Title: "Berserk"},
	}}
	store := NewStore(repo, Options{})
	ctx := context.Background()

	res, err := store.Search(ctx, "Berserk", false)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(res.Books) != 2 || res.Books[0].ID != "2" {
		t.Fatalf("results = %v, want exact title first", res.Books)
	}

	if _, err := store.Search(ctx, "  berserk ", false); err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if repo.calls.Load() != 1 {
		t.Fatalf("network calls = %d, want 1 for equivalent queries", repo.calls.Load())
	}

	if res, err := store.Search(ctx, "   ", false); err != nil || len(res.Books) != 0 {
		t.Fatalf("blank search = %v, %v", res, err)
	}
	if repo.calls.Load() != 1 {
		t.Fatal("blank query hit the network")
	}
}

func TestHistory_MostRecentFirstAndCapped(t *testing.T) {
	store := NewStore(&fakeRepo{}, Options{})
	ctx := context.Background()
	for i := 0; i < MaxHistory+3; i++ {
		if _, err := store.Search(ctx, fmt.Sprintf("q%d", i), false); err != nil {
			t.Fatalf("Search returned error: %v", err)
		}
	}
	if _, err := store.Search(ctx, "q5", false); err != nil {
		t.Fatalf("Search returned error: %v", err)
	}

	h := store.History()
	if len(h) != MaxHistory {
		t.Fatalf("history length = %d, want %d", len(h), MaxHistory)
	}
	if h[0] != "q5" || h[1] != "q12" {
		t.Fatalf("history = %v, want q5 then q12", h)
	}

	store.Clear()
	if len(store.History()) != 0 {
		t.Fatal("Clear kept history")
	}
}

func TestFilterTracked_RanksByTitleAndAuthor(t *testing.T) {
	books := []domain.TrackedBook{
		domain.NewTrackedBook(domain.Book{ID: "1", Title: "Vagabond", Author: "Takehiko Inoue"}, &domain.BookTracking{}),
		domain.NewTrackedBook(domain.Book{ID: "2", Title: "Slam Dunk", Author: "Takehiko Inoue"}, &domain.BookTracking{}),
		domain.NewTrackedBook(domain.Book{ID: "3", Title: "Monster", Author: "Naoki Urasawa"}, &domain.BookTracking{}),
	}

	got := FilterTracked("vgbnd", books)
	if len(got) != 1 || got[0].Book.ID != "1" {
		t.Fatalf("FilterTracked(vgbnd) = %v, want Vagabond", got)
	}

	got = FilterTracked("inoue", books)
	if len(got) != 2 {
		t.Fatalf("FilterTracked(inoue) = %v, want both Inoue books", got)
	}

	if got := FilterTracked("", books); len(got) != 3 {
		t.Fatalf("empty filter = %v, want all books", got)
	}
}

func TestInjectTrackedStatus_UpdatesCachedResults(t *testing.T) {
	repo := &fakeRepo{books: []domain.Book{{ID: "1", Title: "Blue Period"}}}
	store := NewStore(repo, Options{})
	if _, err := store.Search(context.Background(), "blue", false); err != nil {
		t.Fatalf("Search returned error: %v", err)
	}

	store.InjectTrackedStatus("1", &domain.BookTracking{Status: domain.StatusReading})
	res, ok := store.Results("Blue")
	if !ok || !res.Books[0].Tracking {
		t.Fatalf("result = %#v, want tracked book", res)
	}
}
