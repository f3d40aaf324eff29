package session

import (
	"context"
	"testing"
	"time"

	"github.com/mmcdole/trackr/internal/api"
	"github.com/mmcdole/trackr/internal/api/apitest"
	"github.com/mmcdole/trackr/internal/config"
	"github.com/mmcdole/trackr/internal/domain"
	"github.com/mmcdole/trackr/internal/logging"
	"github.com/mmcdole/trackr/internal/store"
)

func newTestSession(t *testing.T, db *store.DB) (*Session, *apitest.Server) {
	t.Helper()
	srv := apitest.NewServer()
	t.Cleanup(srv.Close)

	cfg := config.DefaultConfig()
	cfg.Server.URL = srv.URL
	client, err := api.NewClient(api.Options{BaseURL: srv.URL, Timeout: 5 * time.Second}, nil)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	s := New(cfg, client, db, logging.NullLogger())
	t.Cleanup(func() { s.Close() })
	return s, srv
}

func TestTrackingReachesEveryStore(t *testing.T) {
	s, srv := newTestSession(t, nil)
	srv.AddBook(domain.Book{ID: "b1", Title: "Berserk", Author: "Kentaro Miura"})
	srv.AddList(domain.ListDetail{
		List:  domain.List{ID: "l1", Name: "Dark fantasy", TotalBooks: 1, FirstBookCovers: []string{}},
		Books: []domain.Book{{ID: "b1", Title: "Berserk"}},
	})

	ctx := context.Background()
	if err := s.Books.FetchBook(ctx, "b1", false); err != nil {
		t.Fatalf("FetchBook returned error: %v", err)
	}
	if _, err := s.Search.Search(ctx, "berserk", false); err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if err := s.Lists.FetchList(ctx, "l1", false); err != nil {
		t.Fatalf("FetchList returned error: %v", err)
	}

	if err := s.Tracked.AddTrackedBook(ctx, domain.Book{ID: "b1", Title: "Berserk"}); err != nil {
		t.Fatalf("AddTrackedBook returned error: %v", err)
	}

	book, _ := s.Books.GetBook("b1")
	if !book.Tracking || book.TrackingStatus == nil {
		t.Fatalf("book cache = %#v, want tracked", book)
	}
	res, _ := s.Search.Results("berserk")
	if len(res.Books) != 1 || !res.Books[0].Tracking {
		t.Fatalf("search results = %#v, want tracked", res.Books)
	}
	detail, _ := s.Lists.GetList("l1")
	if len(detail.Books) != 1 || !detail.Books[0].Tracking {
		t.Fatalf("list books = %#v, want tracked", detail.Books)
	}

	if err := s.Tracked.RemoveTrackedBook(ctx, "b1"); err != nil {
		t.Fatalf("RemoveTrackedBook returned error: %v", err)
	}
	book, _ = s.Books.GetBook("b1")
	if book.Tracking || book.TrackingStatus != nil {
		t.Fatalf("book cache = %#v, want untracked", book)
	}
}

func TestLogoutClearsEverything(t *testing.T) {
	db, err := store.Open(t.TempDir(), "https://api.trackr.app")
	if err != nil {
		t.Fatalf("store.Open returned error: %v", err)
	}
	s, srv := newTestSession(t, db)
	srv.AddBook(domain.Book{ID: "b1", Title: "Monster"})
	srv.Track("b1", domain.BookTracking{Status: domain.StatusReading, CurrentChapter: 12})

	ctx := context.Background()
	if err := s.Tracked.FetchMyLibraryBooks(ctx, nil); err != nil {
		t.Fatalf("FetchMyLibraryBooks returned error: %v", err)
	}
	if err := s.Books.FetchBook(ctx, "b1", false); err != nil {
		t.Fatalf("FetchBook returned error: %v", err)
	}
	if len(s.Tracked.GetTrackedBooks()) != 1 {
		t.Fatal("library not hydrated")
	}

	if err := s.Logout(); err != nil {
		t.Fatalf("Logout returned error: %v", err)
	}
	if got := s.Tracked.GetTrackedBooks(); len(got) != 0 {
		t.Fatalf("tracked after logout = %v", got)
	}
	if _, ok := s.Books.GetBook("b1"); ok {
		t.Fatal("book cache survived logout")
	}
	recs, err := store.NewBucket[domain.TrackedBook](db, store.BucketTracked).Load()
	if err != nil || len(recs) != 0 {
		t.Fatalf("tracked bucket after logout = %v, %v", recs, err)
	}
}

func TestRestoresLibraryFromDisk(t *testing.T) {
	dir := t.TempDir()
	srv := apitest.NewServer()
	t.Cleanup(srv.Close)
	srv.AddBook(domain.Book{ID: "b1", Title: "Pluto"})
	srv.Track("b1", domain.BookTracking{Status: domain.StatusCompleted})

	cfg := config.DefaultConfig()
	cfg.Server.URL = srv.URL
	client, err := api.NewClient(api.Options{BaseURL: srv.URL}, nil)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	db, err := store.Open(dir, srv.URL)
	if err != nil {
		t.Fatalf("store.Open returned error: %v", err)
	}
	first := New(cfg, client, db, logging.NullLogger())
	if err := first.Tracked.FetchMyLibraryBooks(context.Background(), nil); err != nil {
		t.Fatalf("FetchMyLibraryBooks returned error: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	db, err = store.Open(dir, srv.URL)
	if err != nil {
		t.Fatalf("reopen returned error: %v", err)
	}
	second := New(cfg, client, db, logging.NullLogger())
	t.Cleanup(func() { second.Close() })

	if !second.Tracked.IsBookTracked("b1") {
		t.Fatal("restored session lost the tracked book")
	}
	if got := second.Tracked.GetTrackedBookStatus("b1"); got == nil || got.Status != domain.StatusCompleted {
		t.Fatalf("restored status = %#v", got)
	}
}
