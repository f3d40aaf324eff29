package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mmcdole/trackr/internal/api/apitest"
	"github.com/mmcdole/trackr/internal/domain"
)

func newTestClient(t *testing.T, baseURL string, opts Options) *Client {
	t.Helper()
	opts.BaseURL = baseURL
	c, err := NewClient(opts, nil)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	return c
}

func TestParseBaseURL_KeepsPrefixAndDefaultsScheme(t *testing.T) {
	u, err := parseBaseURL("api.trackr.app/v1/")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.Scheme != "https" {
		t.Fatalf("scheme = %q, want https", u.Scheme)
	}
	if u.Path != "/v1" {
		t.Fatalf("path = %q, want /v1", u.Path)
	}

	if _, err := parseBaseURL("  "); err == nil {
		t.Fatal("parseBaseURL(\"\") should fail")
	}
}

func TestClient_ResolveEscapesIDs(t *testing.T) {
	c := newTestClient(t, "http://example.com/v1", Options{})
	path, err := idPath("/books/", "a b/c")
	if err != nil {
		t.Fatalf("idPath returned error: %v", err)
	}
	got := c.resolve(path, nil)
	want := "http://example.com/v1/books/a%20b%2Fc"
	if got != want {
		t.Fatalf("resolve = %q, want %q", got, want)
	}

	if _, err := idPath("/books/", " "); !errors.Is(err, domain.ErrInvalidID) {
		t.Fatalf("idPath(blank) error = %v, want ErrInvalidID", err)
	}
}

func TestClient_SendsAuthAndRequestHeaders(t *testing.T) {
	t.Parallel()

	var gotAuth, gotRequestID, gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-ID")
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","title":"Berserk"}`))
	}))
	t.Cleanup(server.Close)

	c := newTestClient(t, server.URL, Options{Token: "secret", UserAgent: "trackr-test"})
	book, err := c.GetBook(context.Background(), "1")
	if err != nil {
		t.Fatalf("GetBook returned error: %v", err)
	}
	if book.Title != "Berserk" {
		t.Fatalf("book title = %q, want Berserk", book.Title)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("Authorization = %q, want Bearer secret", gotAuth)
	}
	if gotRequestID == "" {
		t.Fatal("X-Request-ID header missing")
	}
	if gotUA != "trackr-test" {
		t.Fatalf("User-Agent = %q, want trackr-test", gotUA)
	}
}

func TestClient_ErrorMessageExtraction(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantMsg  string
		wantCode string
		wantIs   error
	}{
		{"nested", http.StatusConflict, `{"error":{"code":"conflict","message":"already tracked"}}`, "already tracked", "conflict", nil},
		{"flat message", http.StatusNotFound, `{"message":"book not found"}`, "book not found", "", domain.ErrNotFound},
		{"error string", http.StatusUnauthorized, `{"error":"token expired"}`, "token expired", "", domain.ErrAuthFailed},
		{"unparseable", http.StatusInternalServerError, `<html>oops</html>`, domain.GenericErrorKey, "", nil},
		{"empty", http.StatusBadRequest, ``, domain.GenericErrorKey, "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := newTestClient(t, server.URL, Options{})
			_, err := c.GetBook(context.Background(), "1")

			var apiErr *Error
			if !errors.As(err, &apiErr) {
				t.Fatalf("error = %v (%T), want *api.Error", err, err)
			}
			if apiErr.Message != tt.wantMsg {
				t.Fatalf("message = %q, want %q", apiErr.Message, tt.wantMsg)
			}
			if apiErr.Code != tt.wantCode {
				t.Fatalf("code = %q, want %q", apiErr.Code, tt.wantCode)
			}
			if apiErr.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d", apiErr.StatusCode, tt.status)
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Fatalf("errors.Is(%v, %v) = false", err, tt.wantIs)
			}
		})
	}
}

func TestClient_TransportErrorIsServerOffline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c := newTestClient(t, url, Options{Timeout: time.Second})
	_, err := c.GetBook(context.Background(), "1")
	if !errors.Is(err, domain.ErrServerOffline) {
		t.Fatalf("error = %v, want ErrServerOffline", err)
	}
}

func TestClient_RetriesIdempotentGatewayErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"id":"1","title":"Vagabond"}`))
	}))
	t.Cleanup(server.Close)

	c := newTestClient(t, server.URL, Options{MaxRetries: 1})
	book, err := c.GetBook(context.Background(), "1")
	if err != nil {
		t.Fatalf("GetBook returned error: %v", err)
	}
	if book.Title != "Vagabond" || hits.Load() != 2 {
		t.Fatalf("title=%q hits=%d, want Vagabond after 2 hits", book.Title, hits.Load())
	}

	// Mutations are never retried.
	hits.Store(0)
	if err := c.TrackBook(context.Background(), "1"); err == nil {
		t.Fatal("TrackBook should surface the 503")
	}
	if hits.Load() != 1 {
		t.Fatalf("TrackBook hits = %d, want 1", hits.Load())
	}
}

func TestClient_AgainstFakeAPI(t *testing.T) {
	srv := apitest.NewServer()
	t.Cleanup(srv.Close)
	srv.AddBook(domain.Book{ID: "b1", Title: "Monster", CoverURL: "m.jpg", Chapters: 162})
	srv.AddBook(domain.Book{ID: "b2", Title: "Pluto"})
	srv.AddList(domain.ListDetail{List: domain.List{ID: "l1", Name: "Urasawa"}})

	c := newTestClient(t, srv.URL, Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	if err := c.TrackBook(ctx, "b1"); err != nil {
		t.Fatalf("TrackBook returned error: %v", err)
	}
	status, err := c.ContainsBook(ctx, "b1")
	if err != nil || status == nil || status.Status != domain.StatusPlanToRead {
		t.Fatalf("ContainsBook = %#v, %v; want plan_to_read", status, err)
	}
	if status, err := c.ContainsBook(ctx, "b2"); err != nil || status != nil {
		t.Fatalf("ContainsBook(untracked) = %#v, %v; want nil, nil", status, err)
	}

	chapter := 5
	updated, err := c.UpdateTracking(ctx, "b1", domain.TrackingUpdate{CurrentChapter: &chapter})
	if err != nil {
		t.Fatalf("UpdateTracking returned error: %v", err)
	}
	if !updated.Tracking || updated.TrackingStatus.CurrentChapter != 5 || updated.Book.Title != "Monster" {
		t.Fatalf("UpdateTracking = %#v, want chapter 5 with nested book", updated)
	}

	books, total, err := c.GetMyBooks(ctx, 0, 10)
	if err != nil || total != 1 || len(books) != 1 || !books[0].Tracking {
		t.Fatalf("GetMyBooks = %#v, %d, %v", books, total, err)
	}

	if err := c.AddBookToList(ctx, "l1", "b1"); err != nil {
		t.Fatalf("AddBookToList returned error: %v", err)
	}
	detail, err := c.GetList(ctx, "l1")
	if err != nil || detail.TotalBooks != 1 || len(detail.Books) != 1 {
		t.Fatalf("GetList = %#v, %v", detail, err)
	}

	created, err := c.CreateList(ctx, domain.NewList{Name: "Favorites"})
	if err != nil || created.ID == "" || created.Name != "Favorites" {
		t.Fatalf("CreateList = %#v, %v", created, err)
	}
	if _, err := c.CreateList(ctx, domain.NewList{}); err == nil {
		t.Fatal("CreateList with empty name should fail")
	}

	if err := c.UntrackBook(ctx, "b1"); err != nil {
		t.Fatalf("UntrackBook returned error: %v", err)
	}
	if srv.IsTracked("b1") {
		t.Fatal("server still tracks b1 after UntrackBook")
	}
}

func TestFetchAll_WalksPagesAndCaps(t *testing.T) {
	data := []int{1, 2, 3, 4, 5, 6, 7}
	fetch := func(ctx context.Context, offset, limit int) ([]int, int, error) {
		end := offset + limit
		if end > len(data) {
			end = len(data)
		}
		return data[offset:end], len(data), nil
	}

	var progress [][2]int
	all, err := FetchAll(context.Background(), fetch, 3, 0, func(loaded, total int) {
		progress = append(progress, [2]int{loaded, total})
	})
	if err != nil {
		t.Fatalf("FetchAll returned error: %v", err)
	}
	if len(all) != 7 {
		t.Fatalf("len(all) = %d, want 7", len(all))
	}
	if len(progress) != 3 || progress[2] != [2]int{7, 7} {
		t.Fatalf("progress = %v, want 3 callbacks ending at 7/7", progress)
	}

	capped, err := FetchAll(context.Background(), fetch, 3, 4, nil)
	if err != nil || len(capped) != 4 {
		t.Fatalf("capped = %v, %v; want 4 items", capped, err)
	}
}
