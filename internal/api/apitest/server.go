// Package apitest provides an in-memory fake of the Trackr REST API for tests.
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/mmcdole/trackr/internal/domain"
)

// Server is a fake API backed by maps. All exported fields may be seeded
// before the first request; use the methods afterwards.
type Server struct {
	*httptest.Server

	mu         sync.Mutex
	books      map[string]domain.Book
	tracked    map[string]domain.BookTracking
	categories map[string]domain.Category
	lists      map[string]*domain.ListDetail
	calls      map[string]int
	failures   map[string]int // route -> status to fail with
	nextListID int
	now        func() time.Time
}

// NewServer starts a fake API server. Call Close when done.
func NewServer() *Server {
	s := &Server{
		books:      make(map[string]domain.Book),
		tracked:    make(map[string]domain.BookTracking),
		categories: make(map[string]domain.Category),
		lists:      make(map[string]*domain.ListDetail),
		calls:      make(map[string]int),
		failures:   make(map[string]int),
		nextListID: 100,
		now:        time.Now,
	}

	r := mux.NewRouter()
	r.HandleFunc("/books", s.route("search", s.searchBooks)).Methods(http.MethodGet)
	r.HandleFunc("/books/{id}", s.route("book", s.getBook)).Methods(http.MethodGet)
	r.HandleFunc("/me/books", s.route("myBooks", s.getMyBooks)).Methods(http.MethodGet)
	r.HandleFunc("/me/books/contains/{id}", s.route("contains", s.contains)).Methods(http.MethodGet)
	r.HandleFunc("/me/books/{id}", s.route("track", s.track)).Methods(http.MethodPost)
	r.HandleFunc("/me/books/{id}", s.route("untrack", s.untrack)).Methods(http.MethodDelete)
	r.HandleFunc("/me/books/{id}", s.route("update", s.update)).Methods(http.MethodPatch)
	r.HandleFunc("/categories", s.route("categories", s.getCategories)).Methods(http.MethodGet)
	r.HandleFunc("/categories/{id}", s.route("category", s.getCategory)).Methods(http.MethodGet)
	r.HandleFunc("/lists", s.route("lists", s.getLists)).Methods(http.MethodGet)
	r.HandleFunc("/lists", s.route("createList", s.createList)).Methods(http.MethodPost)
	r.HandleFunc("/me/lists", s.route("myLists", s.getLists)).Methods(http.MethodGet)
	r.HandleFunc("/lists/{id}", s.route("list", s.getList)).Methods(http.MethodGet)
	r.HandleFunc("/lists/{id}/books/{bookId}", s.route("listAdd", s.listAdd)).Methods(http.MethodPost)
	r.HandleFunc("/lists/{id}/books/{bookId}", s.route("listRemove", s.listRemove)).Methods(http.MethodDelete)

	s.Server = httptest.NewServer(r)
	return s
}

// AddBook seeds a book
func (s *Server) AddBook(book domain.Book) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.books[book.ID] = book
}

// Track seeds a tracking record
func (s *Server) Track(bookID string, tracking domain.BookTracking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracked[bookID] = tracking
}

// AddCategory seeds a category
func (s *Server) AddCategory(category domain.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[category.ID] = category
}

// AddList seeds a list
func (s *Server) AddList(list domain.ListDetail) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dup := list
	s.lists[list.ID] = &dup
}

// Fail makes every subsequent request to route return status until cleared with status 0
func (s *Server) Fail(route string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.failures, route)
		return
	}
	s.failures[route] = status
}

// Calls returns how many requests hit route
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// IsTracked reports whether the server-side library contains bookID
func (s *Server) IsTracked(bookID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tracked[bookID]
	return ok
}

func (s *Server) route(name string, h func(w http.ResponseWriter, r *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[name]++
		status := s.failures[name]
		s.mu.Unlock()

		if status != 0 {
			writeJSON(w, status, map[string]any{
				"error": map[string]string{"code": "injected", "message": "injected failure"},
			})
			return
		}
		h(w, r)
	}
}

func (s *Server) searchBooks(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	s.mu.Lock()
	var items []domain.Book
	for _, b := range s.books {
		if query == "" || containsFold(b.Title, query) {
			items = append(items, b)
		}
	}
	s.mu.Unlock()
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	writePage(w, r, items)
}

func (s *Server) getBook(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	book, ok := s.books[id]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "book not found"})
		return
	}
	writeJSON(w, http.StatusOK, book)
}

type trackedRow struct {
	Book domain.Book `json:"book"`
	domain.BookTracking
}

func (s *Server) getMyBooks(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	var rows []trackedRow
	for id, t := range s.tracked {
		book, ok := s.books[id]
		if !ok {
			book = domain.Book{ID: id}
		}
		rows = append(rows, trackedRow{Book: book, BookTracking: t})
	}
	s.mu.Unlock()
	sort.Slice(rows, func(i, j int) bool { return rows[i].Book.ID < rows[j].Book.ID })
	writePage(w, r, rows)
}

func (s *Server) contains(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	t, ok := s.tracked[id]
	s.mu.Unlock()
	resp := map[string]any{"tracking": ok}
	if ok {
		resp["tracking_status"] = t
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) track(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.books[id]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": map[string]string{"code": "not_found", "message": "book not found"}})
		return
	}
	if _, ok := s.tracked[id]; ok {
		writeJSON(w, http.StatusConflict, map[string]any{"error": map[string]string{"code": "conflict", "message": "already tracked"}})
		return
	}
	now := s.now()
	s.tracked[id] = domain.BookTracking{Status: domain.StatusPlanToRead, CreatedAt: &now, UpdatedAt: &now}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) untrack(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tracked[id]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "not tracked"})
		return
	}
	delete(s.tracked, id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var patch domain.TrackingUpdate
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid body"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tracked[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "not tracked"})
		return
	}
	if patch.Status != nil {
		t.Status = *patch.Status
	}
	if patch.CurrentChapter != nil {
		t.CurrentChapter = *patch.CurrentChapter
	}
	if patch.CurrentVolume != nil {
		t.CurrentVolume = *patch.CurrentVolume
	}
	if patch.Rating != nil {
		rating := *patch.Rating
		t.Rating = &rating
	}
	if patch.Notes != nil {
		t.Notes = *patch.Notes
	}
	if patch.StartDate != nil {
		t.StartDate = patch.StartDate
	}
	if patch.FinishDate != nil {
		t.FinishDate = patch.FinishDate
	}
	now := s.now()
	t.UpdatedAt = &now
	s.tracked[id] = t

	book := s.books[id]
	book.ID = id
	writeJSON(w, http.StatusOK, trackedRow{Book: book, BookTracking: t})
}

func (s *Server) getCategories(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	var items []domain.Category
	for _, c := range s.categories {
		c.Books = nil
		items = append(items, c)
	}
	s.mu.Unlock()
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	writePage(w, r, items)
}

func (s *Server) getCategory(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	c, ok := s.categories[id]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "category not found"})
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) getLists(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	var items []domain.List
	for _, l := range s.lists {
		items = append(items, l.List.Clone())
	}
	s.mu.Unlock()
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	writePage(w, r, items)
}

func (s *Server) getList(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	l, ok := s.lists[id]
	var dup domain.ListDetail
	if ok {
		dup = *l
		dup.List = l.List.Clone()
		dup.Books = append([]domain.Book(nil), l.Books...)
	}
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "list not found"})
		return
	}
	writeJSON(w, http.StatusOK, dup)
}

func (s *Server) createList(w http.ResponseWriter, r *http.Request) {
	var body domain.NewList
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": map[string]string{"code": "validation", "message": "name is required"}})
		return
	}
	s.mu.Lock()
	s.nextListID++
	id := strconv.Itoa(s.nextListID)
	now := s.now()
	l := &domain.ListDetail{List: domain.List{
		ID:              id,
		Name:            body.Name,
		Description:     body.Description,
		IsPublic:        body.IsPublic,
		FirstBookCovers: []string{},
		CreatedAt:       &now,
		UpdatedAt:       &now,
	}}
	s.lists[id] = l
	created := l.List.Clone()
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) listAdd(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lists[vars["id"]]
	book, bookOK := s.books[vars["bookId"]]
	if !ok || !bookOK {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "not found"})
		return
	}
	l.Books = append(l.Books, book)
	l.TotalBooks++
	if len(l.FirstBookCovers) < domain.MaxPreviewCovers && book.CoverURL != "" {
		l.FirstBookCovers = append(l.FirstBookCovers, book.CoverURL)
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) listRemove(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lists[vars["id"]]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "list not found"})
		return
	}
	kept := l.Books[:0]
	for _, b := range l.Books {
		if b.ID != vars["bookId"] {
			kept = append(kept, b)
		}
	}
	if len(kept) != len(l.Books) {
		l.TotalBooks--
	}
	l.Books = kept
	w.WriteHeader(http.StatusNoContent)
}

func writePage[T any](w http.ResponseWriter, r *http.Request, items []T) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	total := len(items)
	if offset > total {
		offset = total
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	page := items[offset:end]
	if page == nil {
		page = []T{}
	}
	writeJSON(w, http.StatusOK, domain.Page[T]{Items: page, Total: total, Offset: offset, Limit: limit})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
