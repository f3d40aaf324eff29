package tracked

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/trackr/internal/api"
	"github.com/mmcdole/trackr/internal/cache"
	"github.com/mmcdole/trackr/internal/domain"
	"github.com/mmcdole/trackr/internal/events"
	"golang.org/x/sync/singleflight"
)

// Repository is the network surface the tracked store needs
type Repository interface {
	domain.TrackingRepository
	GetBook(ctx context.Context, bookID string) (*domain.Book, error)
}

// Options configure a Store
type Options struct {
	Logger   *slog.Logger
	Bus      *events.Bus // Receives an event after every confirmed mutation
	Now      func() time.Time
	PageSize int
	Backing  cache.Backing[domain.TrackedBook]
}

// Store holds the current user's tracked books. Adds are applied
// optimistically and rolled back on failure; removals wait for the server.
// Mutations on the same book id are serialized.
type Store struct {
	repo     Repository
	bus      *events.Bus
	logger   *slog.Logger
	now      func() time.Time
	pageSize int

	books   *cache.Cache[domain.TrackedBook]
	locks   keyedMutex
	hydrate singleflight.Group

	mu         sync.RWMutex
	order      []string            // Display order of book ids
	pending    map[string]struct{} // Optimistic adds awaiting the server
	touched    map[string]uint64   // Tick of the last local write per id
	tick       uint64
	generation uint64 // Bumped by Clear
	loading    bool
	err        error
	bookErrs   map[string]error
	hydratedAt time.Time
}

// NewStore creates an empty tracked-book store
func NewStore(repo Repository, opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		repo:     repo,
		bus:      opts.Bus,
		logger:   logger,
		now:      now,
		pageSize: opts.PageSize,
		books: cache.New(cache.Options[domain.TrackedBook]{
			Name:    "tracked",
			Now:     now,
			Logger:  logger,
			Backing: opts.Backing,
			Clone:   domain.TrackedBook.Clone,
		}),
		pending:  make(map[string]struct{}),
		touched:  make(map[string]uint64),
		bookErrs: make(map[string]error),
	}
}

// Restore loads the library persisted by a previous run
func (s *Store) Restore() error {
	if err := s.books.Restore(); err != nil {
		return err
	}

	type titled struct{ id, title string }
	var rows []titled
	for _, id := range s.books.Keys() {
		if tb, ok := s.books.Get(id); ok && tb.Valid() {
			rows = append(rows, titled{id, strings.ToLower(tb.Book.DisplayTitle())})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].title < rows[j].title })

	s.mu.Lock()
	s.order = s.order[:0]
	for _, r := range rows {
		s.order = append(s.order, r.id)
	}
	s.mu.Unlock()
	return nil
}

// AddTrackedBook starts tracking book. The entry is visible to every selector
// with status plan_to_read before the request is sent. On failure the entry
// is removed again and the error recorded.
func (s *Store) AddTrackedBook(ctx context.Context, book domain.Book) error {
	id := strings.TrimSpace(book.ID)
	if id == "" {
		return s.fail("", domain.ErrInvalidID)
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	if s.IsBookTracked(id) {
		s.logger.Debug("book already tracked", "bookID", id)
		return nil
	}

	now := s.now()
	book = book.Clone()
	book.ID = id
	optimistic := domain.NewTrackedBook(book, &domain.BookTracking{
		Status:    domain.StatusPlanToRead,
		CreatedAt: &now,
	})

	s.mu.Lock()
	gen := s.generation
	s.pending[id] = struct{}{}
	delete(s.bookErrs, id)
	s.books.Stage(id, optimistic)
	s.prependLocked(id)
	s.touchLocked(id)
	s.mu.Unlock()

	if err := s.repo.TrackBook(ctx, id); err != nil {
		s.mu.Lock()
		if gen == s.generation {
			delete(s.pending, id)
			s.books.Delete(id)
			s.removeLocked(id)
			s.touchLocked(id)
		}
		s.mu.Unlock()
		s.logger.Error("failed to track book, rolled back", "bookID", id, "error", err)
		return s.fail(id, err)
	}

	canonical, err := s.repo.GetBook(ctx, id)
	if err != nil {
		s.logger.Warn("tracked book but canonical fetch failed", "bookID", id, "error", err)
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return nil
	}
	delete(s.pending, id)
	// Update persists the entry now that the server holds it.
	s.books.Update(id, func(tb domain.TrackedBook) domain.TrackedBook {
		if canonical == nil {
			return tb
		}
		if canonical.TrackingStatus != nil {
			tb.TrackingStatus = canonical.TrackingStatus.Clone()
		}
		tb.Book = canonical.Clone()
		tb.Book.ID = id
		return tb.Normalize()
	})
	s.touchLocked(id)
	status := s.statusLocked(id)
	s.mu.Unlock()

	s.logger.Info("tracked book", "bookID", id)
	s.publish(id, events.ChangeTracked, status)
	return nil
}

// RemoveTrackedBook stops tracking id. Local state only changes after the
// server confirms; a 404 counts as confirmation.
func (s *Store) RemoveTrackedBook(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return s.fail("", domain.ErrInvalidID)
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	s.mu.Lock()
	gen := s.generation
	delete(s.bookErrs, id)
	s.mu.Unlock()

	if err := s.repo.UntrackBook(ctx, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.logger.Error("failed to untrack book", "bookID", id, "error", err)
		return s.fail(id, err)
	}

	s.mu.Lock()
	if gen == s.generation {
		s.books.Delete(id)
		s.removeLocked(id)
		delete(s.pending, id)
		s.touchLocked(id)
	}
	s.mu.Unlock()

	s.logger.Info("untracked book", "bookID", id)
	s.publish(id, events.ChangeUntracked, nil)
	return nil
}

// UpdateTrackedBook sends update and replaces the entry with the server's
// full record. Fields not sent still come from the response.
func (s *Store) UpdateTrackedBook(ctx context.Context, id string, update domain.TrackingUpdate) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return s.fail("", domain.ErrInvalidID)
	}
	if update.Status != nil && !update.Status.Valid() {
		return s.fail(id, fmt.Errorf("unknown reading status %q", *update.Status))
	}
	if update.IsEmpty() {
		return nil
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	s.mu.Lock()
	gen := s.generation
	delete(s.bookErrs, id)
	s.mu.Unlock()

	resp, err := s.repo.UpdateTracking(ctx, id, update)
	if err == nil && resp == nil {
		err = fmt.Errorf("update tracking %s: empty response", id)
	}
	if err != nil {
		s.logger.Error("failed to update tracking", "bookID", id, "error", err)
		return s.fail(id, err)
	}

	tb := resp.Clone()
	if strings.TrimSpace(tb.Book.ID) == "" {
		tb.Book.ID = id
	}
	tb = tb.Normalize()

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return nil
	}
	if tb.Tracking {
		s.books.Put(id, tb)
		if !s.orderedLocked(id) {
			s.prependLocked(id)
		}
	} else {
		s.books.Delete(id)
		s.removeLocked(id)
	}
	s.touchLocked(id)
	s.mu.Unlock()

	s.logger.Info("updated tracking", "bookID", id, "status", statusOf(tb.TrackingStatus))
	if tb.Tracking {
		s.publish(id, events.ChangeUpdated, tb.TrackingStatus)
	} else {
		s.publish(id, events.ChangeUntracked, nil)
	}
	return nil
}

// CheckTracking asks the server whether id is tracked and reconciles the
// local entry with the answer.
func (s *Store) CheckTracking(ctx context.Context, id string) (*domain.BookTracking, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, s.fail("", domain.ErrInvalidID)
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	s.mu.RLock()
	gen := s.generation
	s.mu.RUnlock()

	status, err := s.repo.ContainsBook(ctx, id)
	if err != nil {
		s.logger.Error("failed to check tracking", "bookID", id, "error", err)
		return nil, s.fail(id, err)
	}

	var book *domain.Book
	if status != nil && !s.IsBookTracked(id) {
		book, err = s.repo.GetBook(ctx, id)
		if err != nil {
			s.logger.Warn("failed to fetch tracked book", "bookID", id, "error", err)
		}
	}
	if book == nil {
		book = &domain.Book{ID: id}
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return status.Clone(), nil
	}
	existing, ok := s.books.Get(id)
	switch {
	case status == nil && !ok:
		s.mu.Unlock()
		return nil, nil
	case status == nil:
		s.books.Delete(id)
		s.removeLocked(id)
	case ok:
		existing.TrackingStatus = status.Clone()
		s.books.Put(id, existing.Normalize())
	default:
		b := book.Clone()
		b.ID = id
		s.books.Put(id, domain.NewTrackedBook(b, status.Clone()))
		s.prependLocked(id)
	}
	delete(s.bookErrs, id)
	s.touchLocked(id)
	s.mu.Unlock()

	if status == nil {
		s.publish(id, events.ChangeUntracked, nil)
	} else {
		s.publish(id, events.ChangeUpdated, status)
	}
	return status.Clone(), nil
}

// FetchMyLibraryBooks pages through /me/books and rebuilds the store from it.
// Concurrent calls share one hydration. Entries written locally while the
// listing was in flight, and optimistic adds still pending, win over the
// server's rows.
func (s *Store) FetchMyLibraryBooks(ctx context.Context, onProgress domain.ProgressFunc) error {
	s.mu.RLock()
	gen := s.generation
	s.mu.RUnlock()

	// Keyed by generation so a call after Clear never joins a hydration
	// whose result will be discarded.
	shared := context.WithoutCancel(ctx)
	key := "library#" + strconv.FormatUint(gen, 10)
	ch := s.hydrate.DoChan(key, func() (any, error) {
		return nil, s.hydrateLibrary(shared, gen, onProgress)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) hydrateLibrary(ctx context.Context, gen uint64, onProgress domain.ProgressFunc) error {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return nil
	}
	s.loading = true
	s.err = nil
	start := s.tick
	s.mu.Unlock()

	s.logger.Debug("hydrating library")
	rows, err := api.FetchAll[domain.TrackedBook](ctx, s.repo.GetMyBooks, s.pageSize, 0, onProgress)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return err
	}
	s.loading = false
	if err != nil {
		s.err = err
		s.logger.Error("failed to hydrate library", "error", err)
		return err
	}

	values := make(map[string]domain.TrackedBook, len(rows))
	serverOrder := make([]string, 0, len(rows))
	dropped := 0
	for _, tb := range rows {
		tb = tb.Normalize()
		id := strings.TrimSpace(tb.Book.ID)
		if id == "" || !tb.Tracking {
			dropped++
			continue
		}
		if _, dup := values[id]; dup {
			continue
		}
		tb.Book.ID = id
		values[id] = tb
		serverOrder = append(serverOrder, id)
	}

	localWins := make(map[string]bool)
	for id, at := range s.touched {
		if at > start {
			localWins[id] = true
		}
	}
	for id := range s.pending {
		localWins[id] = true
	}

	var order []string
	for _, id := range s.order {
		if !localWins[id] {
			continue
		}
		if _, inServer := values[id]; !inServer {
			order = append(order, id)
		}
	}
	for id := range localWins {
		if local, ok := s.books.Get(id); ok && local.Tracking {
			values[id] = local
		} else {
			delete(values, id)
		}
	}
	for _, id := range serverOrder {
		if _, ok := values[id]; ok {
			order = append(order, id)
		}
	}

	staged := make(map[string]domain.TrackedBook)
	for id := range s.pending {
		if v, ok := values[id]; ok {
			staged[id] = v
			delete(values, id)
		}
	}
	s.books.Replace(values)
	for id, v := range staged {
		s.books.Stage(id, v)
	}
	s.order = order
	s.touched = make(map[string]uint64)
	s.hydratedAt = s.now()

	s.logger.Info("hydrated library", "count", len(values)+len(staged), "dropped", dropped, "keptLocal", len(localWins))
	return nil
}

// Clear drops every entry and recorded error. Requests still in flight
// are ignored when they complete.
func (s *Store) Clear() {
	s.mu.Lock()
	s.books.Clear()
	s.order = nil
	s.pending = make(map[string]struct{})
	s.touched = make(map[string]uint64)
	s.bookErrs = make(map[string]error)
	s.err = nil
	s.loading = false
	s.hydratedAt = time.Time{}
	s.generation++
	s.mu.Unlock()
	s.logger.Info("cleared tracked books")
}

func (s *Store) fail(id string, err error) error {
	s.mu.Lock()
	s.err = err
	if id != "" {
		s.bookErrs[id] = err
	}
	s.mu.Unlock()
	return err
}

func (s *Store) publish(id string, change events.Change, status *domain.BookTracking) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.Event{
		Entity:   events.EntityBook,
		ID:       id,
		Change:   change,
		Tracking: status.Clone(),
	})
}

func (s *Store) touchLocked(id string) {
	s.tick++
	s.touched[id] = s.tick
}

func (s *Store) statusLocked(id string) *domain.BookTracking {
	if tb, ok := s.books.Get(id); ok {
		return tb.TrackingStatus
	}
	return nil
}

func (s *Store) orderedLocked(id string) bool {
	for _, existing := range s.order {
		if existing == id {
			return true
		}
	}
	return false
}

func (s *Store) prependLocked(id string) {
	s.removeLocked(id)
	s.order = append([]string{id}, s.order...)
}

func (s *Store) removeLocked(id string) {
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

func statusOf(t *domain.BookTracking) domain.ReadingStatus {
	if t == nil {
		return ""
	}
	return t.Status
}
