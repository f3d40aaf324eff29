package lists

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/trackr/internal/api"
	"github.com/mmcdole/trackr/internal/cache"
	"github.com/mmcdole/trackr/internal/domain"
	"github.com/mmcdole/trackr/internal/events"
)

const (
	DefaultListTTL   = 5 * time.Minute
	DefaultDetailTTL = 30 * time.Minute
)

// Repository is the network surface the list store needs
type Repository interface {
	domain.ListRepository
	GetBook(ctx context.Context, bookID string) (*domain.Book, error)
}

// Options configure a Store
type Options struct {
	Logger    *slog.Logger
	Bus       *events.Bus
	ListTTL   time.Duration
	DetailTTL time.Duration
	Now       func() time.Time
	PageSize  int

	PublicBacking cache.Backing[[]domain.List]
	MineBacking   cache.Backing[[]domain.List]
	DetailBacking cache.Backing[domain.ListDetail]
}

// Store caches public lists, the user's lists and list detail, and applies
// membership changes locally once the server accepts them.
type Store struct {
	repo     Repository
	bus      *events.Bus
	logger   *slog.Logger
	pageSize int

	public  *cache.Collection[domain.List]
	mine    *cache.Collection[domain.List]
	details *cache.Cache[domain.ListDetail]

	mu   sync.RWMutex
	err  error // Last mutation error
	errs map[string]error
}

func NewStore(repo Repository, opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ListTTL <= 0 {
		opts.ListTTL = DefaultListTTL
	}
	if opts.DetailTTL <= 0 {
		opts.DetailTTL = DefaultDetailTTL
	}
	return &Store{
		repo:     repo,
		bus:      opts.Bus,
		logger:   logger,
		pageSize: opts.PageSize,
		public: cache.NewCollection(cache.Options[[]domain.List]{
			Name: "lists", TTL: opts.ListTTL, Now: opts.Now, Logger: logger, Backing: opts.PublicBacking,
		}, domain.List.Clone),
		mine: cache.NewCollection(cache.Options[[]domain.List]{
			Name: "my_lists", TTL: opts.ListTTL, Now: opts.Now, Logger: logger, Backing: opts.MineBacking,
		}, domain.List.Clone),
		details: cache.New(cache.Options[domain.ListDetail]{
			Name:    "list_details",
			TTL:     opts.DetailTTL,
			Now:     opts.Now,
			Logger:  logger,
			Backing: opts.DetailBacking,
			Clone:   cloneDetail,
		}),
		errs: make(map[string]error),
	}
}

func (s *Store) Restore() error {
	for _, restore := range []func() error{s.public.Restore, s.mine.Restore, s.details.Restore} {
		if err := restore(); err != nil {
			return err
		}
	}
	return nil
}

// FetchLists loads public lists unless fresh
func (s *Store) FetchLists(ctx context.Context, force bool) error {
	return s.public.FetchList(ctx, force, func(ctx context.Context) ([]domain.List, error) {
		return api.FetchAll[domain.List](ctx, s.repo.GetLists, s.pageSize, 0, nil)
	})
}

// FetchMyLists loads the current user's lists unless fresh
func (s *Store) FetchMyLists(ctx context.Context, force bool) error {
	return s.mine.FetchList(ctx, force, func(ctx context.Context) ([]domain.List, error) {
		return api.FetchAll[domain.List](ctx, s.repo.GetMyLists, s.pageSize, 0, nil)
	})
}

// FetchList loads one list with its books
func (s *Store) FetchList(ctx context.Context, id string, force bool) error {
	return s.details.Fetch(ctx, id, force, func(ctx context.Context) (domain.ListDetail, error) {
		d, err := s.repo.GetList(ctx, id)
		if err != nil {
			return domain.ListDetail{}, err
		}
		if d == nil {
			return domain.ListDetail{}, domain.ErrNotFound
		}
		return cloneDetail(*d), nil
	})
}

// CreateList creates a list and prepends it to the cached user lists.
// Unlike the other actions the error is meant for inline display.
func (s *Store) CreateList(ctx context.Context, list domain.NewList) (*domain.List, error) {
	list.Name = strings.TrimSpace(list.Name)
	created, err := s.repo.CreateList(ctx, list)
	if err != nil {
		s.logger.Error("failed to create list", "name", list.Name, "error", err)
		return nil, s.fail("", err)
	}

	c := created.Clone()
	if c.FirstBookCovers == nil {
		c.FirstBookCovers = []string{}
	}
	s.mine.Update(func(items []domain.List) []domain.List {
		return append([]domain.List{c}, items...)
	})
	if c.IsPublic {
		s.public.Update(func(items []domain.List) []domain.List {
			return append([]domain.List{c}, items...)
		})
	}

	s.logger.Info("created list", "listID", c.ID, "name", c.Name)
	s.publish(c.ID)
	out := c.Clone()
	return &out, nil
}

// AddBookToList adds bookID to listID on the server, then fetches the book
// for its cover and patches every cached copy of the list.
func (s *Store) AddBookToList(ctx context.Context, listID, bookID string) error {
	listID, bookID = strings.TrimSpace(listID), strings.TrimSpace(bookID)
	if listID == "" || bookID == "" {
		return s.fail(listID, domain.ErrInvalidID)
	}
	s.clearErr(listID)

	if err := s.repo.AddBookToList(ctx, listID, bookID); err != nil {
		s.logger.Error("failed to add book to list", "listID", listID, "bookID", bookID, "error", err)
		return s.fail(listID, err)
	}

	book := s.lookupBook(ctx, bookID)
	s.patch(listID, func(l domain.List) domain.List { return addCover(l, book.CoverURL) })
	s.details.Update(listID, func(d domain.ListDetail) domain.ListDetail {
		d.List = addCover(d.List, book.CoverURL)
		if !containsBook(d.Books, bookID) {
			d.Books = append(d.Books, book)
		}
		return d
	})

	s.logger.Info("added book to list", "listID", listID, "bookID", bookID)
	s.publish(listID)
	return nil
}

// RemoveBookFromList removes bookID on the server and patches cached copies
func (s *Store) RemoveBookFromList(ctx context.Context, listID, bookID string) error {
	listID, bookID = strings.TrimSpace(listID), strings.TrimSpace(bookID)
	if listID == "" || bookID == "" {
		return s.fail(listID, domain.ErrInvalidID)
	}
	s.clearErr(listID)

	if err := s.repo.RemoveBookFromList(ctx, listID, bookID); err != nil {
		s.logger.Error("failed to remove book from list", "listID", listID, "bookID", bookID, "error", err)
		return s.fail(listID, err)
	}

	book := s.lookupBook(ctx, bookID)
	s.patch(listID, func(l domain.List) domain.List { return removeCover(l, book.CoverURL) })
	s.details.Update(listID, func(d domain.ListDetail) domain.ListDetail {
		d.List = removeCover(d.List, book.CoverURL)
		kept := d.Books[:0]
		for _, b := range d.Books {
			if b.ID != bookID {
				kept = append(kept, b)
			}
		}
		d.Books = kept
		return d
	})

	s.logger.Info("removed book from list", "listID", listID, "bookID", bookID)
	s.publish(listID)
	return nil
}

// lookupBook fetches the book for its cover. The cached list detail is
// consulted when the request fails so removals can still drop the cover.
func (s *Store) lookupBook(ctx context.Context, bookID string) domain.Book {
	book, err := s.repo.GetBook(ctx, bookID)
	if err == nil && book != nil {
		return book.Clone()
	}
	s.logger.Warn("failed to fetch book for list preview", "bookID", bookID, "error", err)
	for _, id := range s.details.Keys() {
		if d, ok := s.details.Get(id); ok {
			for _, b := range d.Books {
				if b.ID == bookID {
					return b
				}
			}
		}
	}
	return domain.Book{ID: bookID}
}

// patch applies fn to listID in both cached list collections
func (s *Store) patch(listID string, fn func(domain.List) domain.List) {
	apply := func(items []domain.List) []domain.List {
		for i := range items {
			if items[i].ID == listID {
				items[i] = fn(items[i])
			}
		}
		return items
	}
	s.public.Update(apply)
	s.mine.Update(apply)
}

func addCover(l domain.List, cover string) domain.List {
	l.TotalBooks++
	if cover == "" || len(l.FirstBookCovers) >= domain.MaxPreviewCovers {
		return l
	}
	for _, existing := range l.FirstBookCovers {
		if existing == cover {
			return l
		}
	}
	l.FirstBookCovers = append(l.FirstBookCovers, cover)
	return l
}

func removeCover(l domain.List, cover string) domain.List {
	if l.TotalBooks > 0 {
		l.TotalBooks--
	}
	if cover == "" {
		return l
	}
	kept := make([]string, 0, len(l.FirstBookCovers))
	for _, existing := range l.FirstBookCovers {
		if existing != cover {
			kept = append(kept, existing)
		}
	}
	l.FirstBookCovers = kept
	return l
}

func containsBook(books []domain.Book, id string) bool {
	for _, b := range books {
		if b.ID == id {
			return true
		}
	}
	return false
}

// InjectTrackedStatus mirrors a tracking change onto books inside cached
// list details
func (s *Store) InjectTrackedStatus(bookID string, status *domain.BookTracking) {
	n := s.details.UpdateAll(func(_ string, d domain.ListDetail) (domain.ListDetail, bool) {
		changed := false
		for i := range d.Books {
			if d.Books[i].ID == bookID {
				d.Books[i].Tracking = status != nil
				d.Books[i].TrackingStatus = status.Clone()
				changed = true
			}
		}
		return d, changed
	})
	if n > 0 {
		s.logger.Debug("injected tracking status", "store", "lists", "bookID", bookID, "lists", n)
	}
}

func (s *Store) publish(listID string) {
	if s.bus != nil {
		s.bus.Publish(events.Event{Entity: events.EntityList, ID: listID, Change: events.ChangeUpdated})
	}
}

func (s *Store) fail(listID string, err error) error {
	s.mu.Lock()
	s.err = err
	if listID != "" {
		s.errs[listID] = err
	}
	s.mu.Unlock()
	return err
}

func (s *Store) clearErr(listID string) {
	s.mu.Lock()
	delete(s.errs, listID)
	s.mu.Unlock()
}

// Clear drops every cached list and recorded error
func (s *Store) Clear() {
	s.public.Clear()
	s.mine.Clear()
	s.details.Clear()
	s.mu.Lock()
	s.err = nil
	s.errs = make(map[string]error)
	s.mu.Unlock()
}

func cloneDetail(d domain.ListDetail) domain.ListDetail {
	dup := d
	dup.List = d.List.Clone()
	if d.Books != nil {
		dup.Books = make([]domain.Book, len(d.Books))
		for i, b := range d.Books {
			dup.Books[i] = b.Clone()
		}
	}
	return dup
}
