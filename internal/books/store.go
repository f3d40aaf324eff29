package books

import (
	"context"
	"log/slog"
	"time"

	"github.com/mmcdole/trackr/internal/cache"
	"github.com/mmcdole/trackr/internal/domain"
)

// DefaultTTL is how long a book detail stays fresh
const DefaultTTL = 30 * time.Minute

// Options configure a Store
type Options struct {
	Logger  *slog.Logger
	TTL     time.Duration // Defaults to DefaultTTL
	Now     func() time.Time
	Backing cache.Backing[domain.Book]
}

// Store caches canonical book records by id
type Store struct {
	repo   domain.BookRepository
	books  *cache.Cache[domain.Book]
	logger *slog.Logger
}

// NewStore creates an empty book-detail store
func NewStore(repo domain.BookRepository, opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		repo:   repo,
		logger: logger,
		books: cache.New(cache.Options[domain.Book]{
			Name:    "books",
			TTL:     ttl,
			Now:     opts.Now,
			Logger:  logger,
			Backing: opts.Backing,
			Clone:   domain.Book.Clone,
		}),
	}
}

func (s *Store) Restore() error { return s.books.Restore() }

// FetchBook loads id unless a fresh copy is cached. Failures are recorded
// on the entry; a previously cached record stays readable.
func (s *Store) FetchBook(ctx context.Context, id string, force bool) error {
	return s.books.Fetch(ctx, id, force, func(ctx context.Context) (domain.Book, error) {
		book, err := s.repo.GetBook(ctx, id)
		if err != nil {
			return domain.Book{}, err
		}
		if book == nil {
			return domain.Book{}, domain.ErrNotFound
		}
		return book.Clone(), nil
	})
}

// GetBook returns the cached record for id, fresh or stale
func (s *Store) GetBook(id string) (domain.Book, bool) { return s.books.Get(id) }

// Entry returns id's record with cache metadata
func (s *Store) Entry(id string) cache.Entry[domain.Book] { return s.books.Entry(id) }

func (s *Store) IsLoading(id string) bool { return s.books.IsLoading(id) }

func (s *Store) Error(id string) error { return s.books.Err(id) }

func (s *Store) IsFresh(id string) bool { return s.books.IsFresh(id) }

// InjectTrackedStatus mirrors a confirmed tracking change onto the cached
// record without refetching it
func (s *Store) InjectTrackedStatus(bookID string, status *domain.BookTracking) {
	ok := s.books.Update(bookID, func(b domain.Book) domain.Book {
		b.Tracking = status != nil
		b.TrackingStatus = status.Clone()
		return b
	})
	if ok {
		s.logger.Debug("injected tracking status", "store", "books", "bookID", bookID, "tracking", status != nil)
	}
}

// Clear drops every cached book
func (s *Store) Clear() { s.books.Clear() }
