package categories

import (
	"context"
	"log/slog"
	"time"

	"github.com/mmcdole/trackr/internal/api"
	"github.com/mmcdole/trackr/internal/cache"
	"github.com/mmcdole/trackr/internal/domain"
)

const (
	DefaultListTTL   = time.Hour
	DefaultDetailTTL = 30 * time.Minute
)

// Options configure a Store
type Options struct {
	Logger        *slog.Logger
	ListTTL       time.Duration
	DetailTTL     time.Duration
	Now           func() time.Time
	PageSize      int
	ListBacking   cache.Backing[[]domain.Category]
	DetailBacking cache.Backing[domain.Category]
}

// Store caches the category list and per-category detail
type Store struct {
	repo     domain.CategoryRepository
	logger   *slog.Logger
	pageSize int

	list    *cache.Collection[domain.Category]
	details *cache.Cache[domain.Category]
}

func NewStore(repo domain.CategoryRepository, opts Options) *Store {
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
		logger:   logger,
		pageSize: opts.PageSize,
		list: cache.NewCollection(cache.Options[[]domain.Category]{
			Name:    "categories",
			TTL:     opts.ListTTL,
			Now:     opts.Now,
			Logger:  logger,
			Backing: opts.ListBacking,
		}, cloneCategory),
		details: cache.New(cache.Options[domain.Category]{
			Name:    "category_details",
			TTL:     opts.DetailTTL,
			Now:     opts.Now,
			Logger:  logger,
			Backing: opts.DetailBacking,
			Clone:   cloneCategory,
		}),
	}
}

func (s *Store) Restore() error {
	if err := s.list.Restore(); err != nil {
		return err
	}
	return s.details.Restore()
}

// FetchCategories pages through /categories unless the list is fresh
func (s *Store) FetchCategories(ctx context.Context, force bool) error {
	return s.list.FetchList(ctx, force, func(ctx context.Context) ([]domain.Category, error) {
		return api.FetchAll[domain.Category](ctx, s.repo.GetCategories, s.pageSize, 0, nil)
	})
}

// FetchCategory loads one category with its books
func (s *Store) FetchCategory(ctx context.Context, id string, force bool) error {
	return s.details.Fetch(ctx, id, force, func(ctx context.Context) (domain.Category, error) {
		c, err := s.repo.GetCategory(ctx, id)
		if err != nil {
			return domain.Category{}, err
		}
		if c == nil {
			return domain.Category{}, domain.ErrNotFound
		}
		return cloneCategory(*c), nil
	})
}

// GetCategories returns the cached list, or nil before the first fetch
func (s *Store) GetCategories() []domain.Category {
	items, _ := s.list.Items()
	return items
}

func (s *Store) GetCategory(id string) (domain.Category, bool) { return s.details.Get(id) }

func (s *Store) ListEntry() cache.Entry[[]domain.Category] { return s.list.Entry() }

func (s *Store) IsListLoading() bool { return s.list.IsLoading() }

func (s *Store) ListError() error { return s.list.Err() }

func (s *Store) IsLoading(id string) bool { return s.details.IsLoading(id) }

func (s *Store) Error(id string) error { return s.details.Err(id) }

// InjectTrackedStatus mirrors a tracking change onto every cached category
// detail that lists the book
func (s *Store) InjectTrackedStatus(bookID string, status *domain.BookTracking) {
	n := s.details.UpdateAll(func(_ string, c domain.Category) (domain.Category, bool) {
		changed := false
		for i := range c.Books {
			if c.Books[i].ID == bookID {
				c.Books[i].Tracking = status != nil
				c.Books[i].TrackingStatus = status.Clone()
				changed = true
			}
		}
		return c, changed
	})
	if n > 0 {
		s.logger.Debug("injected tracking status", "store", "categories", "bookID", bookID, "categories", n)
	}
}

func (s *Store) Clear() {
	s.list.Clear()
	s.details.Clear()
}

func cloneCategory(c domain.Category) domain.Category {
	dup := c
	if c.Books != nil {
		dup.Books = make([]domain.Book, len(c.Books))
		for i, b := range c.Books {
			dup.Books[i] = b.Clone()
		}
	}
	return dup
}
