package session

import (
	"fmt"
	"log/slog"

	"github.com/mmcdole/trackr/internal/api"
	"github.com/mmcdole/trackr/internal/books"
	"github.com/mmcdole/trackr/internal/categories"
	"github.com/mmcdole/trackr/internal/config"
	"github.com/mmcdole/trackr/internal/domain"
	"github.com/mmcdole/trackr/internal/events"
	"github.com/mmcdole/trackr/internal/lists"
	"github.com/mmcdole/trackr/internal/search"
	"github.com/mmcdole/trackr/internal/store"
	"github.com/mmcdole/trackr/internal/tracked"
)

// Session owns every store for one signed-in account. Stores publish
// tracking changes on Bus; the session subscribes the stores holding
// denormalized book copies.
type Session struct {
	Bus        *events.Bus
	Tracked    *tracked.Store
	Books      *books.Store
	Categories *categories.Store
	Lists      *lists.Store
	Search     *search.Store

	db          *store.DB
	logger      *slog.Logger
	unsubscribe []func()
}

// Open builds the API client and cache database described by cfg and
// returns a ready session
func Open(cfg *config.Config, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := api.NewClient(api.Options{
		BaseURL:    cfg.Server.URL,
		Token:      cfg.Server.Token,
		UserAgent:  cfg.Server.UserAgent,
		Timeout:    cfg.Server.Timeout,
		MaxRetries: cfg.Server.MaxRetries,
	}, logger)
	if err != nil {
		return nil, err
	}

	db, err := store.Open(cfg.CacheDir(), cfg.Server.URL)
	if err != nil {
		logger.Warn("cache database unavailable, continuing in memory", "error", err)
		db, _ = store.Open("", "")
	}
	return New(cfg, client, db, logger), nil
}

// New wires stores over repo, persisting them in db
func New(cfg *config.Config, repo domain.Repository, db *store.DB, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if db == nil {
		db, _ = store.Open("", "")
	}
	c := cfg.Cache
	pageSize := cfg.UI.PageSize
	bus := events.NewBus(logger)

	s := &Session{
		Bus:    bus,
		db:     db,
		logger: logger,
		Tracked: tracked.NewStore(repo, tracked.Options{
			Logger:   logger,
			Bus:      bus,
			PageSize: pageSize,
			Backing:  store.NewBucket[domain.TrackedBook](db, store.BucketTracked),
		}),
		Books: books.NewStore(repo, books.Options{
			Logger:  logger,
			TTL:     c.BookTTL,
			Backing: store.NewBucket[domain.Book](db, store.BucketBooks),
		}),
		Categories: categories.NewStore(repo, categories.Options{
			Logger:        logger,
			ListTTL:       c.CategoryTTL,
			DetailTTL:     c.CategoryDetailTTL,
			PageSize:      pageSize,
			ListBacking:   store.NewBucket[[]domain.Category](db, store.BucketCategories),
			DetailBacking: store.NewBucket[domain.Category](db, store.BucketCategoryDetails),
		}),
		Lists: lists.NewStore(repo, lists.Options{
			Logger:        logger,
			Bus:           bus,
			ListTTL:       c.ListTTL,
			DetailTTL:     c.ListDetailTTL,
			PageSize:      pageSize,
			PublicBacking: store.NewBucket[[]domain.List](db, store.BucketPublicLists),
			MineBacking:   store.NewBucket[[]domain.List](db, store.BucketMyLists),
			DetailBacking: store.NewBucket[domain.ListDetail](db, store.BucketListDetails),
		}),
		Search: search.NewStore(repo, search.Options{
			Logger:  logger,
			TTL:     c.SearchTTL,
			Backing: store.NewBucket[search.Result](db, store.BucketSearch),
		}),
	}

	for _, target := range []domain.TrackingInjector{s.Books, s.Categories, s.Lists, s.Search} {
		s.unsubscribe = append(s.unsubscribe, bus.Subscribe(events.Injector(target)))
	}

	if db.Persistent() {
		s.restore()
	}
	return s
}

func (s *Session) restore() {
	restorers := map[string]func() error{
		"tracked":    s.Tracked.Restore,
		"books":      s.Books.Restore,
		"categories": s.Categories.Restore,
		"lists":      s.Lists.Restore,
		"search":     s.Search.Restore,
	}
	for name, restore := range restorers {
		if err := restore(); err != nil {
			s.logger.Warn("failed to restore cache", "store", name, "error", err)
		}
	}
}

// Logout drops every cached entity, in memory and on disk
func (s *Session) Logout() error {
	s.Tracked.Clear()
	s.Books.Clear()
	s.Categories.Clear()
	s.Lists.Clear()
	s.Search.Clear()
	err := s.db.InvalidateAll()
	s.logger.Info("session cleared")
	return err
}

// Close detaches subscriptions and closes the cache database
func (s *Session) Close() error {
	for _, unsub := range s.unsubscribe {
		unsub()
	}
	s.unsubscribe = nil
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close cache database: %w", err)
	}
	return nil
}
