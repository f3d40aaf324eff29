package search

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/mmcdole/trackr/internal/cache"
	"github.com/mmcdole/trackr/internal/domain"
)

const (
	DefaultTTL   = 10 * time.Minute
	DefaultLimit = 20
	MaxHistory   = 10
)

// Result is one page of remote search results
type Result struct {
	Query string        `json:"query"`
	Books []domain.Book `json:"books"`
	Total int           `json:"total"`
}

// Options configure a Store
type Options struct {
	Logger  *slog.Logger
	TTL     time.Duration
	Limit   int
	Now     func() time.Time
	Backing cache.Backing[Result]
}

// Store caches remote book searches per normalized query and keeps a
// most-recent-first history of queries
type Store struct {
	repo   domain.BookRepository
	logger *slog.Logger
	limit  int

	results *cache.Cache[Result]

	mu      sync.RWMutex
	history []string
}

func NewStore(repo domain.BookRepository, opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	return &Store{
		repo:   repo,
		logger: logger,
		limit:  opts.Limit,
		results: cache.New(cache.Options[Result]{
			Name:    "search",
			TTL:     opts.TTL,
			Now:     opts.Now,
			Logger:  logger,
			Backing: opts.Backing,
			Clone:   cloneResult,
		}),
	}
}

func (s *Store) Restore() error { return s.results.Restore() }

// Normalize lowercases and collapses whitespace so equivalent queries share
// one cache entry
func Normalize(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// Search runs query against the server unless a fresh result is cached.
// An empty query returns an empty result without a request.
func (s *Store) Search(ctx context.Context, query string, force bool) (Result, error) {
	key := Normalize(query)
	if key == "" {
		return Result{}, nil
	}
	s.remember(key)

	err := s.results.Fetch(ctx, key, force, func(ctx context.Context) (Result, error) {
		books, total, err := s.repo.SearchBooks(ctx, key, 0, s.limit)
		if err != nil {
			return Result{}, err
		}
		s.logger.Debug("search complete", "query", key, "results", len(books), "total", total)
		return Result{Query: key, Books: rankResults(books, key), Total: total}, nil
	})

	res, _ := s.results.Get(key)
	return res, err
}

// Results returns the cached result for query, fresh or stale
func (s *Store) Results(query string) (Result, bool) {
	return s.results.Get(Normalize(query))
}

func (s *Store) IsLoading(query string) bool { return s.results.IsLoading(Normalize(query)) }

func (s *Store) Error(query string) error { return s.results.Err(Normalize(query)) }

// History returns recent queries, newest first
func (s *Store) History() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.history...)
}

func (s *Store) ClearHistory() {
	s.mu.Lock()
	s.history = nil
	s.mu.Unlock()
}

func (s *Store) remember(query string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := []string{query}
	for _, q := range s.history {
		if q != query && len(kept) < MaxHistory {
			kept = append(kept, q)
		}
	}
	s.history = kept
}

// InjectTrackedStatus mirrors a tracking change onto cached search results
func (s *Store) InjectTrackedStatus(bookID string, status *domain.BookTracking) {
	s.results.UpdateAll(func(_ string, r Result) (Result, bool) {
		changed := false
		for i := range r.Books {
			if r.Books[i].ID == bookID {
				r.Books[i].Tracking = status != nil
				r.Books[i].TrackingStatus = status.Clone()
				changed = true
			}
		}
		return r, changed
	})
}

// Clear drops cached results and history
func (s *Store) Clear() {
	s.results.Clear()
	s.ClearHistory()
}

// FilterTracked ranks tracked books against query by title and author,
// best match first. An empty query returns books unchanged.
func FilterTracked(query string, books []domain.TrackedBook) []domain.TrackedBook {
	query = Normalize(query)
	if query == "" {
		return books
	}

	targets := make([]string, len(books))
	for i, tb := range books {
		targets[i] = tb.Book.DisplayTitle() + " " + tb.Book.Author
	}

	matches := fuzzy.RankFindFold(query, targets)
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].OriginalIndex < matches[j].OriginalIndex
	})

	out := make([]domain.TrackedBook, 0, len(matches))
	for _, m := range matches {
		out = append(out, books[m.OriginalIndex])
	}
	return out
}

// rankResults orders server results so closer title matches come first
func rankResults(books []domain.Book, query string) []domain.Book {
	type ranked struct {
		book  domain.Book
		score int
	}
	rows := make([]ranked, len(books))
	for i, b := range books {
		rows[i] = ranked{book: b, score: matchScore(strings.ToLower(b.Title), query)}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].score < rows[j].score })

	out := make([]domain.Book, len(rows))
	for i, r := range rows {
		out[i] = r.book
	}
	return out
}

// matchScore: lower is better
func matchScore(title, query string) int {
	switch {
	case title == query:
		return 0
	case strings.HasPrefix(title, query):
		return 10
	case strings.Contains(title, query):
		return 50
	}
	return 100 + fuzzy.LevenshteinDistance(query, title)
}

func cloneResult(r Result) Result {
	dup := r
	if r.Books != nil {
		dup.Books = make([]domain.Book, len(r.Books))
		for i, b := range r.Books {
			dup.Books[i] = b.Clone()
		}
	}
	return dup
}
