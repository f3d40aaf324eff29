package tracked

import (
	"time"

	"github.com/mmcdole/trackr/internal/domain"
)

// Selectors below read current state only and never hit the network.

// IsBookTracked reports whether id has a tracked entry, including an
// optimistic one that is still waiting for the server
func (s *Store) IsBookTracked(id string) bool {
	tb, ok := s.books.Get(id)
	return ok && tb.Tracking
}

// GetTrackedBook returns a copy of one entry
func (s *Store) GetTrackedBook(id string) (domain.TrackedBook, bool) {
	tb, ok := s.books.Get(id)
	if !ok || !tb.Valid() || !tb.Tracking {
		return domain.TrackedBook{}, false
	}
	return tb, true
}

// GetTrackedBooks returns tracked entries in display order.
// Entries without a usable id are skipped.
func (s *Store) GetTrackedBooks() []domain.TrackedBook {
	s.mu.RLock()
	order := append([]string(nil), s.order...)
	s.mu.RUnlock()

	seen := make(map[string]bool, len(order))
	books := make([]domain.TrackedBook, 0, len(order))
	for _, id := range order {
		if seen[id] {
			continue
		}
		seen[id] = true
		if tb, ok := s.GetTrackedBook(id); ok {
			books = append(books, tb)
		}
	}
	return books
}

// GetTrackedBookStatus returns the tracking record for id, or nil
func (s *Store) GetTrackedBookStatus(id string) *domain.BookTracking {
	tb, ok := s.books.Get(id)
	if !ok || !tb.Tracking {
		return nil
	}
	return tb.TrackingStatus
}

// GetTrackedBooksByStatus filters GetTrackedBooks by reading status
func (s *Store) GetTrackedBooksByStatus(status domain.ReadingStatus) []domain.TrackedBook {
	var out []domain.TrackedBook
	for _, tb := range s.GetTrackedBooks() {
		if tb.TrackingStatus.Status == status {
			out = append(out, tb)
		}
	}
	return out
}

// CountByStatus tallies tracked books per reading status
func (s *Store) CountByStatus() map[domain.ReadingStatus]int {
	counts := make(map[domain.ReadingStatus]int, len(domain.ReadingStatuses))
	for _, tb := range s.GetTrackedBooks() {
		counts[tb.TrackingStatus.Status]++
	}
	return counts
}

// Error returns the last recorded error, from hydration or any mutation
func (s *Store) Error() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// BookError returns the last error recorded for one book
func (s *Store) BookError(id string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bookErrs[id]
}

// IsLoading reports whether library hydration is in flight
func (s *Store) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// IsPending reports whether an optimistic add for id awaits the server
func (s *Store) IsPending(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.pending[id]
	return ok
}

// HydratedAt returns when the library was last loaded from the server
func (s *Store) HydratedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hydratedAt
}
