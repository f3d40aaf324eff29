package lists

import (
	"github.com/mmcdole/trackr/internal/cache"
	"github.com/mmcdole/trackr/internal/domain"
)

// GetLists returns cached public lists
func (s *Store) GetLists() []domain.List {
	items, _ := s.public.Items()
	return items
}

// GetMyLists returns the cached lists owned by the current user
func (s *Store) GetMyLists() []domain.List {
	items, _ := s.mine.Items()
	return items
}

// GetList returns a cached list detail, fresh or stale
func (s *Store) GetList(id string) (domain.ListDetail, bool) { return s.details.Get(id) }

func (s *Store) ListsEntry() cache.Entry[[]domain.List] { return s.public.Entry() }

func (s *Store) MyListsEntry() cache.Entry[[]domain.List] { return s.mine.Entry() }

func (s *Store) DetailEntry(id string) cache.Entry[domain.ListDetail] { return s.details.Entry(id) }

func (s *Store) IsLoading(id string) bool { return s.details.IsLoading(id) }

// Error returns the last mutation error for listID, falling back to the
// last fetch error for its detail
func (s *Store) Error(listID string) error {
	s.mu.RLock()
	err := s.errs[listID]
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	return s.details.Err(listID)
}

// LastError returns the most recent mutation error across all lists
func (s *Store) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}
