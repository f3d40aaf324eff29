package domain

import "context"

// BookRepository: Network operations for canonical book records
type BookRepository interface {
	GetBook(ctx context.Context, bookID string) (*Book, error)
	SearchBooks(ctx context.Context, query string, offset, limit int) ([]Book, int, error)
}

// TrackingRepository: Network operations on the current user's library (/me/books)
type TrackingRepository interface {
	GetMyBooks(ctx context.Context, offset, limit int) ([]TrackedBook, int, error)
	TrackBook(ctx context.Context, bookID string) error
	UntrackBook(ctx context.Context, bookID string) error

	// UpdateTracking returns the full updated record, including the nested book
	UpdateTracking(ctx context.Context, bookID string, update TrackingUpdate) (*TrackedBook, error)

	// ContainsBook returns the tracking record, or nil if the user doesn't track the book
	ContainsBook(ctx context.Context, bookID string) (*BookTracking, error)
}

// CategoryRepository: Network operations for categories
type CategoryRepository interface {
	GetCategories(ctx context.Context, offset, limit int) ([]Category, int, error)
	GetCategory(ctx context.Context, categoryID string) (*Category, error)
}

// ListRepository: Network operations for lists
type ListRepository interface {
	GetLists(ctx context.Context, offset, limit int) ([]List, int, error)
	GetMyLists(ctx context.Context, offset, limit int) ([]List, int, error)
	GetList(ctx context.Context, listID string) (*ListDetail, error)
	CreateList(ctx context.Context, list NewList) (*List, error)
	AddBookToList(ctx context.Context, listID, bookID string) error
	RemoveBookFromList(ctx context.Context, listID, bookID string) error
}

// Repository combines every network interface the API client implements
type Repository interface {
	BookRepository
	TrackingRepository
	CategoryRepository
	ListRepository
}
