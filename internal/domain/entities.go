package domain

import (
	"fmt"
	"strings"
	"time"
)

// ReadingStatus is the user's progress state for a tracked book
type ReadingStatus string

const (
	StatusPlanToRead ReadingStatus = "plan_to_read"
	StatusReading    ReadingStatus = "reading"
	StatusCompleted  ReadingStatus = "completed"
	StatusOnHold     ReadingStatus = "on_hold"
	StatusDropped    ReadingStatus = "dropped"
)

// ReadingStatuses lists every status in display order
var ReadingStatuses = []ReadingStatus{
	StatusPlanToRead,
	StatusReading,
	StatusCompleted,
	StatusOnHold,
	StatusDropped,
}

// Valid reports whether s is one of the known statuses
func (s ReadingStatus) Valid() bool {
	for _, known := range ReadingStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Next returns the status that follows s in display order, wrapping around
func (s ReadingStatus) Next() ReadingStatus {
	for i, known := range ReadingStatuses {
		if s == known {
			return ReadingStatuses[(i+1)%len(ReadingStatuses)]
		}
	}
	return StatusPlanToRead
}

// Label returns a human-readable representation of the status
func (s ReadingStatus) Label() string {
	switch s {
	case StatusPlanToRead:
		return "Plan to Read"
	case StatusReading:
		return "Reading"
	case StatusCompleted:
		return "Completed"
	case StatusOnHold:
		return "On Hold"
	case StatusDropped:
		return "Dropped"
	default:
		return "Unknown"
	}
}

// ParseReadingStatus accepts either the wire form ("on_hold") or a loose form ("on hold", "On-Hold")
func ParseReadingStatus(raw string) (ReadingStatus, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.NewReplacer(" ", "_", "-", "_").Replace(normalized)
	status := ReadingStatus(normalized)
	if !status.Valid() {
		return "", fmt.Errorf("unknown reading status %q", raw)
	}
	return status, nil
}

// Book is the canonical book record served by GET /books/{id}
type Book struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Author      string   `json:"author,omitempty"`
	CoverURL    string   `json:"cover_url,omitempty"`
	Description string   `json:"description,omitempty"`
	Status      string   `json:"status,omitempty"` // Publication status ("ongoing", "finished")
	Chapters    int      `json:"chapters,omitempty"`
	Volumes     int      `json:"volumes,omitempty"`
	Rating      float64  `json:"rating,omitempty"` // Community rating
	Categories  []string `json:"categories,omitempty"`

	// Denormalized copy of the current user's tracking state. Kept in sync
	// by InjectTrackedStatus on the stores that hold books.
	Tracking       bool          `json:"tracking,omitempty"`
	TrackingStatus *BookTracking `json:"tracking_status,omitempty"`
}

// DisplayTitle returns the title, falling back to the ID for untitled records
func (b Book) DisplayTitle() string {
	if strings.TrimSpace(b.Title) != "" {
		return b.Title
	}
	return "Book " + b.ID
}

// Progress returns a short "Ch. 12/140" style progress label
func (b Book) Progress(t *BookTracking) string {
	if t == nil {
		return ""
	}
	if b.Chapters > 0 {
		return fmt.Sprintf("Ch. %d/%d", t.CurrentChapter, b.Chapters)
	}
	return fmt.Sprintf("Ch. %d", t.CurrentChapter)
}

// BookTracking is the current user's tracking record for one book
type BookTracking struct {
	Status         ReadingStatus `json:"status"`
	CurrentChapter int           `json:"current_chapter"`
	CurrentVolume  int           `json:"current_volume"`
	Rating         *float64      `json:"rating,omitempty"` // nil = unrated
	StartDate      *time.Time    `json:"start_date,omitempty"`
	FinishDate     *time.Time    `json:"finish_date,omitempty"`
	Notes          string        `json:"notes,omitempty"`
	LastReadAt     *time.Time    `json:"last_read_at,omitempty"`
	CreatedAt      *time.Time    `json:"created_at,omitempty"`
	UpdatedAt      *time.Time    `json:"updated_at,omitempty"`
}

// Clone returns a deep copy so callers can't mutate cached state
func (t *BookTracking) Clone() *BookTracking {
	if t == nil {
		return nil
	}
	dup := *t
	dup.Rating = clonePtr(t.Rating)
	dup.StartDate = clonePtr(t.StartDate)
	dup.FinishDate = clonePtr(t.FinishDate)
	dup.LastReadAt = clonePtr(t.LastReadAt)
	dup.CreatedAt = clonePtr(t.CreatedAt)
	dup.UpdatedAt = clonePtr(t.UpdatedAt)
	return &dup
}

// TrackingUpdate is the partial body of PATCH /me/books/{id}.
// Only non-nil fields are sent.
type TrackingUpdate struct {
	Status         *ReadingStatus `json:"status,omitempty"`
	CurrentChapter *int           `json:"current_chapter,omitempty"`
	CurrentVolume  *int           `json:"current_volume,omitempty"`
	Rating         *float64       `json:"rating,omitempty"`
	StartDate      *time.Time     `json:"start_date,omitempty"`
	FinishDate     *time.Time     `json:"finish_date,omitempty"`
	Notes          *string        `json:"notes,omitempty"`
}

// IsEmpty reports whether the update carries no fields
func (u TrackingUpdate) IsEmpty() bool {
	return u.Status == nil && u.CurrentChapter == nil && u.CurrentVolume == nil &&
		u.Rating == nil && u.StartDate == nil && u.FinishDate == nil && u.Notes == nil
}

// TrackedBook is a book together with the current user's tracking state.
// Tracking is true if and only if TrackingStatus is non-nil.
type TrackedBook struct {
	Book           Book          `json:"book"`
	Tracking       bool          `json:"tracking"`
	TrackingStatus *BookTracking `json:"tracking_status,omitempty"`
}

// NewTrackedBook builds an entry that satisfies the tracking invariant
func NewTrackedBook(book Book, status *BookTracking) TrackedBook {
	tb := TrackedBook{Book: book, TrackingStatus: status}
	return tb.Normalize()
}

// Normalize re-derives Tracking from TrackingStatus and mirrors both onto the
// embedded book so every copy of the record agrees.
func (tb TrackedBook) Normalize() TrackedBook {
	tb.Tracking = tb.TrackingStatus != nil
	tb.Book.Tracking = tb.Tracking
	tb.Book.TrackingStatus = tb.TrackingStatus
	return tb
}

// Clone returns a deep copy of the entry
func (tb TrackedBook) Clone() TrackedBook {
	dup := tb
	dup.Book = tb.Book.Clone()
	dup.TrackingStatus = tb.TrackingStatus.Clone()
	dup.Book.TrackingStatus = dup.TrackingStatus
	return dup
}

// Valid reports whether the entry is well-formed enough to display
func (tb TrackedBook) Valid() bool {
	return strings.TrimSpace(tb.Book.ID) != ""
}

// Clone returns a deep copy of the book
func (b Book) Clone() Book {
	dup := b
	if b.Categories != nil {
		dup.Categories = append([]string(nil), b.Categories...)
	}
	dup.TrackingStatus = b.TrackingStatus.Clone()
	return dup
}

// Category groups books by genre/tag
type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	BookCount   int    `json:"book_count"`
	Books       []Book `json:"books,omitempty"` // Only populated by GET /categories/{id}
}

// List is a user-curated collection of books
type List struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Description     string     `json:"description,omitempty"`
	IsPublic        bool       `json:"is_public"`
	OwnerID         string     `json:"owner_id,omitempty"`
	TotalBooks      int        `json:"total_books"`
	FirstBookCovers []string   `json:"first_book_covers"`
	CreatedAt       *time.Time `json:"created_at,omitempty"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
}

// MaxPreviewCovers caps List.FirstBookCovers
const MaxPreviewCovers = 3

// GetDescription returns secondary info for display
func (l List) GetDescription() string {
	if l.TotalBooks == 1 {
		return "1 book"
	}
	return fmt.Sprintf("%d books", l.TotalBooks)
}

// Clone returns a copy with its own cover slice
func (l List) Clone() List {
	dup := l
	if l.FirstBookCovers != nil {
		dup.FirstBookCovers = append([]string(nil), l.FirstBookCovers...)
	}
	return dup
}

// ListDetail is a list together with its books (GET /lists/{id})
type ListDetail struct {
	List
	Books []Book `json:"books"`
}

// NewList is the body of POST /lists
type NewList struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IsPublic    bool   `json:"is_public"`
}

// Page is the paginated envelope used by listing endpoints
type Page[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
