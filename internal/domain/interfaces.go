package domain

// ProgressFunc reports pagination progress.
// Called repeatedly during hydration: (50, 500), (100, 500), ...
type ProgressFunc func(loaded, total int)

// TrackingInjector is implemented by every store that holds denormalized
// copies of books. Callers push a tracking change after it has been confirmed
// by the server; status == nil means the book is no longer tracked.
type TrackingInjector interface {
	InjectTrackedStatus(bookID string, status *BookTracking)
}
