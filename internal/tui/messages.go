package tui

import "github.com/mmcdole/trackr/internal/search"

// ErrMsg represents an error
type ErrMsg struct {
	Err     error
	Context string
}

// Error implements the error interface
func (e ErrMsg) Error() string {
	if e.Context != "" {
		return e.Context + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

// LibraryLoadedMsg signals that library hydration finished
type LibraryLoadedMsg struct {
	Err error
}

// LibraryProgressMsg reports hydration paging progress
type LibraryProgressMsg struct {
	Loaded int
	Total  int
}

// TrackingChangedMsg signals that a tracking mutation settled
type TrackingChangedMsg struct {
	BookID string
	Title  string
	Action string // "tracked", "untracked", "updated"
	Err    error
}

// SearchResultsMsg carries the result of a catalog search
type SearchResultsMsg struct {
	Query  string
	Result search.Result
	Err    error
}

// ListsLoadedMsg signals that the user's lists finished loading
type ListsLoadedMsg struct {
	Err error
}

// TickMsg drives the spinner
type TickMsg struct{}

// ClearStatusMsg clears the status line
type ClearStatusMsg struct{}
