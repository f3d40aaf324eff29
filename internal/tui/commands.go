package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/trackr/internal/domain"
	"github.com/mmcdole/trackr/internal/lists"
	"github.com/mmcdole/trackr/internal/search"
	"github.com/mmcdole/trackr/internal/tracked"
)

// Command factories for async operations

const (
	hydrateTimeout  = 2 * time.Minute
	mutationTimeout = 30 * time.Second
)

// HydrateLibraryCmd pages the user's library into the tracked store,
// reporting progress on ch
func HydrateLibraryCmd(store *tracked.Store, ch chan<- LibraryProgressMsg) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), hydrateTimeout)
		defer cancel()

		err := store.FetchMyLibraryBooks(ctx, ChannelProgress(ch))
		return LibraryLoadedMsg{Err: err}
	}
}

// WaitForProgressCmd waits for the next hydration progress update
func WaitForProgressCmd(ch <-chan LibraryProgressMsg) tea.Cmd {
	return func() tea.Msg {
		progress, ok := <-ch
		if !ok {
			return nil
		}
		return progress
	}
}

// UpdateTrackingCmd sends a partial tracking update for one book
func UpdateTrackingCmd(store *tracked.Store, book domain.Book, update domain.TrackingUpdate) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), mutationTimeout)
		defer cancel()

		err := store.UpdateTrackedBook(ctx, book.ID, update)
		return TrackingChangedMsg{BookID: book.ID, Title: book.DisplayTitle(), Action: "updated", Err: err}
	}
}

// TrackCmd adds book to the library
func TrackCmd(store *tracked.Store, book domain.Book) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), mutationTimeout)
		defer cancel()

		err := store.AddTrackedBook(ctx, book)
		return TrackingChangedMsg{BookID: book.ID, Title: book.DisplayTitle(), Action: "tracked", Err: err}
	}
}

// UntrackCmd removes book from the library
func UntrackCmd(store *tracked.Store, book domain.Book) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), mutationTimeout)
		defer cancel()

		err := store.RemoveTrackedBook(ctx, book.ID)
		return TrackingChangedMsg{BookID: book.ID, Title: book.DisplayTitle(), Action: "untracked", Err: err}
	}
}

// SearchCmd runs a catalog search
func SearchCmd(store *search.Store, query string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), mutationTimeout)
		defer cancel()

		res, err := store.Search(ctx, query, false)
		return SearchResultsMsg{Query: query, Result: res, Err: err}
	}
}

// LoadMyListsCmd loads the user's lists
func LoadMyListsCmd(store *lists.Store, force bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), mutationTimeout)
		defer cancel()

		return ListsLoadedMsg{Err: store.FetchMyLists(ctx, force)}
	}
}

// TickCmd returns a command that ticks after a delay
func TickCmd(delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(t time.Time) tea.Msg {
		return TickMsg{}
	})
}

// ClearStatusCmd returns a command that clears status after a delay
func ClearStatusCmd(delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(t time.Time) tea.Msg {
		return ClearStatusMsg{}
	})
}

// ChannelProgress adapts a progress channel to domain.ProgressFunc.
// Sends never block; updates are dropped while the channel is full.
func ChannelProgress(ch chan<- LibraryProgressMsg) domain.ProgressFunc {
	if ch == nil {
		return nil
	}
	return func(loaded, total int) {
		select {
		case ch <- LibraryProgressMsg{Loaded: loaded, Total: total}:
		default:
		}
	}
}
