package tui

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/trackr/internal/domain"
	"github.com/mmcdole/trackr/internal/session"
	"github.com/mmcdole/trackr/internal/tui/components"
	"github.com/mmcdole/trackr/internal/tui/styles"
)

// ApplicationState represents the current state of the application
type ApplicationState int

const (
	StateBrowsing ApplicationState = iota
	StateHelp
	StateConfirmUntrack
)

// Tab is one top-level view
type Tab int

const (
	TabLibrary Tab = iota
	TabSearch
	TabLists
)

var tabNames = []string{"Library", "Search", "Lists"}

const (
	// Vertical chrome: tab bar, blank line, footer
	ChromeHeight = 3

	tickInterval  = 100 * time.Millisecond
	statusTimeout = 4 * time.Second
)

// Model is the main Bubble Tea model for the application
type Model struct {
	State ApplicationState
	Tab   Tab
	Ready bool

	Session *session.Session
	Keys    KeyMap
	Help    help.Model
	logger  *slog.Logger

	// UI components
	Library     *components.List
	Results     *components.List
	Lists       *components.List
	SearchInput textinput.Model

	// Dimensions
	Width  int
	Height int

	// UI state
	StatusMsg    string
	StatusIsErr  bool
	Loading      bool
	SpinnerFrame int
	Progress     LibraryProgressMsg
	progressCh   chan LibraryProgressMsg

	// Book awaiting untrack confirmation
	confirmBook domain.Book
}

// NewModel creates a new application model over s
func NewModel(s *session.Session, logger *slog.Logger) Model {
	if logger == nil {
		logger = slog.Default()
	}
	ti := textinput.New()
	ti.Placeholder = "search the catalog..."
	ti.Prompt = "? "
	ti.PromptStyle = styles.FilterPromptStyle
	ti.TextStyle = styles.FilterStyle

	m := Model{
		State:       StateBrowsing,
		Tab:         TabLibrary,
		Session:     s,
		Keys:        DefaultKeyMap(),
		Help:        help.New(),
		logger:      logger,
		Library:     components.NewList("Library", "No tracked books. Search with tab and press a to track."),
		Results:     components.NewList("Results", "Press / to search."),
		Lists:       components.NewList("My Lists", "No lists yet."),
		SearchInput: ti,
		progressCh:  make(chan LibraryProgressMsg, 8),
	}
	m.refreshLibrary()
	return m
}

// Init starts library hydration
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		HydrateLibraryCmd(m.Session.Tracked, m.progressCh),
		WaitForProgressCmd(m.progressCh),
		LoadMyListsCmd(m.Session.Lists, false),
		TickCmd(tickInterval),
	)
}

// Update handles all messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Ready = true
		m.updateLayout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case TickMsg:
		m.SpinnerFrame++
		m.Loading = m.Session.Tracked.IsLoading()
		if m.Loading {
			m.refreshLibrary()
		}
		return m, TickCmd(tickInterval)

	case LibraryProgressMsg:
		m.Progress = msg
		return m, WaitForProgressCmd(m.progressCh)

	case LibraryLoadedMsg:
		m.Loading = false
		m.refreshLibrary()
		if msg.Err != nil {
			return m, m.setError(ErrMsg{Err: msg.Err, Context: "loading library"})
		}
		return m, m.setStatus(fmt.Sprintf("Loaded %d books", m.Library.Len()))

	case TrackingChangedMsg:
		m.refreshLibrary()
		m.refreshResults()
		if msg.Err != nil {
			return m, m.setError(ErrMsg{Err: msg.Err, Context: msg.Title})
		}
		return m, m.setStatus(fmt.Sprintf("%s %s", msg.Title, msg.Action))

	case SearchResultsMsg:
		m.Loading = false
		if msg.Err != nil {
			return m, m.setError(ErrMsg{Err: msg.Err, Context: "search"})
		}
		m.setResults(msg.Result.Books)
		return m, m.setStatus(fmt.Sprintf("%d results for %q", msg.Result.Total, msg.Query))

	case ListsLoadedMsg:
		m.refreshLists()
		if msg.Err != nil {
			return m, m.setError(ErrMsg{Err: msg.Err, Context: "loading lists"})
		}
		return m, nil

	case ClearStatusMsg:
		m.StatusMsg = ""
		m.StatusIsErr = false
		return m, nil
	}
	return m, nil
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.State {
	case StateHelp:
		m.State = StateBrowsing
		return m, nil

	case StateConfirmUntrack:
		switch {
		case key.Matches(msg, m.Keys.Confirm):
			m.State = StateBrowsing
			return m, UntrackCmd(m.Session.Tracked, m.confirmBook)
		case key.Matches(msg, m.Keys.Deny):
			m.State = StateBrowsing
		}
		return m, nil
	}

	if m.SearchInput.Focused() {
		return m.handleSearchInput(msg)
	}
	if list := m.activeList(); list.IsFiltering() {
		return m, list.HandleFilterKey(msg)
	}

	list := m.activeList()
	switch {
	case key.Matches(msg, m.Keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.Keys.Help):
		m.State = StateHelp
	case key.Matches(msg, m.Keys.NextTab):
		m.Tab = (m.Tab + 1) % Tab(len(tabNames))
	case key.Matches(msg, m.Keys.PrevTab):
		m.Tab = (m.Tab + Tab(len(tabNames)) - 1) % Tab(len(tabNames))
	case key.Matches(msg, m.Keys.Up):
		list.MoveUp()
	case key.Matches(msg, m.Keys.Down):
		list.MoveDown()
	case key.Matches(msg, m.Keys.Home):
		list.MoveTop()
	case key.Matches(msg, m.Keys.End):
		list.MoveBottom()
	case key.Matches(msg, m.Keys.Escape):
		list.ClearFilter()
	case key.Matches(msg, m.Keys.Filter):
		if m.Tab == TabSearch {
			m.SearchInput.SetValue("")
			return m, m.SearchInput.Focus()
		}
		return m, list.StartFilter()
	case key.Matches(msg, m.Keys.Refresh):
		return m, m.refresh()
	default:
		return m.handleAction(msg)
	}
	return m, nil
}

func (m Model) handleSearchInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.SearchInput.Blur()
		return m, nil
	case "enter":
		query := m.SearchInput.Value()
		m.SearchInput.Blur()
		if query == "" {
			return m, nil
		}
		m.Loading = true
		return m, SearchCmd(m.Session.Search, query)
	}
	var cmd tea.Cmd
	m.SearchInput, cmd = m.SearchInput.Update(msg)
	return m, cmd
}

// handleAction handles keys that act on the selected book
func (m Model) handleAction(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	book, tracking, ok := m.selectedBook()
	if !ok {
		return m, nil
	}
	store := m.Session.Tracked

	switch {
	case key.Matches(msg, m.Keys.Track):
		if tracking != nil || store.IsPending(book.ID) {
			return m, m.setStatus(book.DisplayTitle() + " is already tracked")
		}
		cmd := TrackCmd(store, book)
		return m, cmd

	case key.Matches(msg, m.Keys.Untrack):
		if tracking == nil {
			return m, nil
		}
		m.confirmBook = book
		m.State = StateConfirmUntrack
		return m, nil

	case key.Matches(msg, m.Keys.CycleStatus):
		if tracking == nil {
			return m, nil
		}
		next := tracking.Status.Next()
		return m, UpdateTrackingCmd(store, book, domain.TrackingUpdate{Status: &next})

	case key.Matches(msg, m.Keys.ChapterUp), key.Matches(msg, m.Keys.ChapterDown):
		if tracking == nil {
			return m, nil
		}
		chapter := tracking.CurrentChapter + 1
		if key.Matches(msg, m.Keys.ChapterDown) {
			chapter = tracking.CurrentChapter - 1
		}
		if chapter < 0 || (book.Chapters > 0 && chapter > book.Chapters) {
			return m, nil
		}
		return m, UpdateTrackingCmd(store, book, domain.TrackingUpdate{CurrentChapter: &chapter})
	}
	return m, nil
}

// selectedBook resolves the cursor row of the active tab to a book and its
// current tracking record
func (m Model) selectedBook() (domain.Book, *domain.BookTracking, bool) {
	row, ok := m.activeList().Selected()
	if !ok {
		return domain.Book{}, nil, false
	}
	switch m.Tab {
	case TabLibrary:
		tb, ok := m.Session.Tracked.GetTrackedBook(row.ID)
		if !ok {
			return domain.Book{}, nil, false
		}
		return tb.Book, tb.TrackingStatus, true
	case TabSearch:
		res, _ := m.Session.Search.Results(m.lastQuery())
		for _, b := range res.Books {
			if b.ID == row.ID {
				return b, m.Session.Tracked.GetTrackedBookStatus(b.ID), true
			}
		}
	}
	return domain.Book{}, nil, false
}

func (m Model) lastQuery() string {
	if h := m.Session.Search.History(); len(h) > 0 {
		return h[0]
	}
	return ""
}

func (m Model) activeList() *components.List {
	switch m.Tab {
	case TabSearch:
		return m.Results
	case TabLists:
		return m.Lists
	default:
		return m.Library
	}
}

func (m *Model) refresh() tea.Cmd {
	switch m.Tab {
	case TabLists:
		return LoadMyListsCmd(m.Session.Lists, true)
	case TabSearch:
		return nil
	default:
		m.Loading = true
		return tea.Batch(HydrateLibraryCmd(m.Session.Tracked, m.progressCh), WaitForProgressCmd(m.progressCh))
	}
}

// refreshLibrary rebuilds library rows from the tracked store
func (m *Model) refreshLibrary() {
	store := m.Session.Tracked
	books := store.GetTrackedBooks()
	rows := make([]components.Row, 0, len(books))
	for _, tb := range books {
		rows = append(rows, components.Row{
			ID:      tb.Book.ID,
			Title:   tb.Book.DisplayTitle(),
			Detail:  tb.Book.Progress(tb.TrackingStatus),
			Status:  tb.TrackingStatus.Status,
			Pending: store.IsPending(tb.Book.ID),
		})
	}
	m.Library.SetRows(rows)
}

func (m *Model) setResults(books []domain.Book) {
	rows := make([]components.Row, 0, len(books))
	for _, b := range books {
		row := components.Row{ID: b.ID, Title: b.DisplayTitle(), Detail: b.Author}
		if t := m.Session.Tracked.GetTrackedBookStatus(b.ID); t != nil {
			row.Status = t.Status
		}
		rows = append(rows, row)
	}
	m.Results.SetRows(rows)
}

func (m *Model) refreshResults() {
	if res, ok := m.Session.Search.Results(m.lastQuery()); ok {
		m.setResults(res.Books)
	}
}

func (m *Model) refreshLists() {
	mine := m.Session.Lists.GetMyLists()
	rows := make([]components.Row, 0, len(mine))
	for _, l := range mine {
		rows = append(rows, components.Row{ID: l.ID, Title: l.Name, Detail: l.GetDescription()})
	}
	m.Lists.SetRows(rows)
}

func (m *Model) setStatus(text string) tea.Cmd {
	m.StatusMsg = text
	m.StatusIsErr = false
	return ClearStatusCmd(statusTimeout)
}

func (m *Model) setError(err ErrMsg) tea.Cmd {
	m.logger.Error("tui operation failed", "context", err.Context, "error", err.Err)
	m.StatusMsg = err.Context + ": " + domain.ErrorMessage(err.Err)
	m.StatusIsErr = true
	return ClearStatusCmd(2 * statusTimeout)
}

func (m *Model) updateLayout() {
	h := m.Height - ChromeHeight
	if h < 1 {
		h = 1
	}
	listWidth := m.Width
	if m.Width >= 80 {
		listWidth = m.Width * 60 / 100
	}
	m.Library.SetSize(listWidth, h)
	m.Results.SetSize(listWidth, h-1)
	m.Lists.SetSize(listWidth, h)
	m.Help.Width = m.Width
	m.SearchInput.Width = listWidth - 4
}
