package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/trackr/internal/domain"
	"github.com/mmcdole/trackr/internal/tui/styles"
	"github.com/sahilm/fuzzy"
)

// Row is one displayable entry
type Row struct {
	ID      string
	Title   string
	Detail  string               // Right-aligned secondary text
	Status  domain.ReadingStatus // Empty hides the indicator
	Pending bool                 // Waiting on the server
}

// List is a scrollable, filterable column of rows
type List struct {
	title  string
	rows   []Row
	cursor int
	offset int
	width  int
	height int
	empty  string

	// Filter state
	filterActive bool
	filterInput  textinput.Model
	filterQuery  string
	filteredIdx  []int // indices into rows; nil when unfiltered
}

// NewList creates an empty list
func NewList(title, empty string) *List {
	ti := textinput.New()
	ti.Placeholder = "type to filter..."
	ti.Prompt = "/ "
	ti.PromptStyle = styles.FilterPromptStyle
	ti.TextStyle = styles.FilterStyle

	return &List{title: title, empty: empty, filterInput: ti}
}

// SetRows replaces the rows, keeping the selection on the same ID when possible
func (l *List) SetRows(rows []Row) {
	selectedID := ""
	if r, ok := l.Selected(); ok {
		selectedID = r.ID
	}
	l.rows = rows
	if l.filterQuery != "" {
		l.applyFilter()
	}

	l.cursor = 0
	for i, idx := range l.visible() {
		if rows[idx].ID == selectedID {
			l.cursor = i
			break
		}
	}
	l.clamp()
}

// SetSize sets the render area
func (l *List) SetSize(width, height int) {
	l.width = width
	l.height = height
	l.clamp()
}

// Len returns the number of visible rows
func (l *List) Len() int { return len(l.visible()) }

// Selected returns the row under the cursor
func (l *List) Selected() (Row, bool) {
	vis := l.visible()
	if l.cursor < 0 || l.cursor >= len(vis) {
		return Row{}, false
	}
	return l.rows[vis[l.cursor]], true
}

func (l *List) MoveUp() {
	l.cursor--
	l.clamp()
}

func (l *List) MoveDown() {
	l.cursor++
	l.clamp()
}

func (l *List) MoveTop() {
	l.cursor = 0
	l.clamp()
}

func (l *List) MoveBottom() {
	l.cursor = len(l.visible()) - 1
	l.clamp()
}

// IsFiltering reports whether the filter input has focus
func (l *List) IsFiltering() bool { return l.filterActive }

// FilterQuery returns the applied filter
func (l *List) FilterQuery() string { return l.filterQuery }

// StartFilter focuses the filter input
func (l *List) StartFilter() tea.Cmd {
	l.filterActive = true
	l.filterInput.SetValue(l.filterQuery)
	return l.filterInput.Focus()
}

// ClearFilter drops the filter and shows every row
func (l *List) ClearFilter() {
	l.filterActive = false
	l.filterQuery = ""
	l.filteredIdx = nil
	l.filterInput.SetValue("")
	l.filterInput.Blur()
	l.clamp()
}

// HandleFilterKey routes a key to the focused filter input. Enter keeps the
// filter applied; esc clears it.
func (l *List) HandleFilterKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		l.ClearFilter()
		return nil
	case "enter":
		l.filterActive = false
		l.filterInput.Blur()
		return nil
	case "up", "ctrl+p":
		l.MoveUp()
		return nil
	case "down", "ctrl+n":
		l.MoveDown()
		return nil
	}

	var cmd tea.Cmd
	l.filterInput, cmd = l.filterInput.Update(msg)
	if l.filterInput.Value() != l.filterQuery {
		l.applyFilter()
	}
	return cmd
}

func (l *List) applyFilter() {
	query := l.filterInput.Value()
	if !l.filterActive {
		query = l.filterQuery
	}
	l.filterQuery = query

	if query == "" {
		l.filteredIdx = nil
		return
	}

	lowerTitles := make([]string, len(l.rows))
	for i, r := range l.rows {
		lowerTitles[i] = strings.ToLower(r.Title)
	}

	matches := fuzzy.Find(strings.ToLower(query), lowerTitles)
	l.filteredIdx = make([]int, len(matches))
	for i, match := range matches {
		l.filteredIdx[i] = match.Index
	}

	l.cursor = 0
	l.offset = 0
}

func (l *List) visible() []int {
	if l.filteredIdx != nil {
		return l.filteredIdx
	}
	idx := make([]int, len(l.rows))
	for i := range idx {
		idx[i] = i
	}
	return idx
}

func (l *List) maxVisible() int {
	h := l.height - 2 // title + blank line
	if l.filterActive || l.filterQuery != "" {
		h--
	}
	if h < 1 {
		return 1
	}
	return h
}

func (l *List) clamp() {
	n := len(l.visible())
	if l.cursor >= n {
		l.cursor = n - 1
	}
	if l.cursor < 0 {
		l.cursor = 0
	}
	limit := l.maxVisible()
	if l.cursor < l.offset {
		l.offset = l.cursor
	}
	if l.cursor >= l.offset+limit {
		l.offset = l.cursor - limit + 1
	}
	if l.offset < 0 {
		l.offset = 0
	}
}

// View renders the list
func (l *List) View() string {
	var b strings.Builder
	b.WriteString(styles.TitleStyle.Render(l.title))
	if l.filterQuery != "" && !l.filterActive {
		b.WriteString(styles.DimStyle.Render("  filter: " + l.filterQuery))
	}
	b.WriteString("\n\n")

	if l.filterActive {
		b.WriteString(l.filterInput.View())
		b.WriteString("\n")
	}

	vis := l.visible()
	if len(vis) == 0 {
		b.WriteString(styles.DimStyle.Render(l.empty))
		return b.String()
	}

	end := l.offset + l.maxVisible()
	if end > len(vis) {
		end = len(vis)
	}
	for i := l.offset; i < end; i++ {
		r := l.rows[vis[i]]
		left := r.Title
		if r.Status != "" {
			left = styles.StatusChar(r.Status) + " " + left
		}
		line := styles.RenderRow(left, r.Detail, i == l.cursor, l.width)
		if r.Pending && i != l.cursor {
			line = styles.PendingItemStyle.Render(line)
		}
		b.WriteString(line)
		if i < end-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}
