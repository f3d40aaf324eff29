package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mmcdole/trackr/internal/domain"
	"github.com/mmcdole/trackr/internal/tui/styles"
)

// View renders the application
func (m Model) View() string {
	if !m.Ready {
		return "Loading..."
	}

	switch m.State {
	case StateHelp:
		return m.renderHelp()
	case StateConfirmUntrack:
		return m.renderConfirmUntrack()
	}

	var body string
	switch m.Tab {
	case TabSearch:
		body = m.SearchInput.View() + "\n" + m.Results.View()
	case TabLists:
		body = m.Lists.View()
	default:
		body = m.Library.View()
	}

	if detail := m.renderDetail(); detail != "" && m.Width >= 80 {
		body = lipgloss.JoinHorizontal(lipgloss.Top, body, "  ", detail)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderTabs(),
		lipgloss.NewStyle().Height(m.Height-ChromeHeight).MaxHeight(m.Height-ChromeHeight).Render(body),
		m.renderFooter(),
	)
}

func (m Model) renderTabs() string {
	parts := make([]string, len(tabNames))
	for i, name := range tabNames {
		if Tab(i) == m.Tab {
			parts[i] = styles.ActiveTabStyle.Render(name)
		} else {
			parts[i] = styles.InactiveTabStyle.Render(name)
		}
	}
	counts := m.Session.Tracked.CountByStatus()
	summary := styles.DimStyle.Render(fmt.Sprintf("  %d reading · %d completed",
		counts[domain.StatusReading], counts[domain.StatusCompleted]))
	return lipgloss.JoinHorizontal(lipgloss.Top, append(parts, summary)...) + "\n"
}

// renderDetail renders the panel for the selected book
func (m Model) renderDetail() string {
	if m.Tab == TabLists {
		return ""
	}
	book, tracking, ok := m.selectedBook()
	if !ok {
		return ""
	}
	width := m.Width*40/100 - 4
	if width < 20 {
		return ""
	}

	var b strings.Builder
	b.WriteString(styles.TitleStyle.Render(styles.Truncate(book.DisplayTitle(), width)))
	b.WriteString("\n")
	if book.Author != "" {
		b.WriteString(styles.SubtitleStyle.Render(book.Author))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if tracking != nil {
		b.WriteString(styles.RenderStatus(tracking.Status) + " " + tracking.Status.Label())
		if p := book.Progress(tracking); p != "" {
			b.WriteString(styles.DimStyle.Render("  " + p))
		}
		b.WriteString("\n")
		if tracking.Rating != nil {
			b.WriteString(styles.DimStyle.Render(fmt.Sprintf("Rating %.1f", *tracking.Rating)))
			b.WriteString("\n")
		}
	} else {
		b.WriteString(styles.DimStyle.Render("Not tracked"))
		b.WriteString("\n")
	}
	if m.Session.Tracked.IsPending(book.ID) {
		b.WriteString(styles.DimStyle.Render("Saving..."))
		b.WriteString("\n")
	}
	if err := m.Session.Tracked.BookError(book.ID); err != nil {
		b.WriteString(RenderError(err, width))
		b.WriteString("\n")
	}
	if book.Description != "" {
		b.WriteString("\n")
		b.WriteString(styles.SubtitleStyle.Render(wordWrap(book.Description, width)))
	}

	return styles.PanelStyle.Width(width).Render(b.String())
}

// renderFooter renders the status line and key hints
func (m Model) renderFooter() string {
	var left string
	if m.Loading {
		statusText := "Loading..."
		if m.Progress.Total > 0 {
			statusText = fmt.Sprintf("Syncing library · %d/%d", m.Progress.Loaded, m.Progress.Total)
		}
		left = RenderSpinner(m.SpinnerFrame) + " " + styles.DimStyle.Render(statusText)
	} else if m.StatusMsg != "" {
		if m.StatusIsErr {
			left = styles.ErrorStyle.Render(m.StatusMsg)
		} else {
			left = styles.DimStyle.Render(m.StatusMsg)
		}
	} else if err := m.Session.Tracked.Error(); err != nil {
		left = styles.ErrorStyle.Render(domain.ErrorMessage(err))
	}

	right := m.Help.View(m.Keys)
	gap := m.Width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		return left
	}
	return left + strings.Repeat(" ", gap) + right
}

// renderHelp renders the help screen
func (m Model) renderHelp() string {
	m.Help.ShowAll = true
	content := styles.TitleStyle.Render("Keys") + "\n\n" + m.Help.View(m.Keys) +
		"\n\n" + styles.DimStyle.Render("Press any key to return...")
	return lipgloss.Place(m.Width, m.Height,
		lipgloss.Center, lipgloss.Center,
		styles.ModalStyle.Render(content))
}

// renderConfirmUntrack renders the untrack confirmation modal
func (m Model) renderConfirmUntrack() string {
	modal := fmt.Sprintf("Stop tracking %s?\n\nYour progress and rating will be lost.\n\n[Y] Yes      [N] No",
		styles.TitleStyle.Render(m.confirmBook.DisplayTitle()))
	return lipgloss.Place(m.Width, m.Height,
		lipgloss.Center, lipgloss.Center,
		styles.ModalStyle.Render(modal))
}

// RenderSpinner renders a loading spinner
func RenderSpinner(frame int) string {
	frames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	return styles.SpinnerStyle.Render(frames[frame%len(frames)])
}

// RenderError renders an error message
func RenderError(err error, width int) string {
	msg := wordWrap(domain.ErrorMessage(err), width-4)
	return styles.ErrorStyle.Render("Error: " + msg)
}

func wordWrap(text string, width int) string {
	if width <= 0 {
		return text
	}
	var result strings.Builder
	lineLen := 0
	for i, word := range strings.Fields(text) {
		wordLen := lipgloss.Width(word)
		if lineLen+wordLen+1 > width && lineLen > 0 {
			result.WriteString("\n")
			lineLen = 0
		}
		if i > 0 && lineLen > 0 {
			result.WriteString(" ")
			lineLen++
		}
		result.WriteString(word)
		lineLen += wordLen
	}
	return result.String()
}
