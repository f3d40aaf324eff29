package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mmcdole/trackr/internal/domain"
)

// Color palette
var (
	Ink        = lipgloss.Color("#7C3AED")
	SlateDark  = lipgloss.Color("#1F2937")
	SlateLight = lipgloss.Color("#374151")
	DimGray    = lipgloss.Color("#6B7280")
	LightGray  = lipgloss.Color("#9CA3AF")
	White      = lipgloss.Color("#F9FAFB")
	Green      = lipgloss.Color("#10B981")
	Red        = lipgloss.Color("#EF4444")
	Blue       = lipgloss.Color("#3B82F6")
	Amber      = lipgloss.Color("#F59E0B")
)

// Text styles
var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(White).
			Bold(true)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(LightGray)

	DimStyle = lipgloss.NewStyle().
			Foreground(DimGray)

	AccentStyle = lipgloss.NewStyle().
			Foreground(Ink)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Red)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(Green)
)

// Tab bar
var (
	ActiveTabStyle = lipgloss.NewStyle().
			Foreground(White).
			Background(Ink).
			Padding(0, 1)

	InactiveTabStyle = lipgloss.NewStyle().
				Foreground(LightGray).
				Padding(0, 1)
)

// List rows
var (
	SelectedItemStyle = lipgloss.NewStyle().
				Foreground(White).
				Background(SlateLight)

	NormalItemStyle = lipgloss.NewStyle().
			Foreground(LightGray)

	PendingItemStyle = lipgloss.NewStyle().
				Foreground(DimGray).
				Italic(true)
)

// Modal styles
var (
	ModalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Ink).
			Padding(1, 2).
			Background(SlateDark)

	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(DimGray).
			Padding(0, 1)
)

// Filter styles
var (
	FilterStyle = lipgloss.NewStyle().
			Foreground(Ink)

	FilterPromptStyle = lipgloss.NewStyle().
				Foreground(Ink).
				Bold(true)
)

var SpinnerStyle = lipgloss.NewStyle().Foreground(Ink)

// Reading status indicator characters (unstyled)
const (
	PlanChar      = "○"
	ReadingChar   = "◐"
	CompletedChar = "✓"
	OnHoldChar    = "‖"
	DroppedChar   = "✗"
)

var statusColors = map[domain.ReadingStatus]lipgloss.Color{
	domain.StatusPlanToRead: LightGray,
	domain.StatusReading:    Blue,
	domain.StatusCompleted:  Green,
	domain.StatusOnHold:     Amber,
	domain.StatusDropped:    Red,
}

// StatusChar returns the bare indicator for a reading status
func StatusChar(s domain.ReadingStatus) string {
	switch s {
	case domain.StatusReading:
		return ReadingChar
	case domain.StatusCompleted:
		return CompletedChar
	case domain.StatusOnHold:
		return OnHoldChar
	case domain.StatusDropped:
		return DroppedChar
	default:
		return PlanChar
	}
}

// StatusColor returns the indicator color for a reading status
func StatusColor(s domain.ReadingStatus) lipgloss.Color {
	if c, ok := statusColors[s]; ok {
		return c
	}
	return DimGray
}

// RenderStatus renders the colored indicator for a reading status
func RenderStatus(s domain.ReadingStatus) string {
	return lipgloss.NewStyle().Foreground(StatusColor(s)).Render(StatusChar(s))
}

// Truncate truncates a string to the given display width with ellipsis
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	if width <= 3 {
		return string(runes[:min(width, len(runes))])
	}
	for len(runes) > 0 && lipgloss.Width(string(runes))+3 > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}

// RenderRow renders left and right text across width, padding the gap.
// Selected rows get a uniform background.
func RenderRow(left, right string, selected bool, width int) string {
	style := NormalItemStyle
	if selected {
		style = SelectedItemStyle
	}
	inner := width - 2
	if inner < 1 {
		return ""
	}
	rightW := lipgloss.Width(right)
	left = Truncate(left, inner-rightW-1)
	gap := inner - lipgloss.Width(left) - rightW
	if gap < 1 {
		gap = 1
	}
	return style.Render(" " + left + strings.Repeat(" ", gap) + right + " ")
}
