package client

import (
	"github.com/charmbracelet/lipgloss"
)

// MinLeftWidth is the minimum character width for the panel pane.
const MinLeftWidth = 32

// CursorMarker is the prefix shown on the selected row.
const CursorMarker = "▸ "

var (
	mutedColor   = lipgloss.AdaptiveColor{Light: "240", Dark: "245"}
	accentColor  = lipgloss.AdaptiveColor{Light: "4", Dark: "12"}
	errorColor   = lipgloss.AdaptiveColor{Light: "1", Dark: "9"}
	successColor = lipgloss.AdaptiveColor{Light: "2", Dark: "10"}
	warnColor    = lipgloss.AdaptiveColor{Light: "3", Dark: "11"}

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(accentColor)
	headingStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(mutedColor)
	errorStyle   = lipgloss.NewStyle().Foreground(errorColor)
	successStyle = lipgloss.NewStyle().Foreground(successColor)
	warnStyle    = lipgloss.NewStyle().Foreground(warnColor)
)

// Quality tiers, lowest first. Items use either the common/rare scale or
// the 黄/玄/地/天 grades.
var qualityColors = map[string]lipgloss.AdaptiveColor{
	"普通": {Light: "240", Dark: "245"},
	"黄阶": {Light: "240", Dark: "245"},
	"优秀": {Light: "2", Dark: "10"},
	"玄阶": {Light: "2", Dark: "10"},
	"稀有": {Light: "4", Dark: "12"},
	"地阶": {Light: "4", Dark: "12"},
	"史诗": {Light: "5", Dark: "13"},
	"天阶": {Light: "5", Dark: "13"},
	"传说": {Light: "208", Dark: "208"},
}

// QualityBadge returns a styled quality label. Unknown qualities render
// muted; an empty quality renders as nothing.
func QualityBadge(quality string) string {
	if quality == "" {
		return ""
	}
	c, ok := qualityColors[quality]
	if !ok {
		c = mutedColor
	}
	return lipgloss.NewStyle().Foreground(c).Render("[" + quality + "]")
}

// FocusedBorder returns a lipgloss style with an accent-colored rounded border.
func FocusedBorder() lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accentColor)
}

// UnfocusedBorder returns a lipgloss style with a dim rounded border.
func UnfocusedBorder() lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.AdaptiveColor{Light: "240", Dark: "240"})
}

// PaneWidths calculates the left and right pane widths from a total width.
// Left pane gets 2/5 (minimum MinLeftWidth), right pane gets the rest.
func PaneWidths(totalWidth int) (left, right int) {
	if totalWidth <= 0 {
		return 0, 0
	}
	left = totalWidth * 2 / 5
	if left < MinLeftWidth {
		left = MinLeftWidth
	}
	right = totalWidth - left
	if right < 0 {
		right = 0
	}
	return left, right
}
