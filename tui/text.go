package tui

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	mutedStyleColor   = lipgloss.AdaptiveColor{Light: "#666666", Dark: "#999999"}
	warningStyleColor = lipgloss.AdaptiveColor{Light: "#FFA500", Dark: "#FFA500"}
	titleStyleColor   = lipgloss.AdaptiveColor{Light: "#071330", Dark: "#F652A0"}
)

func Title(text string) string {
	return lipgloss.NewStyle().Bold(true).Foreground(titleStyleColor).Render(text)
}

func Muted(text string) string {
	return lipgloss.NewStyle().Foreground(mutedStyleColor).Render(text)
}

func Warning(text string) string {
	return lipgloss.NewStyle().Foreground(warningStyleColor).Render(text)
}

// MaxWidth truncates text that would render wider than width cells.
func MaxWidth(text string, width int) string {
	if width > 3 && lipgloss.Width(text) > width {
		r := []rune(text)
		if len(r) > width-3 {
			r = r[:width-3]
		}
		text = string(r) + "..."
	}
	return text
}
