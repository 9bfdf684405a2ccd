package cli

import "github.com/charmbracelet/lipgloss"

var (
	primary = lipgloss.Color("#7C3AED")
	green   = lipgloss.Color("#10B981")
	amber   = lipgloss.Color("#F59E0B")
	red     = lipgloss.Color("#EF4444")
	muted   = lipgloss.Color("#6B7280")

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(primary)
	mutedStyle   = lipgloss.NewStyle().Foreground(muted)
	insideStyle  = lipgloss.NewStyle().Foreground(green).Bold(true)
	outsideStyle = lipgloss.NewStyle().Foreground(amber).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(red).Bold(true)
)

// whereLabel renders a pet location.
func whereLabel(w int) string {
	switch w {
	case 1:
		return insideStyle.Render("inside")
	case 2:
		return outsideStyle.Render("outside")
	default:
		return mutedStyle.Render("unknown")
	}
}
