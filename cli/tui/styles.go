// Package tui provides the Bubble Tea live view of a running pull.
//
// The view is opt-in (--tui) and read-only apart from cancellation: it
// renders the same events a subscriber receives and never holds state the
// orchestrator does not publish.
package tui

import "github.com/charmbracelet/lipgloss"

// Color palette.
var (
	primaryColor = lipgloss.Color("#2496ED") // Docker blue
	successColor = lipgloss.Color("#10B981")
	warningColor = lipgloss.Color("#F59E0B")
	errorColor   = lipgloss.Color("#EF4444")
	mutedColor   = lipgloss.Color("#6B7280")
)

// Styles for TUI components.
var (
	// TitleStyle for the header line.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	// LabelStyle for field labels.
	LabelStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	// SuccessStyle for success states.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(successColor)

	// WarningStyle for warning states.
	WarningStyle = lipgloss.NewStyle().
			Foreground(warningColor)

	// ErrorStyle for error states.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	// BoxStyle frames the transcript viewport.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1)

	// HelpStyle for help text.
	HelpStyle = lipgloss.NewStyle().
			Foreground(mutedColor)
)

// StatusStyle picks a style for the current pull phase.
func StatusStyle(finished, ok, active bool) lipgloss.Style {
	switch {
	case finished && ok:
		return SuccessStyle
	case finished:
		return ErrorStyle
	case active:
		return WarningStyle
	default:
		return LabelStyle
	}
}
