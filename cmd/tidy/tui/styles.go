// Package tui renders tidy's progress view while a session, a duplicate
// search or an undo runs. It uses Bubble Tea with Bubbles components and
// Lip Gloss styles.
package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jamesainslie/tidy/pkg/tidy/output"
)

// The view uses the formatter palette so a finished run and its progress
// box look alike.
var (
	primaryColor = output.ColorPrimary
	accentColor  = lipgloss.Color("45")
	borderColor  = lipgloss.Color("238")
)

var (
	outerBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)

	dividerStyle = lipgloss.NewStyle().Foreground(borderColor)

	titleStyle       = output.TitleStyle
	phaseStyle       = lipgloss.NewStyle().Bold(true).Foreground(accentColor)
	mutedTextStyle   = output.MutedStyle
	errorTextStyle   = output.ErrorStyle
	successTextStyle = output.SuccessStyle
	warningTextStyle = output.WarningStyle
)

// renderDivider draws a rule width cells wide.
func renderDivider(width int) string {
	if width <= 0 {
		return ""
	}
	return dividerStyle.Render(strings.Repeat("─", width))
}

// truncatePath shortens path to maxLen bytes, keeping its tail.
func truncatePath(path string, maxLen int) string {
	switch {
	case len(path) <= maxLen:
		return path
	case maxLen <= 3:
		return path[:maxLen]
	default:
		return "..." + path[len(path)-maxLen+3:]
	}
}
