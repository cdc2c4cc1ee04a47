// Package tui provides Bubble Tea views of torture run reports.
//
// TUI is opt-in (--tui) and read-only: it renders the same report payloads
// as the table, json and yaml outputs.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/torture/cli/reader"
	"github.com/pithecene-io/torture/scheduler"
)

// Color palette.
var (
	primaryColor = lipgloss.Color("#7C3AED") // Purple
	successColor = lipgloss.Color("#10B981") // Green
	warningColor = lipgloss.Color("#F59E0B") // Amber
	errorColor   = lipgloss.Color("#EF4444") // Red
	mutedColor   = lipgloss.Color("#6B7280") // Gray
)

// Styles shared by the views and the console report.
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	LabelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Width(12)

	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	SuccessStyle = lipgloss.NewStyle().
			Foreground(successColor)

	WarningStyle = lipgloss.NewStyle().
			Foreground(warningColor)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true)

	MutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1)

	HelpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			MarginTop(1)
)

// StatusStyle picks the style of a unit status.
func StatusStyle(status scheduler.Status) lipgloss.Style {
	switch status {
	case scheduler.StatusPassed:
		return SuccessStyle
	case scheduler.StatusAllowedCompileFailure, scheduler.StatusAllowedRunFailure:
		return WarningStyle
	case scheduler.StatusSkipped:
		return MutedStyle
	default:
		return ErrorStyle
	}
}

// OutcomeStyle picks the style of a suite outcome.
func OutcomeStyle(outcome reader.SuiteOutcome) lipgloss.Style {
	switch outcome {
	case reader.OutcomeSuccess:
		return SuccessStyle
	case reader.OutcomeAllowedFailure:
		return WarningStyle
	case reader.OutcomeSkipped:
		return MutedStyle
	default:
		return ErrorStyle
	}
}
