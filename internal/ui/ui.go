// Package ui renders terminal output with consistent styling.
//
// Styling is disabled automatically when stdout is not a terminal, so
// piped output and cron logs stay plain.
package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")) // green
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11")) // yellow
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))  // red
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("14")) // cyan
	dimStyle    = lipgloss.NewStyle().Faint(true)
)

var isTTY = term.IsTerminal(int(os.Stdout.Fd()))

func render(style lipgloss.Style, s string) string {
	if !isTTY {
		return s
	}
	return style.Render(s)
}

// RenderPass styles text marking a successful outcome.
func RenderPass(s string) string { return render(passStyle, s) }

// RenderWarn styles text marking a warning.
func RenderWarn(s string) string { return render(warnStyle, s) }

// RenderError styles text marking a failure.
func RenderError(s string) string { return render(errorStyle, s) }

// RenderAccent styles text that should stand out without implying a verdict.
func RenderAccent(s string) string { return render(accentStyle, s) }

// RenderDim styles secondary detail text.
func RenderDim(s string) string { return render(dimStyle, s) }
