package ui

import "github.com/charmbracelet/lipgloss"

// ANSI palette indexes, so the user's terminal theme picks the shades.
const (
	ColorOK    lipgloss.Color = "2"
	ColorFail  lipgloss.Color = "1"
	ColorWarn  lipgloss.Color = "3"
	ColorPhase lipgloss.Color = "6"
	ColorDim   lipgloss.Color = "8"
)

// Status marks used by phase lines and doctor checks.
const (
	MarkOK   = "✓"
	MarkFail = "✗"
	MarkWarn = "!"
	MarkDone = "●"
)
