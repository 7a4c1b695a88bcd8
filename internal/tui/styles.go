package tui

import "github.com/charmbracelet/lipgloss"

// ------- styling (Lip Gloss) -------
var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	mutedStyle  = lipgloss.NewStyle().Faint(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	infoStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))

	authorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	likeOnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("204"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Reverse(true)
	helpStyle     = lipgloss.NewStyle().Faint(true)

	frameStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1)
	formStyle = frameStyle
)

const (
	heartOn  = "♥"
	heartOff = "♡"
)
