package tui

import "github.com/charmbracelet/lipgloss"

var (
	accent = lipgloss.Color("39")
	muted  = lipgloss.Color("243")

	titleStyle        = lipgloss.NewStyle().Bold(true).Foreground(accent)
	subtitleStyle     = lipgloss.NewStyle().Foreground(muted).Italic(true)
	successStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	warnStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	dimStyle          = lipgloss.NewStyle().Foreground(muted)
	helpStyle         = dimStyle
	userMsgStyle      = lipgloss.NewStyle().Bold(true).Foreground(accent)
	assistantMsgStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	sourceStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("109")).Underline(true)
	selectedStyle     = lipgloss.NewStyle().Bold(true).Foreground(accent)
	listItemStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))

	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("24")).
			Padding(0, 1)
)
