package ui

import "github.com/charmbracelet/lipgloss"

var (
	PrimaryColor = lipgloss.Color("205")
	SuccessColor = lipgloss.Color("42")
	WarningColor = lipgloss.Color("214")
	ErrorColor   = lipgloss.Color("196")
	MutedColor   = lipgloss.Color("241")
	TextColor    = lipgloss.Color("252")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(MutedColor)

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor)

	rowStyle = lipgloss.NewStyle().
			Foreground(TextColor)

	mutedStyle = lipgloss.NewStyle().
			Foreground(MutedColor)

	labelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(MutedColor)

	detailBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(MutedColor).
			Padding(0, 1)

	spinnerStyle = lipgloss.NewStyle().
			Foreground(WarningColor)

	flashStyle = lipgloss.NewStyle().
			Foreground(WarningColor)
)
