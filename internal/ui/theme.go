package ui

import "github.com/charmbracelet/lipgloss"

type uiTheme struct {
	root        lipgloss.Style
	header      lipgloss.Style
	title       lipgloss.Style
	panel       lipgloss.Style
	panelTitle  lipgloss.Style
	inputPanel  lipgloss.Style
	button      lipgloss.Style
	buttonFocus lipgloss.Style
	footer      lipgloss.Style
	status      lipgloss.Style
	errorStatus lipgloss.Style
	helpText    lipgloss.Style
	stateStyle  map[string]lipgloss.Style
}

func newTheme() uiTheme {
	pink := lipgloss.Color("#ff71ce")
	blue := lipgloss.Color("#01cdfe")
	mint := lipgloss.Color("#05ffa1")
	gold := lipgloss.Color("#ffd166")
	panelBg := lipgloss.Color("#1b0f35")
	text := lipgloss.Color("#f3f3ff")
	muted := lipgloss.Color("#9ca3d8")

	return uiTheme{
		root: lipgloss.NewStyle().
			Foreground(text).
			Padding(0, 1),
		header: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(blue).
			Padding(0, 1),
		title: lipgloss.NewStyle().
			Foreground(mint).
			Bold(true),
		panel: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(blue).
			Padding(0, 1),
		panelTitle: lipgloss.NewStyle().
			Foreground(mint).
			Bold(true),
		inputPanel: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(mint).
			Padding(0, 1),
		button: lipgloss.NewStyle().
			Foreground(text).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(muted).
			Padding(0, 2),
		buttonFocus: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#22062f")).
			Background(pink).
			Bold(true).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(pink).
			BorderBackground(panelBg).
			Padding(0, 2),
		footer: lipgloss.NewStyle().
			Foreground(muted).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(pink).
			Padding(0, 1),
		status:      lipgloss.NewStyle().Foreground(blue).Bold(true),
		errorStatus: lipgloss.NewStyle().Foreground(pink).Bold(true),
		helpText:    lipgloss.NewStyle().Foreground(muted),
		stateStyle: map[string]lipgloss.Style{
			"not started": lipgloss.NewStyle().Foreground(gold).Bold(true),
			"running":     lipgloss.NewStyle().Foreground(mint).Bold(true),
			"exited":      lipgloss.NewStyle().Foreground(pink).Bold(true),
		},
	}
}
