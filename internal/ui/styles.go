package ui

import "github.com/charmbracelet/lipgloss"

var (
	styleTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))

	styleHeaderCell = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("243"))

	styleRow = lipgloss.NewStyle()

	styleFooterKey = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	styleFooter    = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))

	stylePaused = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	styleFrozen = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220"))
)
