package ui

import "github.com/charmbracelet/lipgloss"

// ComposeLayout joins the ring panel and load panel horizontally, with the
// menu bar on top and the status bar (plus optional help) at the bottom.
func ComposeLayout(menuBar, ringPanel, loadPanel, statusBar, help string) string {
	middle := lipgloss.JoinHorizontal(lipgloss.Top, ringPanel, loadPanel)
	if help == "" {
		return lipgloss.JoinVertical(lipgloss.Left, menuBar, middle, statusBar)
	}
	return lipgloss.JoinVertical(lipgloss.Left, menuBar, middle, statusBar, help)
}
