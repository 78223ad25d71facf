package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"

	"framepipe.klederson.com/internal/config"
)

// Menu zone ids, one per clickable key.
const (
	ZoneOverlay  = "menu-overlay"
	ZoneSnapshot = "menu-snapshot"
	ZoneFault    = "menu-fault"
	ZoneHelp     = "menu-help"
	ZoneQuit     = "menu-quit"
)

// RenderMenuBar renders the top menu bar. Each key is marked as a mouse zone.
func RenderMenuBar(width int, loadSource string, halted, overlayVisible bool) string {
	title := fmt.Sprintf(" %s v%s ", config.AppName, config.AppVersion)

	keys := []struct{ id, key, label string }{
		{ZoneOverlay, "O", "verlay"},
		{ZoneSnapshot, "S", "napshot"},
		{ZoneFault, "F", "ault"},
		{ZoneHelp, "?", "help"},
		{ZoneQuit, "Q", "uit"},
	}

	var menu strings.Builder
	for _, k := range keys {
		menu.WriteString("  ")
		menu.WriteString(zone.Mark(k.id, StyleMenuKey.Render("["+k.key+"]")+StyleMenuLabel.Render(k.label)))
	}

	var status string
	switch {
	case halted:
		status = StyleStatusHalted.Render("HALTED")
	case !overlayVisible:
		status = StyleStatusHidden.Render("RUNNING (osd off)")
	default:
		status = StyleStatusRunning.Render("RUNNING")
	}

	left := StyleMenuKey.Render(title) + menu.String()
	right := status + "  " + StyleMenuLabel.Render("Load: "+loadSource) + " "

	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}
	return StyleMenuBar.Width(width).Render(left + strings.Repeat(" ", gap) + right)
}
