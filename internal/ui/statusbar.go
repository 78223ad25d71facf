package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"framepipe.klederson.com/internal/pipeline"
)

// RenderStatusBar renders the bottom status bar.
func RenderStatusBar(width int, st pipeline.Stats, fps float64) string {
	status := StyleStatusRunning.Render("[LIVE]")
	if st.Halted {
		status = StyleStatusHalted.Render("[HALT]")
	}

	info := fmt.Sprintf(" Frames: %d  %.1ffps  Slots: %d  D:%d C:%d  VSync: %d/%d coalesced  Tuning: %d  OSD: %d/%d",
		st.Frames, fps, st.Slots, st.Ring.Display, st.Ring.Capture,
		st.VSync.Coalesced, st.VSync.Raised, st.TuningPasses,
		st.OverlayFront, st.OverlayShown)

	content := status + StyleStatusBar.Render(info)

	gap := width - lipgloss.Width(content)
	if gap < 0 {
		gap = 0
	}
	return StyleStatusBar.Width(width).Render(content + strings.Repeat(" ", gap))
}
