package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"framepipe.klederson.com/internal/osd"
	"framepipe.klederson.com/internal/pipeline"
)

// RenderLoadPanel renders the CPU load figures, a sparkline of recent
// instant loads and the overlay state.
func RenderLoadPanel(st pipeline.Stats, history []float64, width, height int) string {
	innerW := width - 4
	if innerW < 20 {
		innerW = 20
	}

	lines := []string{
		StylePanelTitle.Render("CPU LOAD"),
		StyleSeparator.Render(strings.Repeat("-", innerW)),
	}

	barW := innerW - 22
	if barW < 6 {
		barW = 6
	}
	loads := []struct {
		label string
		pct   float64
	}{
		{"Instant", st.Load.Instant},
		{"1 sec", st.Load.OneSecond},
		{"5 sec", st.Load.FiveSecond},
	}
	for _, l := range loads {
		label := StyleLabel.Render(fmt.Sprintf("  %-8s", l.label))
		value := StyleValue.Render(fmt.Sprintf(" %7s", osd.FormatPercent(l.pct)))
		lines = append(lines, label+loadBar(l.pct, barW)+value)
	}
	lines = append(lines, "")

	if len(history) > 0 {
		lines = append(lines, StyleLabel.Render("  History:"))
		lines = append(lines, "  "+StyleSparkline.Render(renderSparkline(history, innerW-4)))
		lines = append(lines, "")
	}

	visible := "shown"
	if !st.OverlayVisible {
		visible = "hidden"
	}
	fields := []struct{ label, value string }{
		{"Runtime", osd.FormatRuntime(st.Uptime)},
		{"Samples", fmt.Sprintf("%d", st.Samples)},
		{"Busy", fmt.Sprintf("%d workers", st.Busy)},
		{"Overlay", fmt.Sprintf("%s, %d swaps", visible, st.OverlaySwaps)},
		{"Ignored", fmt.Sprintf("%d ml events", st.Ignored)},
		{"Latch", fmt.Sprintf("%d osd waits, %d dropped", st.OverlayWaits, st.LateLatches)},
	}
	for _, f := range fields {
		lines = append(lines, StyleLabel.Render(fmt.Sprintf("  %-10s", f.label))+StyleValue.Render(f.value))
	}

	return clampPanel(StylePanelBorder, lines, width, height)
}

func loadBar(pct float64, width int) string {
	color := ColorGreen
	switch {
	case pct >= 90:
		color = ColorError
	case pct >= 70:
		color = ColorWarning
	}
	bar := progress.New(
		progress.WithWidth(width),
		progress.WithoutPercentage(),
		progress.WithSolidFill(string(color)),
	)
	bar.EmptyColor = string(ColorDimGreen)
	return bar.ViewAs(max(0, min(100, pct)) / 100)
}

// renderSparkline maps values in [0,100] to a row of block levels, newest on
// the right.
func renderSparkline(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return ""
	}
	chars := []rune{' ', '▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	start := 0
	if len(values) > width {
		start = len(values) - width
	}

	var sb strings.Builder
	for _, v := range values[start:] {
		idx := int(max(0, min(100, v)) / 100 * float64(len(chars)-1))
		sb.WriteRune(chars[idx])
	}
	return sb.String()
}

// clampPanel renders lines inside style and forces the result to exactly
// height lines; lipgloss Height only sets a minimum.
func clampPanel(style lipgloss.Style, lines []string, width, height int) string {
	innerH := height - 2
	if innerH < 1 {
		innerH = 1
	}
	if len(lines) > innerH {
		lines = lines[:innerH]
	}
	for len(lines) < innerH {
		lines = append(lines, "")
	}

	rendered := style.Width(width - 2).Height(innerH).Render(strings.Join(lines, "\n"))
	out := strings.Split(rendered, "\n")
	if len(out) > height {
		out = out[:height]
	}
	for len(out) < height {
		out = append(out, "")
	}
	return strings.Join(out, "\n")
}
