package ui

import (
	"fmt"
	"strings"

	"framepipe.klederson.com/internal/fault"
)

// RenderFaultPanel replaces the load panel once the pipeline has halted.
func RenderFaultPanel(f *fault.Fault, width, height int) string {
	innerW := width - 4
	if innerW < 20 {
		innerW = 20
	}

	lines := []string{
		StyleError.Render(" SYSTEM HALTED"),
		StyleSeparator.Render(strings.Repeat("=", innerW)),
		"",
	}
	if f != nil {
		fields := []struct{ label, value string }{
			{"Op", f.Op},
			{"At", f.Location()},
			{"Error", fmt.Sprint(f.Err)},
		}
		for _, fl := range fields {
			lines = append(lines, StyleLabel.Render(fmt.Sprintf("  %-7s", fl.label))+StyleValue.Render(fl.value))
		}
	}
	lines = append(lines, "", StyleHelp.Render("  Buffers are frozen. Press q to exit."))

	return clampPanel(StylePanelFault, lines, width, height)
}
