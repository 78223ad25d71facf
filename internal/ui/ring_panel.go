package ui

// RenderRingPanel wraps the dial with a titled border. The dial itself is
// rendered by the caller to keep ui free of the dial package.
func RenderRingPanel(width, height int, dialContent, legend string) string {
	content := StylePanelTitle.Render("CAPTURE RING") + "\n" + dialContent + "\n" + legend
	return StylePanelBorder.Width(width - 2).Height(height - 2).Render(content)
}
