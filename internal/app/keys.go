package app

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Overlay  key.Binding
	Snapshot key.Binding
	Fault    key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Overlay: key.NewBinding(
			key.WithKeys("o", "O"),
			key.WithHelp("o", "toggle overlay"),
		),
		Snapshot: key.NewBinding(
			key.WithKeys("s", "S"),
			key.WithHelp("s", "save display snapshot"),
		),
		Fault: key.NewBinding(
			key.WithKeys("f", "F"),
			key.WithHelp("f", "inject capture bus fault"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "Q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Overlay, k.Snapshot, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Overlay, k.Snapshot},
		{k.Fault},
		{k.Help, k.Quit},
	}
}
