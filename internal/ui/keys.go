package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds the global bindings. Plain keys go to the focused widget.
type keyMap struct {
	Run        key.Binding
	Cancel     key.Binding
	Format     key.Binding
	Examples   key.Binding
	SwitchPane key.Binding
	ClearOut   key.Binding
	Transcript key.Binding
	AutoRun    key.Binding
	ScrollUp   key.Binding
	ScrollDown key.Binding
	Help       key.Binding
	Quit       key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Run: key.NewBinding(
			key.WithKeys("ctrl+r", "f5"),
			key.WithHelp("^r", "run"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("ctrl+x"),
			key.WithHelp("^x", "cancel"),
		),
		Format: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("^s", "format"),
		),
		Examples: key.NewBinding(
			key.WithKeys("ctrl+e"),
			key.WithHelp("^e", "examples"),
		),
		SwitchPane: key.NewBinding(
			key.WithKeys("ctrl+w"),
			key.WithHelp("^w", "switch pane"),
		),
		ClearOut: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("^l", "clear output"),
		),
		Transcript: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("^t", "save transcript"),
		),
		AutoRun: key.NewBinding(
			key.WithKeys("f2"),
			key.WithHelp("f2", "auto-run"),
		),
		ScrollUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup", "scroll output"),
		),
		ScrollDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("pgdn", "scroll output"),
		),
		Help: key.NewBinding(
			key.WithKeys("f1"),
			key.WithHelp("f1", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "ctrl+q"),
			key.WithHelp("^q", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Run, k.Cancel, k.Format, k.Examples, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Run, k.Cancel, k.Format},
		{k.Examples, k.SwitchPane, k.ClearOut},
		{k.ScrollUp, k.ScrollDown, k.Transcript},
		{k.AutoRun, k.Help, k.Quit},
	}
}
