package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Send       key.Binding
	Focus      key.Binding
	Press      key.Binding
	ScrollUp   key.Binding
	ScrollDown key.Binding
	Top        key.Binding
	Bottom     key.Binding
	Quit       key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Send, k.Focus, k.ScrollUp, k.ScrollDown, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Send, k.Focus, k.Press},
		{k.ScrollUp, k.ScrollDown, k.Top, k.Bottom, k.Quit},
	}
}

var keys = keyMap{
	Send:       key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "send query")),
	Focus:      key.NewBinding(key.WithKeys("tab", "shift+tab"), key.WithHelp("tab", "input/button")),
	Press:      key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "press button")),
	ScrollUp:   key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "scroll up")),
	ScrollDown: key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "scroll down")),
	Top:        key.NewBinding(key.WithKeys("ctrl+home"), key.WithHelp("ctrl+home", "top")),
	Bottom:     key.NewBinding(key.WithKeys("ctrl+end"), key.WithHelp("ctrl+end", "bottom")),
	Quit:       key.NewBinding(key.WithKeys("ctrl+c", "esc"), key.WithHelp("esc", "quit")),
}
