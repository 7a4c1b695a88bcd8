package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Add     key.Binding
	Like    key.Binding
	Delete  key.Binding
	Refresh key.Binding
	Login   key.Binding
	Logout  key.Binding
	Quit    key.Binding

	Submit key.Binding
	Next   key.Binding
	Cancel key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Add:     key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
		Like:    key.NewBinding(key.WithKeys(" ", "l"), key.WithHelp("space", "like")),
		Delete:  key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Login:   key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "log in")),
		Logout:  key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "log out")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),

		Submit: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
		Next:   key.NewBinding(key.WithKeys("tab", "shift+tab"), key.WithHelp("tab", "next field")),
		Cancel: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
	}
}

func (k keyMap) browse() []key.Binding {
	return []key.Binding{k.Add, k.Like, k.Delete, k.Refresh, k.Login, k.Logout, k.Quit}
}
