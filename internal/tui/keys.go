package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Left      key.Binding
	Right     key.Binding
	Up        key.Binding
	Down      key.Binding
	MovePrev  key.Binding
	MoveNext  key.Binding
	Open      key.Binding
	Delete    key.Binding
	NextBoard key.Binding
	Reload    key.Binding
	Back      key.Binding
	Scroll    key.Binding
	Confirm   key.Binding
	Cancel    key.Binding
	Quit      key.Binding
	ForceQuit key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Left:      key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/l", "column")),
		Right:     key.NewBinding(key.WithKeys("l", "right")),
		Up:        key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("j/k", "issue")),
		Down:      key.NewBinding(key.WithKeys("j", "down")),
		MovePrev:  key.NewBinding(key.WithKeys("H", "shift+left", "<"), key.WithHelp("H/L", "move")),
		MoveNext:  key.NewBinding(key.WithKeys("L", "shift+right", ">")),
		Open:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "details")),
		Delete:    key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		NextBoard: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "board")),
		Reload:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		Back:      key.NewBinding(key.WithKeys("esc", "backspace"), key.WithHelp("esc", "back")),
		Scroll:    key.NewBinding(key.WithKeys("j", "k", "pgdown", "pgup"), key.WithHelp("j/k", "scroll")),
		Confirm:   key.NewBinding(key.WithKeys("y", "Y"), key.WithHelp("y", "yes")),
		Cancel:    key.NewBinding(key.WithKeys("n", "N", "esc", "q"), key.WithHelp("n", "no")),
		Quit:      key.NewBinding(key.WithKeys("q", "esc"), key.WithHelp("q", "quit")),
		ForceQuit: key.NewBinding(key.WithKeys("ctrl+c")),
	}
}

// boardHelp lists the bindings shown in the status bar.
func (k keyMap) boardHelp() []key.Binding {
	return []key.Binding{k.Left, k.Up, k.MovePrev, k.Open, k.Delete, k.NextBoard, k.Reload, k.Quit}
}
