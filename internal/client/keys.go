package client

import "github.com/charmbracelet/bubbles/key"

// browseKeys holds key bindings for browse mode.
type browseKeys struct {
	Up      key.Binding
	Down    key.Binding
	Enter   key.Binding
	New     key.Binding
	Next    key.Binding
	Prev    key.Binding
	Route   key.Binding
	Refresh key.Binding
	Logout  key.Binding
	Help    key.Binding
	Quit    key.Binding
}

// ShortHelp returns the browse mode bindings for the help bar.
func (k browseKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Enter, k.New, k.Next, k.Route, k.Help, k.Quit}
}

// FullHelp returns the browse mode bindings grouped for expanded help.
func (k browseKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Enter, k.New},
		{k.Next, k.Prev, k.Route, k.Refresh},
		{k.Logout, k.Help, k.Quit},
	}
}

// detailKeys holds key bindings while a detail view has focus.
type detailKeys struct {
	Up      key.Binding
	Down    key.Binding
	Act     key.Binding
	More    key.Binding
	Less    key.Binding
	Refresh key.Binding
	Back    key.Binding
}

// ShortHelp returns the detail mode bindings for the help bar.
func (k detailKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Act, k.More, k.Less, k.Back}
}

// FullHelp returns the detail mode bindings grouped for expanded help.
func (k detailKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Act},
		{k.More, k.Less, k.Refresh, k.Back},
	}
}

// menuKeys holds key bindings for the action menu.
type menuKeys struct {
	Up     key.Binding
	Down   key.Binding
	Choose key.Binding
	Back   key.Binding
}

// ShortHelp returns the menu bindings for the help bar.
func (k menuKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Choose, k.Back}
}

// FullHelp returns the menu bindings grouped for expanded help.
func (k menuKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Up, k.Down}, {k.Choose, k.Back}}
}

// formKeys holds key bindings for action forms.
type formKeys struct {
	Next   key.Binding
	Prev   key.Binding
	Cycle  key.Binding
	Submit key.Binding
	Cancel key.Binding
}

// ShortHelp returns the form bindings for the help bar.
func (k formKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Prev, k.Cycle, k.Submit, k.Cancel}
}

// FullHelp returns the form bindings grouped for expanded help.
func (k formKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Next, k.Prev, k.Cycle}, {k.Submit, k.Cancel}}
}

// promptKeys holds key bindings for the route prompt.
type promptKeys struct {
	Go     key.Binding
	Cancel key.Binding
}

// ShortHelp returns the prompt bindings for the help bar.
func (k promptKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Go, k.Cancel}
}

// FullHelp returns the prompt bindings grouped for expanded help.
func (k promptKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Go, k.Cancel}}
}

func up() key.Binding {
	return key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up"))
}

func down() key.Binding {
	return key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down"))
}

func back() key.Binding {
	return key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back"))
}

// BrowseKeyMap returns the key bindings for browse mode.
func BrowseKeyMap() browseKeys {
	return browseKeys{
		Up:   up(),
		Down: down(),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open"),
		),
		New: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "new"),
		),
		Next: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next panel"),
		),
		Prev: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "prev panel"),
		),
		Route: key.NewBinding(
			key.WithKeys(":"),
			key.WithHelp(":", "go to"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Logout: key.NewBinding(
			key.WithKeys("L"),
			key.WithHelp("L", "logout"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// DetailKeyMap returns the key bindings for detail mode.
func DetailKeyMap() detailKeys {
	return detailKeys{
		Up:   up(),
		Down: down(),
		Act: key.NewBinding(
			key.WithKeys("a", "enter"),
			key.WithHelp("a", "actions"),
		),
		More: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "material up"),
		),
		Less: key.NewBinding(
			key.WithKeys("-"),
			key.WithHelp("-", "material down"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Back: back(),
	}
}

// MenuKeyMap returns the key bindings for the action menu.
func MenuKeyMap() menuKeys {
	return menuKeys{
		Up:   up(),
		Down: down(),
		Choose: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "choose"),
		),
		Back: back(),
	}
}

// FormKeyMap returns the key bindings for action forms.
func FormKeyMap() formKeys {
	return formKeys{
		Next: key.NewBinding(
			key.WithKeys("tab", "down"),
			key.WithHelp("tab", "next field"),
		),
		Prev: key.NewBinding(
			key.WithKeys("shift+tab", "up"),
			key.WithHelp("shift+tab", "prev field"),
		),
		Cycle: key.NewBinding(
			key.WithKeys("left", "right"),
			key.WithHelp("←/→", "choose"),
		),
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "submit"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
	}
}

// PromptKeyMap returns the key bindings for the route prompt.
func PromptKeyMap() promptKeys {
	return promptKeys{
		Go: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "go"),
		),
		Cancel: back(),
	}
}
