package client

import "github.com/charmbracelet/bubbles/help"

// HelpBindings returns the help.KeyMap for the given mode.
func HelpBindings(mode Mode) help.KeyMap {
	switch mode {
	case ModeDetail:
		return DetailKeyMap()
	case ModeActions:
		return MenuKeyMap()
	case ModeForm:
		return FormKeyMap()
	case ModeRoute:
		return PromptKeyMap()
	default:
		return BrowseKeyMap()
	}
}
