package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// KeyMap defines all key bindings for the console.
type KeyMap struct {
	// Navigation
	Up       Key
	Down     Key
	PageUp   Key
	PageDown Key
	Tab      Key

	// Mission actions
	Impact  Key
	Details Key
	Accept  Key
	Resolve Key
	Search  Key
	Refresh Key

	// General
	Back Key
	Help Key
	Quit Key
	Yes  Key
	No   Key
}

// Key represents a key binding.
type Key struct {
	Keys    []string
	Help    string
	Enabled bool
}

func bind(help string, keys ...string) Key {
	return Key{Keys: keys, Help: help, Enabled: true}
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up:       bind("up", "up", "k"),
		Down:     bind("down", "down", "j"),
		PageUp:   bind("page up", "pgup", "ctrl+u"),
		PageDown: bind("page down", "pgdown", "ctrl+d"),
		Tab:      bind("switch view", "tab"),

		Impact:  bind("impact", "enter"),
		Details: bind("details", "d"),
		Accept:  bind("accept mission", "a"),
		Resolve: bind("resolve mission", "r"),
		Search:  bind("search", "/"),
		Refresh: bind("sync now", "ctrl+r"),

		Back: bind("back", "esc"),
		Help: bind("help", "?"),
		Quit: bind("quit", "q", "ctrl+c"),
		Yes:  bind("yes", "y", "Y"),
		No:   bind("no", "n", "N", "esc"),
	}
}

// Matches checks if a key message matches this key binding.
func (k Key) Matches(msg tea.KeyMsg) bool {
	if !k.Enabled {
		return false
	}

	keyStr := msg.String()
	for _, key := range k.Keys {
		if keyStr == key {
			return true
		}
	}
	return false
}

// MatchesAny checks if a key message matches any of the provided key bindings.
func MatchesAny(msg tea.KeyMsg, keys ...Key) bool {
	for _, k := range keys {
		if k.Matches(msg) {
			return true
		}
	}
	return false
}

// IsQuit checks if the key message is a quit command.
func (km KeyMap) IsQuit(msg tea.KeyMsg) bool {
	return km.Quit.Matches(msg)
}

// IsNavigation checks if the key message is a navigation key.
func (km KeyMap) IsNavigation(msg tea.KeyMsg) bool {
	return MatchesAny(msg, km.Up, km.Down, km.PageUp, km.PageDown)
}

// StatusBarHelp returns the help text for the status bar.
func (km KeyMap) StatusBarHelp(bp LayoutBreakpoint) string {
	if bp == BreakpointNarrow {
		return "[Tab]View [a]Accept [?]Help [q]Quit"
	}
	return "[Tab]View [Enter]Impact [a]Accept [r]Resolve [/]Search [Ctrl+R]Sync [?]Help [q]Quit"
}
