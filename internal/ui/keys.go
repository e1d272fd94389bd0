package ui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// keyAction is the recognized subset of key events C9 reacts to; everything
// else is traced at debug verbosity and discarded.
type keyAction int

const (
	keyNone keyAction = iota
	keyQuit
	keyPause
	keyCycleTables
)

var (
	bindingQuit        = key.NewBinding(key.WithKeys("ctrl+c", "q"))
	bindingPause       = key.NewBinding(key.WithKeys(" "))
	bindingCycleTables = key.NewBinding(key.WithKeys("tab"))
)

func matchKey(msg tea.KeyMsg) keyAction {
	switch {
	case key.Matches(msg, bindingQuit):
		return keyQuit
	case key.Matches(msg, bindingPause):
		return keyPause
	case key.Matches(msg, bindingCycleTables):
		return keyCycleTables
	default:
		return keyNone
	}
}
