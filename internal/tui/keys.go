// Copyright (c) the Loom Authors. All rights reserved.
// Licensed under the MIT License.

package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Quit    key.Binding
	Pick    key.Binding
	Export  key.Binding
	Refresh key.Binding
	NextTab key.Binding
	PrevTab key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Pick:    key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "find symbol")),
		Export:  key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "save png")),
		Refresh: key.NewBinding(key.WithKeys("r", "enter"), key.WithHelp("r", "refresh")),
		NextTab: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next stock")),
		PrevTab: key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev stock")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Pick, k.Refresh, k.Export, k.NextTab, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Pick, k.Refresh, k.Export}, {k.NextTab, k.PrevTab, k.Quit}}
}
