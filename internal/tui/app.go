// Copyright (c) the Loom Authors. All rights reserved.
// Licensed under the MIT License.

// Package tui is the terminal front end of the stockwatch application. The
// model owns all screen state and mutates it only inside Update, so the
// workflow running on a loom runtime feeds it exclusively through
// [Sink], which posts messages into the bubbletea program.
package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/loomkit/loom"
	"github.com/loomkit/loom/stockwatch"
)

// ExportFunc saves the latest chart of a stock somewhere and returns the
// destination path. It runs on its own goroutine, so it may block.
type ExportFunc func(stockwatch.Stock) (string, error)

// App is the bubbletea model. Navigation switches between the configured
// stocks; picking one emits it as a selection for the workflow.
type App struct {
	stocks     []stockwatch.Stock
	selections *loom.Emitter[stockwatch.Stock]
	export     ExportFunc

	keys    keyMap
	width   int
	height  int
	focused int
	series  map[string][]float64
	fetched map[string]time.Time
	status  string
	note    string
	failed  bool
	picker  *picker
}

type chartMsg struct {
	Stock  stockwatch.Stock
	Series []float64
	When   time.Time
}

type statusMsg string

type exportedMsg string

type errMsg struct{ err error }

// New builds the model. selections is where user picks are published; the
// workflow subscribes to the same emitter. export may be nil to disable the
// save key.
func New(stocks []stockwatch.Stock, selections *loom.Emitter[stockwatch.Stock], export ExportFunc) *App {
	return &App{
		stocks:     stocks,
		selections: selections,
		export:     export,
		keys:       newKeyMap(),
		series:     make(map[string][]float64),
		fetched:    make(map[string]time.Time),
		status:     string(stockwatch.PhaseWaiting),
	}
}

func (a *App) Init() tea.Cmd {
	return nil
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = m.Width, m.Height
	case tea.KeyMsg:
		return a.handleKey(m)
	case chartMsg:
		a.series[m.Stock.Key] = m.Series
		a.fetched[m.Stock.Key] = m.When
		a.focusKey(m.Stock.Key)
		a.note = fmt.Sprintf("%d points at %s", len(m.Series), m.When.Format("15:04:05"))
		a.failed = false
	case statusMsg:
		a.status = string(m)
	case exportedMsg:
		a.note = "saved " + string(m)
		a.failed = false
	case errMsg:
		a.note = m.err.Error()
		a.failed = true
	}
	return a, nil
}

func (a *App) handleKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.picker != nil {
		return a.handlePickerKey(m)
	}
	switch {
	case key.Matches(m, a.keys.Quit):
		return a, tea.Quit
	case key.Matches(m, a.keys.Pick):
		a.picker = newPicker(a.stocks)
	case key.Matches(m, a.keys.Export):
		stock, ok := a.focusedStock()
		switch {
		case !ok:
			a.note = "no stock to export"
			a.failed = true
		case a.export == nil:
			a.note = "export not configured"
			a.failed = true
		case len(a.series[stock.Key]) == 0:
			a.note = "no chart yet, refresh first"
			a.failed = true
		default:
			return a, a.exportCmd(stock)
		}
	case key.Matches(m, a.keys.Refresh):
		if stock, ok := a.focusedStock(); ok {
			a.selections.Emit(stock)
		}
	case key.Matches(m, a.keys.NextTab):
		if len(a.stocks) > 0 {
			a.focused = (a.focused + 1) % len(a.stocks)
		}
	case key.Matches(m, a.keys.PrevTab):
		if len(a.stocks) > 0 {
			a.focused = (a.focused + len(a.stocks) - 1) % len(a.stocks)
		}
	default:
		if i := digitIndex(m.String()); i >= 0 && i < len(a.stocks) {
			a.focused = i
			a.selections.Emit(a.stocks[i])
		}
	}
	return a, nil
}

func (a *App) handlePickerKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "esc":
		a.picker = nil
	case "enter":
		if stock, ok := a.picker.Current(); ok {
			a.picker = nil
			a.focusKey(stock.Key)
			a.selections.Emit(stock)
		}
	case "up", "ctrl+p":
		a.picker.CursorUp()
	case "down", "ctrl+n":
		a.picker.CursorDown()
	case "backspace":
		a.picker.Backspace()
	case "ctrl+c":
		return a, tea.Quit
	default:
		if s := m.String(); isPrintableASCIIKey(s) {
			a.picker.Type(rune(s[0]))
		}
	}
	return a, nil
}

func (a *App) exportCmd(stock stockwatch.Stock) tea.Cmd {
	return func() tea.Msg {
		path, err := a.export(stock)
		if err != nil {
			return errMsg{err}
		}
		return exportedMsg(path)
	}
}

func (a *App) focusedStock() (stockwatch.Stock, bool) {
	if len(a.stocks) == 0 {
		return stockwatch.Stock{}, false
	}
	return a.stocks[a.focused], true
}

func (a *App) focusKey(key string) {
	for i, s := range a.stocks {
		if s.Key == key {
			a.focused = i
			return
		}
	}
}

func digitIndex(s string) int {
	if len(s) != 1 || s[0] < '1' || s[0] > '9' {
		return -1
	}
	return int(s[0] - '1')
}

func isPrintableASCIIKey(keyName string) bool {
	return len(keyName) == 1 && keyName[0] >= 32 && keyName[0] < 127
}
