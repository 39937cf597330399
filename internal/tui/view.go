// Copyright (c) the Loom Authors. All rights reserved.
// Licensed under the MIT License.

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/loomkit/loom/internal/chart"
)

func (a *App) View() string {
	if a.width == 0 || a.height == 0 {
		return "starting..."
	}

	header := a.renderHeader()
	status := a.renderStatusBar()
	hints := a.renderHints()

	paneHeight := a.height - 3
	if paneHeight < 3 {
		paneHeight = 3
	}
	pane := a.renderChartPane(a.width, paneHeight)

	body := header + "\n" + pane + "\n" + status + "\n" + hints
	if a.picker != nil {
		body += "\n" + a.renderPicker()
	}
	return body
}

func (a *App) renderHeader() string {
	parts := []string{titleStyle.Render("Stockwatch")}
	for i, s := range a.stocks {
		label := fmt.Sprintf("%d %s", i+1, s.Name)
		if i == a.focused {
			parts = append(parts, tabActiveStyle.Foreground(lipgloss.Color(s.Color.Hex())).Render(label))
		} else {
			parts = append(parts, tabStyle.Render(label))
		}
	}
	return strings.Join(parts, "  ")
}

func (a *App) renderChartPane(width, height int) string {
	stock, ok := a.focusedStock()
	if !ok {
		return paneStyle.Width(width - 2).Height(height - 2).Render("no stocks configured")
	}

	innerWidth := width - 4
	innerHeight := height - 2
	text := chart.Compose(stock, a.series[stock.Key], innerWidth, innerHeight)
	colored := lipgloss.NewStyle().
		Foreground(lipgloss.Color(stock.Color.Hex())).
		Render(text)
	return paneStyle.Width(width - 2).Height(innerHeight).Render(colored)
}

func (a *App) renderStatusBar() string {
	left := statusBarStyle.Render(a.status)
	note := ""
	if a.note != "" {
		if a.failed {
			note = errorStyle.Render(a.note)
		} else {
			note = noteStyle.Render(a.note)
		}
	}
	gap := a.width - lipgloss.Width(left) - lipgloss.Width(note)
	if gap < 1 {
		return left
	}
	return left + strings.Repeat(" ", gap) + note
}

func (a *App) renderHints() string {
	parts := make([]string, 0, 8)
	for _, b := range a.keys.ShortHelp() {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return hintStyle.Render(strings.Join(parts, "  "))
}

func (a *App) renderPicker() string {
	p := a.picker
	lines := make([]string, 0, len(p.ranked)+2)

	query := p.query
	if query == "" {
		query = noteStyle.Render("(type to filter)")
	}
	lines = append(lines, "Find: "+query)

	if len(p.ranked) == 0 {
		lines = append(lines, noteStyle.Render("  no matches"))
	}
	for i, s := range p.ranked {
		prefix := "  "
		if i == p.cursor {
			prefix = cursorStyle.Render("> ")
		}
		name := lipgloss.NewStyle().Foreground(lipgloss.Color(s.Color.Hex())).Render(s.Name)
		lines = append(lines, prefix+name+noteStyle.Render(" ("+s.Key+")"))
	}
	lines = append(lines, hintStyle.Render("enter select  esc cancel"))

	return modalStyle.Render(strings.Join(lines, "\n"))
}
