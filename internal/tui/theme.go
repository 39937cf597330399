// Copyright (c) the Loom Authors. All rights reserved.
// Licensed under the MIT License.

package tui

import "github.com/charmbracelet/lipgloss"

// Catppuccin Mocha subset, true-color hex values.
// https://catppuccin.com/palette
const (
	colorText     lipgloss.Color = "#cdd6f4"
	colorSubtext  lipgloss.Color = "#a6adc8"
	colorOverlay  lipgloss.Color = "#7f849c"
	colorSurface  lipgloss.Color = "#45475a"
	colorLavender lipgloss.Color = "#b4befe"
	colorPeach    lipgloss.Color = "#fab387"
	colorRed      lipgloss.Color = "#f38ba8"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(colorLavender)
	tabStyle       = lipgloss.NewStyle().Foreground(colorSubtext)
	tabActiveStyle = lipgloss.NewStyle().Bold(true)
	paneStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorSurface).Padding(0, 1)
	statusBarStyle = lipgloss.NewStyle().Foreground(colorText).Background(colorSurface).Padding(0, 1)
	noteStyle      = lipgloss.NewStyle().Foreground(colorOverlay)
	errorStyle     = lipgloss.NewStyle().Foreground(colorRed)
	hintStyle      = lipgloss.NewStyle().Foreground(colorOverlay)
	modalStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorLavender).Padding(0, 1)
	cursorStyle    = lipgloss.NewStyle().Foreground(colorPeach).Bold(true)
)
