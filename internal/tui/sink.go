// Copyright (c) the Loom Authors. All rights reserved.
// Licensed under the MIT License.

package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/loomkit/loom"
	"github.com/loomkit/loom/stockwatch"
)

// Sink delivers workflow output to a running bubbletea program. Send is
// thread-safe, so the loom loop can call these from its continuations
// without blocking on the terminal.
//
// Sink implements [stockwatch.Renderer] and [stockwatch.StatusSink].
type Sink struct {
	program *tea.Program
}

func NewSink(program *tea.Program) *Sink {
	return &Sink{program: program}
}

// Render posts the finished series to the model as a [chartMsg].
func (s *Sink) Render(_ *loom.LoopContext, stock stockwatch.Stock, series []float64) error {
	s.program.Send(chartMsg{
		Stock:  stock,
		Series: append([]float64(nil), series...),
		When:   time.Now(),
	})
	return nil
}

// SetText posts the ticker's status line to the model.
func (s *Sink) SetText(_ *loom.LoopContext, text string) {
	s.program.Send(statusMsg(text))
}
