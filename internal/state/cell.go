// Copyright (c) the Loom Authors. All rights reserved.
// Licensed under the MIT License.

package state

import "sync/atomic"

// Cell is an atomically replaceable value with change notification. One
// writer updates it with [Cell.Store] while any number of readers observe it
// with [Cell.Load]; the channel returned alongside the value is closed when
// the value is next replaced, letting a reader wait for the change without
// polling.
//
// The zero Cell holds the zero value of T.
type Cell[T any] struct {
	state atomic.Pointer[cellState[T]]
}

type cellState[T any] struct {
	value   T
	changed chan struct{}
}

// Load returns the current value and a channel that is closed when the value
// is next replaced.
func (c *Cell[T]) Load() (T, <-chan struct{}) {
	s := c.state.Load()
	if s == nil {
		var zero T
		s = &cellState[T]{value: zero, changed: make(chan struct{})}
		if !c.state.CompareAndSwap(nil, s) {
			s = c.state.Load()
		}
	}
	return s.value, s.changed
}

// Get returns the current value without a change channel.
func (c *Cell[T]) Get() T {
	v, _ := c.Load()
	return v
}

// Store replaces the current value and signals readers waiting on the
// previous value's change channel.
func (c *Cell[T]) Store(v T) {
	old := c.state.Swap(&cellState[T]{
		value:   v,
		changed: make(chan struct{}),
	})
	if old != nil {
		close(old.changed)
	}
}
