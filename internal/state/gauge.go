// Copyright (c) the Loom Authors. All rights reserved.
// Licensed under the MIT License.

package state

// Gauge tracks a current level and the highest level observed. It performs
// no synchronization of its own; callers must serialize access, typically by
// updating it only under a lock they already hold.
type Gauge struct {
	current int64
	peak    int64
}

func (g *Gauge) Inc() {
	g.Set(g.current + 1)
}

func (g *Gauge) Dec() {
	if g.current <= 0 {
		panic("gauge underflow")
	}
	g.current--
}

// Set records v as the current level, raising the peak if v exceeds it.
func (g *Gauge) Set(v int64) {
	if v > g.peak {
		g.peak = v
	}
	g.current = v
}

func (g *Gauge) Current() int64 {
	return g.current
}

func (g *Gauge) Peak() int64 {
	return g.peak
}
