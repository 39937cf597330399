// Copyright (c) the Loom Authors. All rights reserved.
// Licensed under the MIT License.

package stockwatch

import (
	"fmt"
	"time"
)

// Color is an opaque RGB color. It implements [image/color.Color] so chart
// backends can use it directly.
type Color struct {
	R, G, B uint8
}

// RGBA implements [image/color.Color].
func (c Color) RGBA() (r, g, b, a uint32) {
	r = uint32(c.R) * 0x101
	g = uint32(c.G) * 0x101
	b = uint32(c.B) * 0x101
	a = 0xffff
	return
}

// Hex renders the color as "#rrggbb".
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func (c Color) String() string {
	return c.Hex()
}

// A Stock is one watchable entry of the catalog: a display name, the key
// used to request its quotes from the feed, and the color its series is
// drawn in.
type Stock struct {
	Name  string
	Key   string
	Color Color
}

// Phase labels where the workflow currently is in its cycle. The ticker
// reads it stale-tolerantly; only the workflow's own loop steps write it.
type Phase string

const (
	PhaseWaiting     Phase = "Waiting"
	PhaseDownloading Phase = "Downloading"
	PhaseProcessing  Phase = "Processing"
)

// A CycleResult is the artifact of one completed cycle: the stock that was
// selected, the series that was rendered for it, and when. Each cycle's
// result replaces the previous one.
type CycleResult struct {
	Stock  Stock
	Series []float64
	When   time.Time
}
