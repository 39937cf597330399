// Copyright (c) the Loom Authors. All rights reserved.
// Licensed under the MIT License.

// Package chart turns a price series into something visible: a block-glyph
// rendering for the terminal and a PNG line chart for export. Both are pure
// functions of their inputs; styling and placement belong to the caller.
package chart

import (
	"fmt"
	"strings"

	"github.com/loomkit/loom/stockwatch"
)

var partials = [8]rune{' ', '▁', '▂', '▃', '▄', '▅', '▆', '▇'}

// Compose renders series as a width x height block chart with a title line
// above and a min/max line below. The output is plain text; color it with
// whatever style the surrounding view uses.
func Compose(stock stockwatch.Stock, series []float64, width, height int) string {
	if width <= 0 || height <= 0 {
		return ""
	}
	title := fmt.Sprintf("%s (%s)", stock.Name, stock.Key)
	if len(series) == 0 {
		return title + "\n(no data)"
	}
	title = fmt.Sprintf("%s last %.2f", title, series[len(series)-1])

	minV, maxV := series[0], series[0]
	for _, v := range series {
		minV = min(minV, v)
		maxV = max(maxV, v)
	}
	span := maxV - minV

	// One level per eighth of a cell: a column is a stack of full blocks
	// with at most one partial on top.
	scale := float64(height * 8)
	levels := make([]int, width)
	for i := range levels {
		v := series[i*len(series)/width]
		if span == 0 {
			levels[i] = height * 4
			continue
		}
		l := int((v-minV)/span*scale + 0.5)
		levels[i] = min(max(l, 0), height*8)
	}

	var b strings.Builder
	b.WriteString(title)
	for row := height - 1; row >= 0; row-- {
		b.WriteByte('\n')
		for _, l := range levels {
			filled := l - row*8
			switch {
			case filled >= 8:
				b.WriteRune('█')
			case filled <= 0:
				b.WriteRune(' ')
			default:
				b.WriteRune(partials[filled])
			}
		}
	}
	fmt.Fprintf(&b, "\nmin %.2f  max %.2f", minV, maxV)
	return b.String()
}
