// Copyright (c) the Loom Authors. All rights reserved.
// Licensed under the MIT License.

package chart

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/loomkit/loom/stockwatch"
)

// WritePNG saves series as a line chart at path. The line is drawn in the
// stock's color; the X axis is the point index.
func WritePNG(path string, stock stockwatch.Stock, series []float64) error {
	if len(series) < 2 {
		return fmt.Errorf("plotting %q: %d points: %w",
			stock.Key, len(series), stockwatch.ErrInsufficientData)
	}

	p := plot.New()
	p.Title.Text = stock.Name
	p.X.Label.Text = "Point"
	p.Y.Label.Text = "Price"
	p.Title.TextStyle.Color = color.Gray{128}
	p.X.Color = color.Gray{128}
	p.Y.Color = color.Gray{128}

	xys := make(plotter.XYs, len(series))
	for i, v := range series {
		xys[i].X = float64(i)
		xys[i].Y = v
	}
	line, err := plotter.NewLine(xys)
	if err != nil {
		return err
	}
	line.LineStyle.Width = vg.Points(1)
	line.LineStyle.Color = stock.Color

	p.Add(plotter.NewGrid(), line)
	return p.Save(8*vg.Inch, 4*vg.Inch, path)
}
