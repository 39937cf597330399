// Copyright (c) the Loom Authors. All rights reserved.
// Licensed under the MIT License.

// Command stockwatch charts daily close prices for a configurable set of
// stocks in the terminal. Quote fetching, parsing, and rendering run as one
// placement-checked cycle on a loom runtime; the UI is a bubbletea program.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/loomkit/loom"
	"github.com/loomkit/loom/internal/chart"
	"github.com/loomkit/loom/internal/config"
	"github.com/loomkit/loom/internal/feed"
	"github.com/loomkit/loom/internal/tui"
	"github.com/loomkit/loom/otloom"
	"github.com/loomkit/loom/stockwatch"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := openLogger(cfg.Log.Path)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	if cfg.Log.Trace != "" {
		f, err := os.Create(cfg.Log.Trace)
		if err != nil {
			log.Fatalf("trace file: %v", err)
		}
		defer f.Close()
		tp, err := otloom.NewTracerProvider(f)
		if err != nil {
			log.Fatalf("tracer: %v", err)
		}
		defer func() { _ = tp.Shutdown(context.Background()) }()
	}

	stocks, err := cfg.Catalog()
	if err != nil {
		log.Fatalf("stocks: %v", err)
	}
	if err := os.MkdirAll(cfg.Chart.ExportDir, 0o755); err != nil {
		log.Fatalf("mkdir export dir: %v", err)
	}

	rt := loom.New(ctx,
		loom.WithWorkers(cfg.Runtime.Workers),
		loom.WithObserver(otloom.NewZapObserver(logger)))
	defer rt.Close()
	go func() {
		_ = rt.Run() //nolint:errcheck // the deferred Close reports nil here
	}()

	selections := loom.NewEmitter[stockwatch.Stock]()

	// The export closure reads wf, which is assigned below; the UI cannot
	// trigger an export before prog.Run starts.
	var wf *stockwatch.Workflow
	export := func(stock stockwatch.Stock) (string, error) {
		snap, _ := wf.Snapshot()
		if snap.Stock.Key != stock.Key || len(snap.Series) == 0 {
			return "", fmt.Errorf("no rendered chart for %s", stock.Name)
		}
		path := filepath.Join(cfg.Chart.ExportDir, stock.Key+".png")
		handle := loom.Spawn(rt, otloom.InstrumentedTask("export-chart",
			func(context.Context) (string, error) {
				return path, chart.WritePNG(path, snap.Stock, snap.Series)
			}))
		return handle.Wait(ctx)
	}

	app := tui.New(stocks, selections, export)
	prog := tea.NewProgram(app, tea.WithAltScreen())
	sink := tui.NewSink(prog)

	wf, err = stockwatch.New(stockwatch.Config{
		Selections: selections,
		Fetch:      feed.NewClient(cfg.Feed.URL),
		Parse:      &feed.SeriesParser{Cost: cfg.Feed.Cost},
		Render:     sink,
		Status:     sink,
		Points:     cfg.Feed.Points,
		Tick:       cfg.Chart.Tick,
		Marker:     cfg.Chart.Marker,
	})
	if err != nil {
		log.Fatalf("workflow: %v", err)
	}

	go func() {
		if err := wf.Run(ctx, rt); err != nil && ctx.Err() == nil {
			zap.L().Error("workflow stopped", zap.Error(err))
			prog.Quit()
		}
	}()

	if _, err := prog.Run(); err != nil {
		fmt.Printf("error: %v\n", err)
	}
}

func openLogger(path string) (*zap.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	c := zap.NewProductionConfig()
	c.OutputPaths = []string{path}
	c.ErrorOutputPaths = []string{path}
	return c.Build()
}
