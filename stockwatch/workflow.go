// Copyright (c) the Loom Authors. All rights reserved.
// Licensed under the MIT License.

package stockwatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loomkit/loom"
	"github.com/loomkit/loom/internal/state"
)

const (
	// DefaultPoints is the series length requested from the parser.
	DefaultPoints = 500
	// DefaultTick is the status ticker interval.
	DefaultTick = 500 * time.Millisecond
	// DefaultMarker is the number of ticks after which the trailing dot
	// marker starts over.
	DefaultMarker = 6
)

// Config assembles a [Workflow]. Selections and the four collaborators are
// required; the numeric fields fall back to the Default constants when zero.
type Config struct {
	// Selections delivers the stocks the user picks. The workflow awaits it
	// between cycles and watches it during cycles to supersede stale work.
	Selections loom.Source[Stock]

	Fetch  Fetcher
	Parse  Parser
	Render Renderer
	Status StatusSink

	// Points is the number of data points requested per cycle.
	Points int
	// Tick is the status ticker interval.
	Tick time.Duration
	// Marker is the dot-marker cycle length.
	Marker int
}

// A Workflow runs the selection-download-parse-render cycle. Construct it
// with [New], which also builds and validates the cycle's step placement,
// then call [Workflow.Run].
type Workflow struct {
	selections loom.Source[Stock]
	fetch      Fetcher
	parse      Parser
	render     Renderer
	status     StatusSink
	points     int
	tick       time.Duration
	marker     int

	await *loom.Program[CycleResult]

	phase   state.Cell[Phase]
	last    state.Cell[CycleResult]
	running atomic.Bool

	mu          sync.Mutex
	pending     *Stock
	cancelCycle context.CancelFunc
}

// payload carries the downloaded bytes from the fetch to the parse; parsed
// carries the series back. Both hold the token of the loop context the
// cycle must resume on.
type payload struct {
	stock Stock
	data  []byte
	back  loom.Token
}

type parsed struct {
	stock  Stock
	points []float64
	back   loom.Token
}

// New validates cfg, builds the cycle, and returns the workflow. A cycle
// whose steps cannot all run on the contexts they require is reported here,
// before anything is scheduled.
func New(cfg Config) (*Workflow, error) {
	switch {
	case cfg.Selections == nil:
		return nil, fmt.Errorf("selection source must be non-nil")
	case cfg.Fetch == nil:
		return nil, fmt.Errorf("fetcher must be non-nil")
	case cfg.Parse == nil:
		return nil, fmt.Errorf("parser must be non-nil")
	case cfg.Render == nil:
		return nil, fmt.Errorf("renderer must be non-nil")
	case cfg.Status == nil:
		return nil, fmt.Errorf("status sink must be non-nil")
	}
	if cfg.Points == 0 {
		cfg.Points = DefaultPoints
	}
	if cfg.Points < 2 {
		return nil, fmt.Errorf("point count %d is too small to chart", cfg.Points)
	}
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultTick
	}
	if cfg.Marker <= 0 {
		cfg.Marker = DefaultMarker
	}

	w := &Workflow{
		selections: cfg.Selections,
		fetch:      cfg.Fetch,
		parse:      cfg.Parse,
		render:     cfg.Render,
		status:     cfg.Status,
		points:     cfg.Points,
		tick:       cfg.Tick,
		marker:     cfg.Marker,
	}
	w.phase.Store(PhaseWaiting)

	prog, err := w.buildFrom(loom.From[Stock](w.selections))
	if err != nil {
		return nil, fmt.Errorf("building cycle: %w", err)
	}
	w.await = prog
	return w, nil
}

// buildFrom appends the cycle's steps to root. The awaiting program is
// built from the selection source; superseding selections get a variant
// rooted at the already-known stock instead.
func (w *Workflow) buildFrom(root loom.Flow[Stock]) (*loom.Program[CycleResult], error) {
	f1 := loom.OnLoop(root, "begin download", func(_ *loom.LoopContext, s Stock) (Stock, error) {
		w.phase.Store(PhaseDownloading)
		return s, nil
	})
	f2 := loom.Async(f1, "fetch", func(ctx context.Context, s Stock) (payload, error) {
		data, err := w.fetch.Fetch(ctx, s.Key)
		if err != nil {
			return payload{}, fmt.Errorf("fetch %q: %w", s.Key, err)
		}
		return payload{stock: s, data: data}, nil
	})
	f3 := loom.OnLoop(f2, "begin processing", func(lc *loom.LoopContext, p payload) (payload, error) {
		w.phase.Store(PhaseProcessing)
		p.back = lc.Token()
		return p, nil
	})
	f4 := loom.ToWorker(f3)
	f5 := loom.OnWorker(f4, "parse", func(wc *loom.WorkerContext, p payload) (parsed, error) {
		points, err := w.parse.Parse(wc.Context(), p.data, w.points)
		if err != nil {
			return parsed{}, fmt.Errorf("parse %q: %w", p.stock.Key, err)
		}
		return parsed{stock: p.stock, points: points, back: p.back}, nil
	})
	f6 := loom.ToToken(f5, loom.AffinityLoop, func(p parsed) loom.Token {
		return p.back
	})
	f7 := loom.OnLoop(f6, "render", func(lc *loom.LoopContext, p parsed) (CycleResult, error) {
		if len(p.points) < 2 {
			return CycleResult{}, fmt.Errorf("render %q: %d points: %w",
				p.stock.Key, len(p.points), ErrInsufficientData)
		}
		if err := w.render.Render(lc, p.stock, p.points); err != nil {
			return CycleResult{}, fmt.Errorf("render %q: %w", p.stock.Key, err)
		}
		w.phase.Store(PhaseWaiting)
		return CycleResult{Stock: p.stock, Series: p.points, When: time.Now()}, nil
	})
	return loom.Build(loom.Named(f7, "stockwatch"))
}

// Run drives cycles until ctx is canceled or the runtime becomes
// unavailable. Data failures of a single cycle (a bad download, a payload
// that will not parse, a series too short to draw) reach the runtime's
// observer through the failed flow and the workflow simply returns to
// awaiting the next selection.
//
// Run also starts the status ticker and the selection watch that
// supersedes in-flight cycles. At most one Run may be active per workflow.
func (w *Workflow) Run(ctx context.Context, rt *loom.Runtime) error {
	if rt == nil {
		panic("runtime must be non-nil")
	}
	if !w.running.CompareAndSwap(false, true) {
		panic("workflow already running")
	}
	defer w.running.Store(false)

	stop, err := rt.Loop().Every(w.tick, w.ticker())
	if err != nil {
		return err
	}
	defer stop()

	cancelWatch := w.selections.Subscribe(w.supersede)
	defer cancelWatch()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := w.runCycle(ctx, rt)
		switch {
		case err == nil:
			w.last.Store(res)
		case errors.Is(err, loom.ErrContextUnavailable):
			return err
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, context.Canceled):
			// A fresher selection superseded this cycle; the next
			// iteration picks it up.
		case errors.Is(err, ErrFetchFailed),
			errors.Is(err, ErrMalformedInput),
			errors.Is(err, ErrInsufficientData):
			_ = rt.Loop().Post(func(*loom.LoopContext) {
				w.phase.Store(PhaseWaiting)
			})
		default:
			return err
		}
	}
}

// runCycle runs one cycle: the superseding selection recorded since the
// last cycle if there is one, otherwise the awaiting program.
func (w *Workflow) runCycle(ctx context.Context, rt *loom.Runtime) (CycleResult, error) {
	cycleCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	w.mu.Lock()
	pending := w.pending
	w.pending = nil
	w.cancelCycle = cancel
	w.mu.Unlock()

	if pending != nil {
		prog, err := w.buildFrom(loom.ToLoop(loom.Start(*pending)))
		if err != nil {
			return CycleResult{}, err
		}
		return prog.Run(cycleCtx, rt)
	}
	return w.await.Run(cycleCtx, rt)
}

// supersede watches the selection source for the whole Run. A selection
// arriving while a cycle is in flight cancels that cycle and is recorded
// to seed the next one. While the workflow is waiting, the awaiting
// program's own subscription consumes the selection instead.
func (w *Workflow) supersede(s Stock) {
	if w.phase.Get() == PhaseWaiting {
		return
	}
	w.mu.Lock()
	w.pending = &s
	cancel := w.cancelCycle
	w.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// ticker returns the status continuation: each tick appends a dot to the
// phase text, starting over after marker ticks. The dot counter lives in
// the closure; only the loop touches it.
func (w *Workflow) ticker() func(*loom.LoopContext) {
	n := 0
	return func(lc *loom.LoopContext) {
		n = n%w.marker + 1
		w.status.SetText(lc, string(w.phase.Get())+strings.Repeat(".", n))
	}
}

// Phase reports the workflow's current phase and a channel that closes
// when it next changes.
func (w *Workflow) Phase() (Phase, <-chan struct{}) {
	return w.phase.Load()
}

// Snapshot reports the most recent cycle's artifact and a channel that
// closes when a later cycle replaces it. The zero CycleResult means no
// cycle has completed yet.
func (w *Workflow) Snapshot() (CycleResult, <-chan struct{}) {
	return w.last.Load()
}
