// Copyright (c) the Loom Authors. All rights reserved.
// Licensed under the MIT License.

package loom

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// A Program is a validated, immutable computation produced by [Build]. It
// can be run any number of times, concurrently if desired; each run is
// independent.
type Program[T any] struct {
	name  string
	entry *awaitEntry
	seed  any
	steps []step
}

// Name returns the label given with [Named], if any.
func (p *Program[T]) Name() string {
	return p.name
}

// Run executes one pass of the program on rt and blocks the calling
// goroutine until it completes. Consecutive steps bound to the same context
// run as one uninterrupted unit; every switch, await, async call, and join
// is a suspension point where the computation yields its context and ctx is
// observed for cancellation.
//
// Run returns the final step's value, the first step error, ctx's error if
// the run was canceled, or [ErrContextUnavailable] if the runtime shut down
// before the run could complete. Run must not be called from a loop or
// worker continuation: it blocks, and the context it would block on may be
// the one it is running on.
func (p *Program[T]) Run(ctx context.Context, rt *Runtime) (T, error) {
	if rt == nil {
		panic("runtime must be non-nil")
	}
	rs := &runState[T]{
		ctx:  ctx,
		rt:   rt,
		prog: p,
		done: make(chan outcome[T], 1),
	}
	defer rs.unsubscribe()
	rt.observe(Event{Kind: EventFlowStarted, Flow: p.name, Time: time.Now()})
	rs.start()

	var zero T
	select {
	case out := <-rs.done:
		return out.value, out.err
	case <-ctx.Done():
		select {
		case out := <-rs.done:
			return out.value, out.err
		default:
		}
		return zero, ctx.Err()
	case <-rt.done:
		select {
		case out := <-rs.done:
			return out.value, out.err
		default:
		}
		return zero, ErrContextUnavailable
	}
}

type outcome[T any] struct {
	value T
	err   error
}

// runState is the mutable spine of one program run. Continuations hop
// between contexts but only one is ever live at a time, so the fields are
// touched sequentially; the exceptions are the outcome delivery guarded by
// finished and the await bookkeeping guarded by awaitMu.
type runState[T any] struct {
	ctx  context.Context
	rt   *Runtime
	prog *Program[T]
	done chan outcome[T]

	finished atomic.Bool

	awaitMu     sync.Mutex
	awaitCancel func()
	awaitEnded  bool
}

func (rs *runState[T]) start() {
	if e := rs.prog.entry; e != nil {
		var once atomic.Bool
		cancel := e.subscribe(func(v any) {
			if !once.CompareAndSwap(false, true) {
				return
			}
			err := rs.rt.loop.postHosted(func(h host) {
				rs.unsubscribe()
				rs.advance(0, v, h)
			})
			if err != nil {
				rs.fail(err)
			}
		})
		rs.setAwaitCancel(cancel)
		return
	}
	rs.advance(0, rs.prog.seed, host{})
}

// advance runs steps starting at i until the program completes, fails, or
// reaches a suspension point. Body steps execute inline for as long as each
// next step stays on the current context; everything else schedules a
// continuation and returns.
func (rs *runState[T]) advance(i int, in any, h host) {
	for {
		if err := rs.ctx.Err(); err != nil {
			rs.fail(err)
			return
		}
		if i >= len(rs.prog.steps) {
			rs.succeed(in)
			return
		}
		st := &rs.prog.steps[i]
		switch st.kind {
		case stepBody:
			rs.observeStep(EventStepStarted, st, i, nil)
			out, err := st.body(h, rs.ctx, in)
			rs.observeStep(EventStepFinished, st, i, err)
			if err != nil {
				rs.fail(err)
				return
			}
			in = out
			i++

		case stepSwitch:
			rs.observeSwitch(st, i, Token{})
			if err := rs.post(i+1, in, st.affinity); err != nil {
				rs.fail(err)
			}
			return

		case stepSwitchToken:
			tok := st.pick(in)
			if tok.affinity != st.affinity || tok.home == nil {
				rs.fail(fmt.Errorf("flow %q: step %d (%q): %s is not a live %s token: %w",
					rs.prog.name, i, st.name, tok, st.affinity, ErrTokenMismatch))
				return
			}
			rs.observeSwitch(st, i, tok)
			next := i + 1
			carried := in
			if err := tok.home.postHosted(func(h2 host) {
				rs.advance(next, carried, h2)
			}); err != nil {
				rs.fail(err)
			}
			return

		case stepAsync:
			rs.observeStep(EventStepStarted, st, i, nil)
			idx := i
			carried := in
			err := rs.rt.pool.submit(func(*worker) {
				out, err := st.call(rs.ctx, carried)
				rs.observeStep(EventStepFinished, st, idx, err)
				if err != nil {
					rs.fail(err)
					return
				}
				if perr := rs.post(idx+1, out, st.affinity); perr != nil {
					rs.fail(perr)
				}
			})
			if err != nil {
				rs.fail(err)
			}
			return

		case stepJoin:
			rs.observeStep(EventStepStarted, st, i, nil)
			idx := i
			st.attach(in, func(out any, err error) {
				rs.observeStep(EventStepFinished, st, idx, err)
				if err != nil {
					rs.fail(err)
					return
				}
				if perr := rs.post(idx+1, out, st.affinity); perr != nil {
					rs.fail(perr)
				}
			})
			return

		default:
			panic("unknown step kind")
		}
	}
}

func (rs *runState[T]) post(i int, in any, affinity Affinity) error {
	switch affinity {
	case AffinityLoop:
		return rs.rt.loop.postHosted(func(h host) {
			rs.advance(i, in, h)
		})
	case AffinityWorker:
		return rs.rt.pool.submit(func(w *worker) {
			rs.advance(i, in, host{worker: w})
		})
	default:
		panic("cannot schedule onto unestablished affinity")
	}
}

func (rs *runState[T]) succeed(v any) {
	if !rs.finished.CompareAndSwap(false, true) {
		return
	}
	rs.rt.observe(Event{Kind: EventFlowFinished, Flow: rs.prog.name, Time: time.Now()})
	rs.done <- outcome[T]{value: v.(T)}
}

func (rs *runState[T]) fail(err error) {
	if !rs.finished.CompareAndSwap(false, true) {
		return
	}
	rs.rt.observe(Event{Kind: EventFlowFailed, Flow: rs.prog.name, Err: err, Time: time.Now()})
	var zero T
	rs.done <- outcome[T]{value: zero, err: err}
}

func (rs *runState[T]) observeStep(kind EventKind, st *step, i int, err error) {
	rs.rt.observe(Event{
		Kind:     kind,
		Flow:     rs.prog.name,
		Step:     st.name,
		Index:    i,
		Affinity: st.affinity,
		Err:      err,
		Time:     time.Now(),
	})
}

func (rs *runState[T]) observeSwitch(st *step, i int, tok Token) {
	rs.rt.observe(Event{
		Kind:     EventSwitched,
		Flow:     rs.prog.name,
		Step:     st.name,
		Index:    i,
		Affinity: st.affinity,
		Token:    tok,
		Time:     time.Now(),
	})
}

func (rs *runState[T]) setAwaitCancel(cancel func()) {
	rs.awaitMu.Lock()
	if rs.awaitEnded {
		rs.awaitMu.Unlock()
		cancel()
		return
	}
	rs.awaitCancel = cancel
	rs.awaitMu.Unlock()
}

func (rs *runState[T]) unsubscribe() {
	rs.awaitMu.Lock()
	cancel := rs.awaitCancel
	rs.awaitCancel = nil
	rs.awaitEnded = true
	rs.awaitMu.Unlock()
	if cancel != nil {
		cancel()
	}
}
