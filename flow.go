// Copyright (c) the Loom Authors. All rights reserved.
// Licensed under the MIT License.

package loom

import (
	"context"
	"fmt"
	"slices"
)

// A Flow describes an asynchronous computation as a sequence of steps, each
// bound to an execution context, with T the type produced by the steps so
// far. Flows are immutable values: every combinator returns a new Flow and
// leaves its argument usable, so a common prefix can be extended into
// several variants.
//
// Alongside the steps, a Flow tracks the affinity a value will have reached
// at each position. The context-bound combinators ([OnLoop], [OnWorker],
// [Async], [Join]) check their placement against that affinity as the flow
// is composed; a violation poisons the Flow and is reported by [Build]. A
// flow that builds cannot later fail because a step ran on the wrong kind of
// context.
//
// Flows must be rooted at [Start] or [From]; the zero Flow panics when
// extended or built.
type Flow[T any] struct {
	p *flowProg
}

type flowProg struct {
	name   string
	entry  *awaitEntry
	seed   any
	steps  []step
	cursor Affinity
	err    error
}

// awaitEntry is the type-erased subscription of a [From]-rooted flow.
type awaitEntry struct {
	subscribe func(fn func(any)) (cancel func())
}

type stepKind int

const (
	stepBody stepKind = iota
	stepSwitch
	stepSwitchToken
	stepAsync
	stepJoin
)

// step is one type-erased position in a program. The affinity field holds
// the context a body step runs on, the target of a switch, or the resume
// context of an async or join step.
type step struct {
	kind     stepKind
	name     string
	affinity Affinity

	body   func(h host, ctx context.Context, in any) (any, error)
	call   func(ctx context.Context, in any) (any, error)
	attach func(in any, done func(any, error))
	pick   func(in any) Token
}

// An AffinityError reports a step that was composed onto a flow whose value
// would not be on the context the step requires. It is returned by [Build];
// by then the offending program has never run.
type AffinityError struct {
	Flow  string
	Step  string
	Index int
	Need  Affinity
	Have  Affinity
}

func (e *AffinityError) Error() string {
	return fmt.Sprintf("flow %q: step %d (%q) requires %s affinity but preceding steps leave %s",
		e.Flow, e.Index, e.Step, e.Need, e.Have)
}

// Start roots a flow at a known value. The flow begins with no established
// context; it must switch to the loop or a worker before its first
// context-bound step.
func Start[T any](v T) Flow[T] {
	return Flow[T]{p: &flowProg{seed: v, cursor: NoAffinity}}
}

// From roots a flow at an event source. When the built program runs it
// subscribes to src and suspends; the first value delivered after the run
// begins resumes the flow on the loop, and the subscription is dropped.
// Values delivered before the run begins are never seen: sources do not
// replay.
func From[T any](src Source[T]) Flow[T] {
	if src == nil {
		panic("source must be non-nil")
	}
	return Flow[T]{p: &flowProg{
		entry: &awaitEntry{
			subscribe: func(fn func(any)) (cancel func()) {
				return src.Subscribe(func(v T) { fn(v) })
			},
		},
		cursor: AffinityLoop,
	}}
}

// Named labels the flow for observer events and error messages.
func Named[T any](f Flow[T], name string) Flow[T] {
	p := f.prog()
	q := p.clone()
	q.name = name
	return Flow[T]{p: q}
}

// OnLoop appends a step that runs on the loop. Composing it onto a flow
// whose value is anywhere else is a construction error reported by [Build].
func OnLoop[S, T any](f Flow[S], name string, fn LoopStepFunc[S, T]) Flow[T] {
	if fn == nil {
		panic("step function must be non-nil")
	}
	p := f.prog()
	if p.err != nil {
		return Flow[T]{p: p}
	}
	if p.cursor != AffinityLoop {
		return Flow[T]{p: p.misplaced(name, AffinityLoop)}
	}
	return Flow[T]{p: p.extend(step{
		kind:     stepBody,
		name:     name,
		affinity: AffinityLoop,
		body: func(h host, ctx context.Context, in any) (any, error) {
			if h.loop == nil {
				panic("loop step scheduled off the loop")
			}
			return fn(&LoopContext{ctx: ctx, loop: h.loop}, in.(S))
		},
	}, AffinityLoop)}
}

// OnWorker appends a step that runs on a worker. Composing it onto a flow
// whose value is anywhere else is a construction error reported by [Build].
func OnWorker[S, T any](f Flow[S], name string, fn WorkerStepFunc[S, T]) Flow[T] {
	if fn == nil {
		panic("step function must be non-nil")
	}
	p := f.prog()
	if p.err != nil {
		return Flow[T]{p: p}
	}
	if p.cursor != AffinityWorker {
		return Flow[T]{p: p.misplaced(name, AffinityWorker)}
	}
	return Flow[T]{p: p.extend(step{
		kind:     stepBody,
		name:     name,
		affinity: AffinityWorker,
		body: func(h host, ctx context.Context, in any) (any, error) {
			if h.worker == nil {
				panic("worker step scheduled off the pool")
			}
			return fn(&WorkerContext{ctx: ctx, worker: h.worker}, in.(S))
		},
	}, AffinityWorker)}
}

// ToLoop appends a switch to the loop. The value in flight is carried
// across; subsequent steps run on the loop. Switching from the loop to
// itself is allowed and acts as a cooperative yield: the continuation goes
// to the back of the loop's queue.
func ToLoop[T any](f Flow[T]) Flow[T] {
	p := f.prog()
	if p.err != nil {
		return f
	}
	return Flow[T]{p: p.extend(step{
		kind:     stepSwitch,
		name:     "to loop",
		affinity: AffinityLoop,
	}, AffinityLoop)}
}

// ToWorker appends a switch to whichever worker frees up first. Subsequent
// steps run on that worker until the next switch or async boundary.
func ToWorker[T any](f Flow[T]) Flow[T] {
	p := f.prog()
	if p.err != nil {
		return f
	}
	return Flow[T]{p: p.extend(step{
		kind:     stepSwitch,
		name:     "to worker",
		affinity: AffinityWorker,
	}, AffinityWorker)}
}

// ToToken appends a switch to the exact context identified by the token that
// pick extracts from the value in flight. The affinity argument declares the
// kind of context the token will denote; it advances the construction-time
// cursor, and at run time a token of any other kind fails the computation
// with [ErrTokenMismatch]. A token whose context has shut down fails it with
// [ErrContextUnavailable].
func ToToken[T any](f Flow[T], affinity Affinity, pick func(T) Token) Flow[T] {
	if pick == nil {
		panic("pick function must be non-nil")
	}
	if affinity != AffinityLoop && affinity != AffinityWorker {
		panic("switch target affinity must be loop or worker")
	}
	p := f.prog()
	if p.err != nil {
		return f
	}
	return Flow[T]{p: p.extend(step{
		kind:     stepSwitchToken,
		name:     "to token",
		affinity: affinity,
		pick: func(in any) Token {
			return pick(in.(T))
		},
	}, affinity)}
}

// Async appends a call that runs on a worker while the flow's home context
// remains free to process other continuations. When the call returns, the
// flow resumes with its result on the same kind of context it suspended
// from. Async requires an established context to resume on; composing it
// onto a [Start]-rooted flow before any switch is a construction error.
func Async[S, T any](f Flow[S], name string, fn CallFunc[S, T]) Flow[T] {
	if fn == nil {
		panic("call function must be non-nil")
	}
	p := f.prog()
	if p.err != nil {
		return Flow[T]{p: p}
	}
	if p.cursor == NoAffinity {
		return Flow[T]{p: p.fail(fmt.Errorf(
			"flow %q: step %d (%q): async call requires an established context to resume on",
			p.name, len(p.steps), name))}
	}
	return Flow[T]{p: p.extend(step{
		kind:     stepAsync,
		name:     name,
		affinity: p.cursor,
		call: func(ctx context.Context, in any) (any, error) {
			return fn(ctx, in.(S))
		},
	}, p.cursor)}
}

// Join appends a step that awaits a [Handle] produced by earlier steps,
// resuming on the current context with the task's result. The handle is
// consumed; a handle that was already claimed fails the computation with
// [ErrAlreadyConsumed].
func Join[T any](f Flow[*Handle[T]]) Flow[T] {
	p := f.prog()
	if p.err != nil {
		return Flow[T]{p: p}
	}
	if p.cursor == NoAffinity {
		return Flow[T]{p: p.fail(fmt.Errorf(
			"flow %q: step %d (join): joining requires an established context to resume on",
			p.name, len(p.steps)))}
	}
	return Flow[T]{p: p.extend(step{
		kind:     stepJoin,
		name:     "join",
		affinity: p.cursor,
		attach: func(in any, done func(any, error)) {
			h := in.(*Handle[T])
			if !h.claim() {
				done(nil, ErrAlreadyConsumed)
				return
			}
			h.watch(func() {
				done(h.value, h.err)
			})
		},
	}, p.cursor)}
}

// Build validates the flow and returns an immutable [Program]. The first
// placement violation recorded during composition is returned instead; a
// program is only ever produced for a flow whose every step will run on the
// kind of context it requires.
func Build[T any](f Flow[T]) (*Program[T], error) {
	p := f.prog()
	if p.err != nil {
		return nil, p.err
	}
	return &Program[T]{
		name:  p.name,
		entry: p.entry,
		seed:  p.seed,
		steps: p.steps,
	}, nil
}

func (f Flow[T]) prog() *flowProg {
	if f.p == nil {
		panic("flow must be rooted at Start or From")
	}
	return f.p
}

func (p *flowProg) clone() *flowProg {
	return &flowProg{
		name:   p.name,
		entry:  p.entry,
		seed:   p.seed,
		steps:  slices.Clone(p.steps),
		cursor: p.cursor,
		err:    p.err,
	}
}

func (p *flowProg) extend(st step, cursor Affinity) *flowProg {
	q := p.clone()
	q.steps = append(q.steps, st)
	q.cursor = cursor
	return q
}

func (p *flowProg) misplaced(name string, need Affinity) *flowProg {
	q := p.clone()
	q.err = &AffinityError{
		Flow:  p.name,
		Step:  name,
		Index: len(p.steps),
		Need:  need,
		Have:  p.cursor,
	}
	return q
}

func (p *flowProg) fail(err error) *flowProg {
	q := p.clone()
	q.err = err
	return q
}
