// Copyright (c) the Loom Authors. All rights reserved.
// Licensed under the MIT License.

package loom

import "context"

// host records which context the current continuation is executing on.
// Exactly one field is non-nil while a continuation runs; both are nil for
// the brief pre-switch prefix of a [Start]-rooted flow, which by construction
// contains no context-bound steps.
type host struct {
	loop   *Loop
	worker *worker
}

// A LoopContext is proof that the holder is executing on the run loop. Values
// are minted by the engine and handed to [OnLoop] step functions, [Loop.Post]
// continuations, and loop timers; there is no way to construct one elsewhere.
// Collaborator interfaces that must only be called from the loop take a
// *LoopContext parameter to make misuse unrepresentable.
//
// A LoopContext is only valid for the duration of the call it was passed to.
// Retaining one and using it from another goroutine defeats the guarantee it
// exists to provide.
type LoopContext struct {
	ctx  context.Context
	loop *Loop
}

// Context returns the context governing the current computation. It is
// canceled when the computation's run is canceled or the runtime shuts down.
func (lc *LoopContext) Context() context.Context {
	return lc.ctx
}

// Token returns the token of the run loop. Capturing it in a step and
// switching back later with [ToToken] resumes on this same loop.
func (lc *LoopContext) Token() Token {
	return lc.loop.token
}

// Post schedules fn to run on this loop after the current continuation
// returns. It never runs fn inline.
func (lc *LoopContext) Post(fn func(*LoopContext)) error {
	return lc.loop.Post(fn)
}

// A WorkerContext is proof that the holder is executing on one of the pool's
// workers. Values are minted by the engine and handed to [OnWorker] step
// functions. The same validity caveats as [LoopContext] apply.
type WorkerContext struct {
	ctx    context.Context
	worker *worker
}

// Context returns the context governing the current computation.
func (wc *WorkerContext) Context() context.Context {
	return wc.ctx
}

// Token returns the token of the specific worker executing the current step.
// Switching to it later with [ToToken] resumes on this exact worker rather
// than an arbitrary one.
func (wc *WorkerContext) Token() Token {
	return wc.worker.token
}
