// Copyright (c) the Loom Authors. All rights reserved.
// Licensed under the MIT License.

package loom

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
)

// Runtime binds one [Loop] to one [Pool] of workers and carries the context
// from which every computation context derives. A Runtime must be created
// with [New] and driven by a single call to [Runtime.Run]; the goroutine
// that calls Run becomes the loop.
//
// Each call to New should typically be followed by a deferred call to
// [Runtime.Close] to ensure that an early exit from the calling function
// does not leave the loop and workers running.
type Runtime struct {
	ctx    context.Context
	cancel context.CancelFunc
	loop   *Loop
	pool   *Pool
	obs    Observer
	done   chan struct{}

	workerCount int
	cause       error
	closeOnce   sync.Once
	running     atomic.Bool
	stopWatch   func() bool
}

// An Option adjusts the construction of a [Runtime].
type Option func(*Runtime)

// WithWorkers sets the number of workers in the runtime's pool. Values less
// than one select [runtime.NumCPU].
func WithWorkers(n int) Option {
	return func(rt *Runtime) {
		rt.workerCount = n
	}
}

// WithObserver installs an [Observer] that receives an [Event] for every
// lifecycle transition of every computation run on the runtime. The observer
// is invoked synchronously from loop and worker continuations and must not
// block.
func WithObserver(o Observer) Option {
	return func(rt *Runtime) {
		if o != nil {
			rt.obs = o
		}
	}
}

// New creates a runtime whose loop and workers live until ctx is canceled or
// [Runtime.Close] is called, whichever comes first. Workers start
// immediately; the loop starts processing when [Runtime.Run] is called,
// though it accepts posts from the moment New returns.
func New(ctx context.Context, opts ...Option) *Runtime {
	ctx, cancel := context.WithCancel(ctx)
	rt := &Runtime{
		ctx:    ctx,
		cancel: cancel,
		obs:    nopObserver{},
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(rt)
	}
	if rt.workerCount <= 0 {
		rt.workerCount = runtime.NumCPU()
	}
	rt.loop = newLoop(ctx)
	rt.pool = newPool(rt.workerCount)
	rt.stopWatch = context.AfterFunc(ctx, func() {
		rt.shutdown(context.Cause(ctx))
	})
	return rt
}

// Run turns the calling goroutine into the loop and blocks until the runtime
// shuts down. It returns nil after [Runtime.Close] and the cancellation
// cause after the construction context is canceled. By the time Run returns,
// the loop has drained and every worker has exited.
//
// Run may be called at most once; a second call panics.
func (rt *Runtime) Run() error {
	if !rt.running.CompareAndSwap(false, true) {
		panic("runtime already running")
	}
	rt.loop.run()
	rt.pool.wait()
	return rt.cause
}

// Close shuts the runtime down: the loop drains and stops, workers finish
// their current continuation and exit, and every subsequent post or switch
// targeting the runtime's contexts fails with [ErrContextUnavailable]. Close
// is idempotent and safe to call from any goroutine, including from loop and
// worker continuations.
func (rt *Runtime) Close() {
	rt.shutdown(nil)
}

func (rt *Runtime) shutdown(cause error) {
	rt.closeOnce.Do(func() {
		rt.cause = cause
		rt.loop.close()
		rt.pool.close()
		close(rt.done)
		rt.cancel()
		if rt.stopWatch != nil {
			rt.stopWatch()
		}
	})
}

// Loop returns the runtime's run loop.
func (rt *Runtime) Loop() *Loop {
	return rt.loop
}

// Workers returns the runtime's worker pool.
func (rt *Runtime) Workers() *Pool {
	return rt.pool
}

// Done returns a channel closed when the runtime has shut down.
func (rt *Runtime) Done() <-chan struct{} {
	return rt.done
}

func (rt *Runtime) observe(e Event) {
	rt.obs.Observe(e)
}
