// Copyright (c) the Loom Authors. All rights reserved.
// Licensed under the MIT License.

package loom

import (
	"context"
	"sync/atomic"
)

// A Handle is the single-use receipt for a task started with [Spawn]. Its
// result can be claimed exactly once, either by [Handle.Wait] or by a [Join]
// step in a flow; any later claim fails with [ErrAlreadyConsumed].
type Handle[T any] struct {
	done    chan struct{}
	value   T
	err     error
	claimed atomic.Bool
}

// Spawn starts fn immediately on a worker, detached from any flow. The
// caller keeps running; the spawned task's fate is observed, if at all,
// through the returned handle. If the runtime has already shut down the
// handle is immediately ready with [ErrContextUnavailable].
func Spawn[T any](rt *Runtime, fn TaskFunc[T]) *Handle[T] {
	if fn == nil {
		panic("task function must be non-nil")
	}
	h := &Handle[T]{done: make(chan struct{})}
	err := rt.pool.submit(func(*worker) {
		h.value, h.err = fn(rt.ctx)
		close(h.done)
	})
	if err != nil {
		h.err = err
		close(h.done)
	}
	return h
}

// Wait blocks until the task completes and returns its result. The handle
// is consumed even if Wait returns early because ctx was canceled; a second
// call always returns [ErrAlreadyConsumed].
func (h *Handle[T]) Wait(ctx context.Context) (T, error) {
	var zero T
	if !h.claim() {
		return zero, ErrAlreadyConsumed
	}
	select {
	case <-h.done:
		return h.value, h.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (h *Handle[T]) claim() bool {
	return h.claimed.CompareAndSwap(false, true)
}

// watch invokes fn once the task completes, from a dedicated goroutine.
func (h *Handle[T]) watch(fn func()) {
	go func() {
		<-h.done
		fn()
	}()
}
