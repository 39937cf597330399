// Copyright (c) the Loom Authors. All rights reserved.
// Licensed under the MIT License.

package loom

import "sync"

// A Source is a stream of values that a flow can await with [From].
// Subscribe registers fn to be called for each subsequent value and returns
// a function that cancels the registration. Sources do not buffer or replay:
// a value delivered while nothing is subscribed is gone.
//
// Subscribe callbacks run on the goroutine that produced the value, so they
// must be thread-safe and quick. The engine's own subscriptions do nothing
// but post a continuation.
type Source[T any] interface {
	Subscribe(fn func(T)) (cancel func())
}

// Emitter is a broadcast [Source]. Emit delivers the value synchronously to
// every subscriber present at that instant, in subscription order.
//
// The zero Emitter is ready for use.
type Emitter[T any] struct {
	mu   sync.Mutex
	next int
	subs []subscriber[T]
}

type subscriber[T any] struct {
	id int
	fn func(T)
}

// NewEmitter returns a new, empty emitter.
func NewEmitter[T any]() *Emitter[T] {
	return &Emitter[T]{}
}

// Emit delivers v to all current subscribers. If there are none, v is
// dropped.
func (e *Emitter[T]) Emit(v T) {
	e.mu.Lock()
	fns := make([]func(T), len(e.subs))
	for i, s := range e.subs {
		fns[i] = s.fn
	}
	e.mu.Unlock()
	for _, fn := range fns {
		fn(v)
	}
}

// Subscribe implements [Source]. Canceling twice is harmless.
func (e *Emitter[T]) Subscribe(fn func(T)) (cancel func()) {
	e.mu.Lock()
	id := e.next
	e.next++
	e.subs = append(e.subs, subscriber[T]{id: id, fn: fn})
	e.mu.Unlock()
	return func() {
		e.mu.Lock()
		for i, s := range e.subs {
			if s.id == id {
				e.subs = append(e.subs[:i], e.subs[i+1:]...)
				break
			}
		}
		e.mu.Unlock()
	}
}

// Len reports the number of active subscriptions.
func (e *Emitter[T]) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs)
}

// MapSource derives a source that applies fn to each value of src. It is how
// homogeneous event streams are tagged before fan-in: map each stream to a
// value identifying its origin, then [Merge] the results.
func MapSource[S, T any](src Source[S], fn func(S) T) Source[T] {
	if fn == nil {
		panic("map function must be non-nil")
	}
	return mappedSource[S, T]{src: src, fn: fn}
}

type mappedSource[S, T any] struct {
	src Source[S]
	fn  func(S) T
}

func (m mappedSource[S, T]) Subscribe(fn func(T)) (cancel func()) {
	return m.src.Subscribe(func(v S) {
		fn(m.fn(v))
	})
}

// Merge fans several sources into one. A subscriber sees every value from
// every source; an awaiting flow sees whichever value arrives first.
func Merge[T any](sources ...Source[T]) Source[T] {
	return mergedSource[T]{sources: sources}
}

type mergedSource[T any] struct {
	sources []Source[T]
}

func (m mergedSource[T]) Subscribe(fn func(T)) (cancel func()) {
	cancels := make([]func(), len(m.sources))
	for i, src := range m.sources {
		cancels[i] = src.Subscribe(fn)
	}
	return func() {
		for _, c := range cancels {
			c()
		}
	}
}
