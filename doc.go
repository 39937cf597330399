// Copyright (c) the Loom Authors. All rights reserved.
// Licensed under the MIT License.

// Package loom provides an API for composing asynchronous computations whose
// individual steps are pinned to specific execution contexts: a single
// cooperative run loop or a pool of worker goroutines. It separates the
// description of a computation from its execution so that placement mistakes,
// such as running a blocking step on the loop or touching loop-confined state
// from a worker, are rejected when the computation is built rather than
// surfacing as data races at run time.
//
// A [Runtime] binds one [Loop] to one [Pool] of workers. The loop executes
// continuations one at a time in submission order, which makes it safe for
// steps running there to access shared state without locks. Workers execute
// blocking and compute-heavy steps concurrently. Steps declare their placement
// through the [OnLoop] and [OnWorker] combinators, move between contexts with
// [ToLoop], [ToWorker], and [ToToken], and overlap I/O with loop availability
// using [Async]. [Build] validates the resulting [Flow] and returns a
// [Program] that can be run any number of times.
//
// Each context is identified by a [Token] that remains valid for the lifetime
// of the runtime. A step can capture the token of the context it is running on
// and a later step can switch back to that exact context, which is how
// loop-confined state acquired early in a computation is safely revisited
// after intervening worker stages.
package loom
