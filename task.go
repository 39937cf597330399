// Copyright (c) the Loom Authors. All rights reserved.
// Licensed under the MIT License.

package loom

import (
	"context"
)

// A TaskFunc is a detached unit of work executed on a worker by [Spawn]. It
// receives the runtime's context, which is canceled when the runtime shuts
// down, and should respect it for cancellation. Any other inputs are
// expected to be provided by specifying the TaskFunc as a [function literal]
// that references and therefore captures local variables via [lexical
// closure].
//
// A TaskFunc runs concurrently with the loop and with other workers and must
// therefore be thread-safe, including access to any captured variables. If a
// TaskFunc panics, the whole program terminates as per [Handling panics] in
// The Go Programming Language Specification; recover within the function and
// return an error if that behavior is unwanted.
//
// [function literal]: https://go.dev/ref/spec#Function_literals
// [lexical closure]: https://en.wikipedia.org/wiki/Closure_(computer_programming)
// [Handling panics]: https://go.dev/ref/spec#Handling_panics
type TaskFunc[T any] = func(context.Context) (T, error)

// A CallFunc is the body of an [Async] step: a potentially slow call that
// runs on a worker while the step's home context stays responsive. The same
// thread-safety and panic caveats as [TaskFunc] apply.
type CallFunc[S, T any] = func(context.Context, S) (T, error)

// A LoopStepFunc is the body of an [OnLoop] step. It runs on the loop, so it
// may freely touch loop-confined state, and it must return promptly; every
// other loop continuation and timer waits while it runs.
type LoopStepFunc[S, T any] = func(*LoopContext, S) (T, error)

// A WorkerStepFunc is the body of an [OnWorker] step. It runs on one worker
// and may block or compute at length without affecting the loop. It runs
// concurrently with loop continuations and must not touch loop-confined
// state; to do that, capture the loop's token first and switch back with
// [ToToken], or place the work with [OnLoop].
type WorkerStepFunc[S, T any] = func(*WorkerContext, S) (T, error)
