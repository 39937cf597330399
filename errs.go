// Copyright (c) the Loom Authors. All rights reserved.
// Licensed under the MIT License.

package loom

type constError string

func (e constError) Error() string {
	return string(e)
}

// ErrContextUnavailable is returned when a continuation targets a loop or
// worker context that has been shut down. It is the only operational failure
// the engine itself produces; once raised for a computation, that computation
// cannot make further progress.
const ErrContextUnavailable = constError("execution context unavailable")

// ErrAlreadyConsumed is returned by [Handle.Wait] and [Join] when a handle's
// result has already been claimed. A handle delivers its result exactly once.
const ErrAlreadyConsumed = constError("handle result already consumed")

// ErrTokenMismatch is returned when a [ToToken] switch resolves to a token
// whose affinity differs from the one declared when the flow was built.
const ErrTokenMismatch = constError("token affinity does not match declaration")
