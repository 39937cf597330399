// Copyright (c) the Loom Authors. All rights reserved.
// Licensed under the MIT License.

package loom

import (
	"fmt"

	"github.com/google/uuid"
)

// Affinity classifies the execution contexts managed by a [Runtime]. Flow
// combinators use it to track where each step will run, and [Build] uses it to
// reject steps whose placement requirements cannot be met.
type Affinity int

const (
	// NoAffinity means no context has been established yet. A flow rooted at
	// [Start] begins here; it must switch to a concrete context before any
	// context-bound step.
	NoAffinity Affinity = iota

	// AffinityLoop identifies the single cooperative run loop. All
	// continuations scheduled there execute one at a time in submission
	// order.
	AffinityLoop

	// AffinityWorker identifies the worker pool. Workers are interchangeable
	// for placement purposes but individually addressable through their
	// tokens.
	AffinityWorker
)

func (a Affinity) String() string {
	switch a {
	case NoAffinity:
		return "none"
	case AffinityLoop:
		return "loop"
	case AffinityWorker:
		return "worker"
	default:
		return fmt.Sprintf("affinity(%d)", int(a))
	}
}

// A Token identifies one specific execution context for the lifetime of its
// [Runtime]. Tokens are comparable: two tokens are equal exactly when they
// denote the same context. The zero Token denotes no context.
//
// A step obtains the token of the context it is running on from its
// [LoopContext] or [WorkerContext] argument. Passing that token to [ToToken]
// in a later position of the same flow resumes execution on the original
// context, even when other steps ran elsewhere in between. Tokens remain
// valid until the runtime shuts down, after which switches targeting them
// fail with [ErrContextUnavailable].
type Token struct {
	affinity Affinity
	id       uuid.UUID
	home     poster
}

// poster is the scheduling face a context exposes to its token. Continuations
// are delivered with a host describing the context they ended up on.
type poster interface {
	postHosted(fn func(host)) error
}

func newToken(affinity Affinity, home poster) Token {
	return Token{affinity: affinity, id: uuid.New(), home: home}
}

// Affinity reports the kind of context the token denotes.
func (t Token) Affinity() Affinity {
	return t.affinity
}

// IsZero reports whether the token denotes no context.
func (t Token) IsZero() bool {
	return t.home == nil
}

func (t Token) String() string {
	if t.IsZero() {
		return "token(none)"
	}
	return fmt.Sprintf("token(%s/%s)", t.affinity, shortID(t.id))
}

func shortID(id uuid.UUID) string {
	s := id.String()
	return s[:8]
}
