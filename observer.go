// Copyright (c) the Loom Authors. All rights reserved.
// Licensed under the MIT License.

package loom

import "time"

// EventKind enumerates the lifecycle transitions reported to an [Observer].
type EventKind int

const (
	// EventFlowStarted is emitted once when a program run begins.
	EventFlowStarted EventKind = iota
	// EventStepStarted is emitted before a step function runs.
	EventStepStarted
	// EventStepFinished is emitted after a step function returns, with Err
	// carrying its error if any.
	EventStepFinished
	// EventSwitched is emitted when a run moves to another context, with
	// Affinity naming the target and Token set for targeted switches.
	EventSwitched
	// EventFlowFinished is emitted once when a run completes successfully.
	EventFlowFinished
	// EventFlowFailed is emitted once when a run completes with an error.
	EventFlowFailed
)

func (k EventKind) String() string {
	switch k {
	case EventFlowStarted:
		return "flow started"
	case EventStepStarted:
		return "step started"
	case EventStepFinished:
		return "step finished"
	case EventSwitched:
		return "switched"
	case EventFlowFinished:
		return "flow finished"
	case EventFlowFailed:
		return "flow failed"
	default:
		return "unknown"
	}
}

// An Event describes one lifecycle transition of one program run. Field
// applicability varies by kind; unset fields hold zero values.
type Event struct {
	Kind     EventKind
	Flow     string
	Step     string
	Index    int
	Affinity Affinity
	Token    Token
	Err      error
	Time     time.Time
}

// An Observer receives every [Event] from every run on a [Runtime]. Observe
// is called synchronously from loop and worker continuations; implementations
// must be thread-safe and must not block.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to the [Observer] interface.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) {
	f(e)
}

type nopObserver struct{}

func (nopObserver) Observe(Event) {}
