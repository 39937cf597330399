// Copyright (c) the Loom Authors. All rights reserved.
// Licensed under the MIT License.

package otloom

import (
	"github.com/loomkit/loom"
)

// InstrumentedTask combines tracing, metrics, and logging for tasks into a single wrapper.
// This provides a convenient way to apply all instrumentation at once.
func InstrumentedTask[T any](
	operationName string,
	taskFunc loom.TaskFunc[T],
) loom.TaskFunc[T] {
	// Apply wrappers inside-out:
	// 1. First add logging
	loggedTask := LoggedTask(operationName, taskFunc)

	// 2. Then add metrics
	metricsTask := MetricsTask(operationName, loggedTask)

	// 3. Finally add tracing
	return TracedTask(operationName, metricsTask)
}

// InstrumentedCall combines tracing, metrics, and logging for async calls into
// a single wrapper. This provides a convenient way to apply all
// instrumentation at once.
func InstrumentedCall[S, T any](
	operationName string,
	callFunc loom.CallFunc[S, T],
) loom.CallFunc[S, T] {
	// Apply wrappers inside-out:
	// 1. First add logging
	loggedCall := LoggedCall(operationName, callFunc)

	// 2. Then add metrics
	metricsCall := MetricsCall(operationName, loggedCall)

	// 3. Finally add tracing
	return TracedCall(operationName, metricsCall)
}
