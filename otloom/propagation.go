// Copyright (c) the Loom Authors. All rights reserved.
// Licensed under the MIT License.

package otloom

import (
	"context"

	"github.com/loomkit/loom"
	"go.opentelemetry.io/otel/trace"
)

// PropagatedResult wraps a user result with trace context information for
// propagation. Every step of a flow runs with its own engine-derived context,
// so a span started inside one step is not automatically the parent of spans
// started in the next; carrying the span context in the value restores that
// chain across switches.
type PropagatedResult[T any] struct {
	// UserResult is the original result returned by the user function
	UserResult T
	// TraceContext is the trace context to propagate
	TraceContext trace.SpanContext
}

// PropagateTask wraps a TaskFunc to ensure trace context flows through task
// results. The returned task function will extract any existing trace context
// from the incoming context and attach it to the result for propagation.
// Compose it inside [TracedTask] so the task's span is on ctx by the time it
// is captured.
func PropagateTask[T any](
	taskFunc loom.TaskFunc[T],
) loom.TaskFunc[PropagatedResult[T]] {
	return func(ctx context.Context) (PropagatedResult[T], error) {
		// Extract any existing trace context from incoming context
		existingTraceCtx := trace.SpanFromContext(ctx).SpanContext()

		// Execute original task
		result, err := taskFunc(ctx)

		// Wrap result with trace context
		return PropagatedResult[T]{
			UserResult:   result,
			TraceContext: existingTraceCtx,
		}, err
	}
}

// PropagateCall wraps an async call in the same shape as [PropagateTask], so
// the steps that resume after the call can parent their spans to it.
func PropagateCall[S, T any](
	callFunc loom.CallFunc[S, T],
) loom.CallFunc[S, PropagatedResult[T]] {
	return func(ctx context.Context, in S) (PropagatedResult[T], error) {
		// Extract any existing trace context from incoming context
		existingTraceCtx := trace.SpanFromContext(ctx).SpanContext()

		// Execute original call
		result, err := callFunc(ctx, in)

		// Wrap result with trace context
		return PropagatedResult[T]{
			UserResult:   result,
			TraceContext: existingTraceCtx,
		}, err
	}
}

// ContinueTrace returns a context whose spans are parented to the propagated
// trace context. An invalid (zero) trace context leaves ctx unchanged, so the
// call is safe whether or not tracing is installed.
func ContinueTrace[T any](ctx context.Context, r PropagatedResult[T]) context.Context {
	if r.TraceContext.IsValid() {
		return trace.ContextWithRemoteSpanContext(ctx, r.TraceContext)
	}
	return ctx
}
