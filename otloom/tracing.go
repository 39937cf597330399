// Copyright (c) the Loom Authors. All rights reserved.
// Licensed under the MIT License.

package otloom

import (
	"context"
	"io"

	"github.com/loomkit/loom"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/trace"
)

// TracedTask adds distributed tracing to a spawned task.
// This wrapper creates an OpenTelemetry span around task execution, enabling
// distributed tracing across async boundaries. The span context is passed to
// the wrapped function so that any work it performs is recorded as a child of
// the task's span.
func TracedTask[T any](
	operationName string,
	taskFunc loom.TaskFunc[T],
) loom.TaskFunc[T] {
	return func(ctx context.Context) (T, error) {
		tracer := otel.Tracer("otloom")
		ctx, span := tracer.Start(ctx, operationName)
		defer span.End()

		return taskFunc(ctx)
	}
}

// TracedCall adds distributed tracing to an async call, in the same shape as
// [TracedTask].
func TracedCall[S, T any](
	operationName string,
	callFunc loom.CallFunc[S, T],
) loom.CallFunc[S, T] {
	return func(ctx context.Context, in S) (T, error) {
		tracer := otel.Tracer("otloom")
		ctx, span := tracer.Start(ctx, operationName)
		defer span.End()

		return callFunc(ctx, in)
	}
}

// NewTracerProvider builds a tracer provider that writes pretty-printed spans
// to w, installs it as the global provider, and returns it so the caller can
// arrange shutdown. Pass [io.Discard] to trace into the void.
func NewTracerProvider(w io.Writer) (*trace.TracerProvider, error) {
	exporter, err := stdouttrace.New(
		stdouttrace.WithWriter(w),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return nil, err
	}
	tp := trace.NewTracerProvider(
		trace.WithSampler(trace.AlwaysSample()),
		trace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tp)
	return tp, nil
}
