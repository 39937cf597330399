// Copyright (c) the Loom Authors. All rights reserved.
// Licensed under the MIT License.

package otloom_test

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/loomkit/loom/otloom"
)

func TestPropagateCallCapturesActiveSpan(t *testing.T) {
	chk := require.New(t)

	tp, err := otloom.NewTracerProvider(io.Discard)
	chk.NoError(err)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	call := otloom.TracedCall("measure", otloom.PropagateCall(
		func(ctx context.Context, in string) (int, error) {
			return len(in), nil
		}))
	res, err := call(context.Background(), "msft")
	chk.NoError(err)
	chk.Equal(4, res.UserResult)
	chk.True(res.TraceContext.IsValid(), "span context should survive the call returning")
}

func TestContinueTraceParentsNextSpan(t *testing.T) {
	chk := require.New(t)

	tp, err := otloom.NewTracerProvider(io.Discard)
	chk.NoError(err)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	task := otloom.TracedTask("produce", otloom.PropagateTask(
		func(context.Context) (string, error) {
			return "series", nil
		}))
	res, err := task(context.Background())
	chk.NoError(err)

	// A later step starts from a fresh context; ContinueTrace rejoins it to
	// the producing span's trace.
	ctx := otloom.ContinueTrace(context.Background(), res)
	chk.Equal(res.TraceContext.TraceID(), trace.SpanContextFromContext(ctx).TraceID())
}

func TestContinueTraceWithoutSpanLeavesContextAlone(t *testing.T) {
	chk := require.New(t)

	ctx := context.Background()
	out := otloom.ContinueTrace(ctx, otloom.PropagatedResult[int]{UserResult: 7})
	chk.Equal(ctx, out)
}
