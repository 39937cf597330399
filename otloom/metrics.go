// Copyright (c) the Loom Authors. All rights reserved.
// Licensed under the MIT License.

package otloom

import (
	"context"
	"time"

	"github.com/loomkit/loom"
	"go.opentelemetry.io/otel"
)

// MetricsTask adds metrics collection to a spawned task.
// This wrapper records count, duration, and error metrics for task execution.
func MetricsTask[T any](
	metricName string,
	taskFunc loom.TaskFunc[T],
) loom.TaskFunc[T] {
	return func(ctx context.Context) (T, error) {
		startTime := time.Now()
		meter := otel.GetMeterProvider().Meter("otloom")

		// Create metrics
		taskCounter, _ := meter.Int64Counter(metricName + ".count")
		taskDuration, _ := meter.Float64Histogram(metricName + ".duration")

		// Track execution
		taskCounter.Add(ctx, 1)

		// Execute task
		result, err := taskFunc(ctx)

		// Record duration
		duration := time.Since(startTime).Seconds()
		taskDuration.Record(ctx, duration)

		// Record error if any
		if err != nil {
			errorCounter, _ := meter.Int64Counter(metricName + ".errors")
			errorCounter.Add(ctx, 1)
		}

		return result, err
	}
}

// MetricsCall adds metrics collection to an async call, in the same shape as
// [MetricsTask].
func MetricsCall[S, T any](
	metricName string,
	callFunc loom.CallFunc[S, T],
) loom.CallFunc[S, T] {
	return func(ctx context.Context, in S) (T, error) {
		startTime := time.Now()
		meter := otel.GetMeterProvider().Meter("otloom")

		// Create metrics
		callCounter, _ := meter.Int64Counter(metricName + ".count")
		callDuration, _ := meter.Float64Histogram(metricName + ".duration")

		// Track execution
		callCounter.Add(ctx, 1)

		// Execute call
		result, err := callFunc(ctx, in)

		// Record duration
		duration := time.Since(startTime).Seconds()
		callDuration.Record(ctx, duration)

		// Record error if any
		if err != nil {
			errorCounter, _ := meter.Int64Counter(metricName + ".errors")
			errorCounter.Add(ctx, 1)
		}

		return result, err
	}
}

// NewMetricsObserver returns an observer that counts runtime events through
// the global meter provider. Counts are recorded under the loom.flows,
// loom.steps, and loom.switches instruments.
func NewMetricsObserver() loom.Observer {
	meter := otel.GetMeterProvider().Meter("otloom")

	flowCounter, _ := meter.Int64Counter("loom.flows.count")
	flowErrors, _ := meter.Int64Counter("loom.flows.errors")
	stepCounter, _ := meter.Int64Counter("loom.steps.count")
	stepErrors, _ := meter.Int64Counter("loom.steps.errors")
	switchCounter, _ := meter.Int64Counter("loom.switches.count")

	ctx := context.Background()
	return loom.ObserverFunc(func(e loom.Event) {
		switch e.Kind {
		case loom.EventFlowStarted:
			flowCounter.Add(ctx, 1)
		case loom.EventStepFinished:
			stepCounter.Add(ctx, 1)
			if e.Err != nil {
				stepErrors.Add(ctx, 1)
			}
		case loom.EventSwitched:
			switchCounter.Add(ctx, 1)
		case loom.EventFlowFailed:
			flowErrors.Add(ctx, 1)
		}
	})
}
