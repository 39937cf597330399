// Copyright (c) the Loom Authors. All rights reserved.
// Licensed under the MIT License.

// Package otloom provides zap and OpenTelemetry integration for the loom
// scheduler. It offers wrappers that add logging, tracing, and metrics to
// async calls and spawned tasks, plus runtime observers that publish loom's
// lifecycle events.
package otloom

import (
	"context"
	"time"

	"github.com/loomkit/loom"
	"go.uber.org/zap"
)

// LoggedTask adds structured logging to a spawned task.
// This wrapper logs the start and completion of task execution, including
// timing information and any errors that occur.
func LoggedTask[T any](
	operationName string,
	taskFunc loom.TaskFunc[T],
) loom.TaskFunc[T] {
	return func(ctx context.Context) (T, error) {
		// Get logger from context or use a default
		// This implementation uses zap, but could be adapted for any logger
		logger := zap.L()

		logger.Debug("Starting task",
			zap.String("operation", operationName),
			zap.String("component", "otloom"))

		startTime := time.Now()
		result, err := taskFunc(ctx)
		duration := time.Since(startTime)

		if err != nil {
			logger.Error("Task failed",
				zap.String("operation", operationName),
				zap.String("component", "otloom"),
				zap.Duration("duration", duration),
				zap.Error(err))
		} else {
			logger.Debug("Task completed",
				zap.String("operation", operationName),
				zap.String("component", "otloom"),
				zap.Duration("duration", duration))
		}

		return result, err
	}
}

// LoggedCall adds structured logging to an async call, in the same shape as
// [LoggedTask].
func LoggedCall[S, T any](
	operationName string,
	callFunc loom.CallFunc[S, T],
) loom.CallFunc[S, T] {
	return func(ctx context.Context, in S) (T, error) {
		logger := zap.L()

		logger.Debug("Starting call",
			zap.String("operation", operationName),
			zap.String("component", "otloom"))

		startTime := time.Now()
		result, err := callFunc(ctx, in)
		duration := time.Since(startTime)

		if err != nil {
			logger.Error("Call failed",
				zap.String("operation", operationName),
				zap.String("component", "otloom"),
				zap.Duration("duration", duration),
				zap.Error(err))
		} else {
			logger.Debug("Call completed",
				zap.String("operation", operationName),
				zap.String("component", "otloom"),
				zap.Duration("duration", duration))
		}

		return result, err
	}
}

// NewZapObserver returns an observer that logs every runtime event to
// logger. Failures log at error level, everything else at debug.
func NewZapObserver(logger *zap.Logger) loom.Observer {
	return loom.ObserverFunc(func(e loom.Event) {
		fields := make([]zap.Field, 0, 8)
		fields = append(fields,
			zap.String("flow", e.Flow),
			zap.String("component", "otloom"))
		if e.Step != "" {
			fields = append(fields,
				zap.String("step", e.Step),
				zap.Int("index", e.Index))
		}

		switch e.Kind {
		case loom.EventFlowStarted:
			logger.Debug("Starting flow", fields...)
		case loom.EventStepStarted:
			logger.Debug("Starting step", fields...)
		case loom.EventStepFinished:
			if e.Err != nil {
				logger.Error("Step failed", append(fields, zap.Error(e.Err))...)
			} else {
				logger.Debug("Step completed", fields...)
			}
		case loom.EventSwitched:
			logger.Debug("Switching context", append(fields,
				zap.Stringer("affinity", e.Affinity),
				zap.Stringer("token", e.Token))...)
		case loom.EventFlowFinished:
			logger.Debug("Flow completed", fields...)
		case loom.EventFlowFailed:
			logger.Error("Flow failed", append(fields, zap.Error(e.Err))...)
		}
	})
}
