// Copyright (c) the Loom Authors. All rights reserved.
// Licensed under the MIT License.

package loom_test

import (
	"context"
	"errors"
	"testing"

	"github.com/loomkit/loom"
	"github.com/stretchr/testify/require"
)

func TestBuildAcceptsWellFormedFlow(t *testing.T) {
	chk := require.New(t)

	f0 := loom.Start(1)
	f1 := loom.ToLoop(f0)
	f2 := loom.OnLoop(f1, "double", func(_ *loom.LoopContext, v int) (int, error) {
		return v * 2, nil
	})
	f3 := loom.ToWorker(f2)
	f4 := loom.OnWorker(f3, "add", func(_ *loom.WorkerContext, v int) (int, error) {
		return v + 1, nil
	})
	prog, err := loom.Build(loom.Named(f4, "arith"))
	chk.NoError(err)
	chk.Equal("arith", prog.Name())
}

func TestBuildRejectsLoopStepWithoutLoopContext(t *testing.T) {
	chk := require.New(t)

	// Start establishes no execution context, so a loop-bound step
	// cannot be the first thing that runs.
	f := loom.OnLoop(loom.Start(0), "orphan", func(_ *loom.LoopContext, v int) (int, error) {
		return v, nil
	})
	_, err := loom.Build(f)
	chk.Error(err)

	var ae *loom.AffinityError
	chk.ErrorAs(err, &ae)
	chk.Equal("orphan", ae.Step)
	chk.Equal(0, ae.Index)
	chk.Equal(loom.AffinityLoop, ae.Need)
	chk.Equal(loom.NoAffinity, ae.Have)
}

func TestBuildRejectsWorkerStepAfterLoopSwitch(t *testing.T) {
	chk := require.New(t)

	f0 := loom.ToLoop(loom.Start("x"))
	f1 := loom.OnWorker(f0, "parse", func(_ *loom.WorkerContext, s string) (string, error) {
		return s, nil
	})
	_, err := loom.Build(f1)

	var ae *loom.AffinityError
	chk.ErrorAs(err, &ae)
	chk.Equal(loom.AffinityWorker, ae.Need)
	chk.Equal(loom.AffinityLoop, ae.Have)
	chk.Equal(1, ae.Index)
}

func TestBuildRejectsLoopStepAfterWorkerSwitch(t *testing.T) {
	chk := require.New(t)

	f0 := loom.ToWorker(loom.Start(0))
	f1 := loom.OnLoop(f0, "render", func(_ *loom.LoopContext, v int) (int, error) {
		return v, nil
	})
	_, err := loom.Build(f1)

	var ae *loom.AffinityError
	chk.ErrorAs(err, &ae)
	chk.Equal(loom.AffinityLoop, ae.Need)
	chk.Equal(loom.AffinityWorker, ae.Have)
}

func TestBuildRejectsAsyncBeforeAnySwitch(t *testing.T) {
	chk := require.New(t)

	f := loom.Async(loom.Start(0), "fetch", func(context.Context, int) (int, error) {
		return 0, nil
	})
	_, err := loom.Build(f)
	chk.Error(err)
	chk.ErrorContains(err, "async call requires an established context to resume on")

	var ae *loom.AffinityError
	chk.False(errors.As(err, &ae), "async placement is not an affinity mismatch")
}

func TestBuildReportsFirstErrorOnly(t *testing.T) {
	chk := require.New(t)

	// Two violations in one chain: the earlier one wins and later
	// combinators leave it untouched.
	f0 := loom.OnLoop(loom.Start(0), "first", func(_ *loom.LoopContext, v int) (int, error) {
		return v, nil
	})
	f1 := loom.OnWorker(f0, "second", func(_ *loom.WorkerContext, v int) (int, error) {
		return v, nil
	})
	_, err := loom.Build(f1)

	var ae *loom.AffinityError
	chk.ErrorAs(err, &ae)
	chk.Equal("first", ae.Step)
	chk.Equal(0, ae.Index)
}

func TestBuildErrorNamesFlow(t *testing.T) {
	chk := require.New(t)

	f := loom.Named(loom.Start(0), "quotes")
	g := loom.OnLoop(f, "render", func(_ *loom.LoopContext, v int) (int, error) {
		return v, nil
	})
	_, err := loom.Build(g)
	chk.ErrorContains(err, `flow "quotes"`)
}

func TestFlowValuesAreIndependent(t *testing.T) {
	chk := require.New(t)

	// Extending a flow must not mutate the value it extends, so one
	// prefix can fan out into several programs.
	base := loom.ToLoop(loom.Start(10))
	left := loom.OnLoop(base, "inc", func(_ *loom.LoopContext, v int) (int, error) {
		return v + 1, nil
	})
	right := loom.OnLoop(base, "dec", func(_ *loom.LoopContext, v int) (int, error) {
		return v - 1, nil
	})

	pl, err := loom.Build(left)
	chk.NoError(err)
	pr, err := loom.Build(right)
	chk.NoError(err)
	chk.NotEqual(pl, pr)

	// The broken branch stays broken without contaminating base.
	broken := loom.OnWorker(base, "bad", func(_ *loom.WorkerContext, v int) (int, error) {
		return v, nil
	})
	_, err = loom.Build(broken)
	chk.Error(err)
	_, err = loom.Build(loom.ToWorker(base))
	chk.NoError(err)
}

func TestZeroFlowPanics(t *testing.T) {
	chk := require.New(t)

	var f loom.Flow[int]
	chk.PanicsWithValue("flow must be rooted at Start or From", func() {
		loom.ToLoop(f)
	})
}

func TestNilStepFuncPanics(t *testing.T) {
	chk := require.New(t)

	f := loom.ToLoop(loom.Start(0))
	chk.PanicsWithValue("step function must be non-nil", func() {
		loom.OnLoop[int, int](f, "nil", nil)
	})
	chk.PanicsWithValue("call function must be non-nil", func() {
		loom.Async[int, int](f, "nil", nil)
	})
}

func TestToTokenRequiresConcreteAffinity(t *testing.T) {
	chk := require.New(t)

	f := loom.ToLoop(loom.Start(0))
	chk.PanicsWithValue("switch target affinity must be loop or worker", func() {
		loom.ToToken(f, loom.NoAffinity, func(int) loom.Token { return loom.Token{} })
	})
	chk.PanicsWithValue("pick function must be non-nil", func() {
		loom.ToToken[int](f, loom.AffinityLoop, nil)
	})
}
