// Copyright (c) the Loom Authors. All rights reserved.
// Licensed under the MIT License.

package loom_test

import (
	"context"
	"fmt"
	"time"

	// Superfluous alias needed to work around
	// https://github.com/golang/go/issues/12794
	loom "github.com/loomkit/loom"
)

// "Hello world" example that spawns a couple of tasks on the worker pool and
// waits for their results.
//
//nolint:errcheck
func Example_hello() {
	ctx := context.Background()
	rt := loom.New(ctx, loom.WithWorkers(2))
	go rt.Run()
	defer rt.Close()

	// Binds a string to a task function that returns the string after a
	// short delay.
	newTask := func(s string) loom.TaskFunc[string] {
		return func(context.Context) (string, error) {
			time.Sleep(1 * time.Millisecond)
			return s, nil
		}
	}

	first := loom.Spawn(rt, newTask("Hello"))
	second := loom.Spawn(rt, newTask("world!"))

	a, _ := first.Wait(ctx)
	b, _ := second.Wait(ctx)
	fmt.Println(a, b)
	// Output:
	// Hello world!
}
