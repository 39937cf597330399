// Copyright (c) the Loom Authors. All rights reserved.
// Licensed under the MIT License.

package stockwatch

import (
	"context"

	"github.com/loomkit/loom"
)

// A Fetcher downloads the raw quote payload for a stock key. It runs on a
// worker via an async call; implementations should honor ctx so that a
// superseded cycle stops pulling bytes.
//
// Failures should wrap [ErrFetchFailed] so the workflow can tell a bad
// download from a bad payload.
type Fetcher interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
}

// A Parser turns a raw payload into at most n data points. It runs on a
// worker; implementations should honor ctx, since parsing is the cycle's
// long pole and a fresh selection cancels it mid-flight.
//
// Failures should wrap [ErrMalformedInput].
type Parser interface {
	Parse(ctx context.Context, data []byte, n int) ([]float64, error)
}

// A Renderer replaces the displayed chart with a new series. The
// [loom.LoopContext] argument is the proof that the call is happening on
// the loop; there is no way to invoke a Renderer from anywhere else.
type Renderer interface {
	Render(lc *loom.LoopContext, stock Stock, series []float64) error
}

// A StatusSink displays the one-line activity indicator. Like [Renderer],
// it is only callable on the loop.
type StatusSink interface {
	SetText(lc *loom.LoopContext, text string)
}
