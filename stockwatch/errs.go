// Copyright (c) the Loom Authors. All rights reserved.
// Licensed under the MIT License.

package stockwatch

import "github.com/loomkit/loom/internal/cerr"

// ErrFetchFailed marks a cycle whose download did not produce usable bytes.
const ErrFetchFailed = cerr.Error("stock data fetch failed")

// ErrMalformedInput marks a cycle whose payload could not be parsed.
const ErrMalformedInput = cerr.Error("malformed stock data")

// ErrInsufficientData marks a cycle that parsed fewer than two points,
// too few to draw a line.
const ErrInsufficientData = cerr.Error("insufficient data points")
