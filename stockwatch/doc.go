// Copyright (c) the Loom Authors. All rights reserved.
// Licensed under the MIT License.

// Package stockwatch implements a quote-charting workflow on top of loom.
// A [Workflow] awaits stock selections, downloads and parses quote data off
// the loop, and renders the result back on it; every step's placement is
// validated when the workflow is constructed, not when it runs.
package stockwatch
