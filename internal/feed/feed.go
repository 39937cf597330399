// Copyright (c) the Loom Authors. All rights reserved.
// Licensed under the MIT License.

// Package feed downloads and decodes quote data. Client implements
// stockwatch.Fetcher against an HTTP endpoint; SeriesParser implements
// stockwatch.Parser for CSV payloads.
package feed

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/loomkit/loom/stockwatch"
)

// Client fetches quote payloads from base with the stock key as the "s"
// query parameter. All failures wrap [stockwatch.ErrFetchFailed].
type Client struct {
	base string
	http *http.Client
}

func NewClient(base string) *Client {
	return &Client{base: base, http: http.DefaultClient}
}

// Fetch implements stockwatch.Fetcher.
func (c *Client) Fetch(ctx context.Context, key string) ([]byte, error) {
	sep := "?"
	if strings.Contains(c.base, "?") {
		sep = "&"
	}
	u := c.base + sep + "s=" + url.QueryEscape(key)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("get %q: %w: %w", u, stockwatch.ErrFetchFailed, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %q: %w: %w", u, stockwatch.ErrFetchFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get %q: http %d: %w", u, resp.StatusCode, stockwatch.ErrFetchFailed)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("get %q: reading body: %w: %w", u, stockwatch.ErrFetchFailed, err)
	}
	return data, nil
}

// SeriesParser decodes a CSV quote payload into a series of closing
// prices. If the first record is a header naming a "Close" column (any
// case), values come from that column; otherwise every record's last
// field is taken. At most n values are decoded, reading from the top of
// the payload. Failures wrap [stockwatch.ErrMalformedInput].
type SeriesParser struct {
	// Cost simulates the computational weight of decoding a real feed.
	// It is spent once per parse, honoring ctx.
	Cost time.Duration
}

// Parse implements stockwatch.Parser.
func (p *SeriesParser) Parse(ctx context.Context, data []byte, n int) ([]float64, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("empty payload: %w", stockwatch.ErrMalformedInput)
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	first, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reading csv: %w: %w", stockwatch.ErrMalformedInput, err)
	}
	col := len(first) - 1
	records := [][]string{first}
	if c := closeColumn(first); c >= 0 {
		col = c
		records = records[:0]
	}

	series := make([]float64, 0, n)
	for len(series) < n {
		var rec []string
		if len(records) > 0 {
			rec, records = records[0], records[1:]
		} else {
			rec, err = r.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, fmt.Errorf("reading csv: %w: %w", stockwatch.ErrMalformedInput, err)
			}
		}
		if col >= len(rec) {
			return nil, fmt.Errorf("record %d has no column %d: %w",
				len(series)+1, col, stockwatch.ErrMalformedInput)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[col]), 64)
		if err != nil {
			return nil, fmt.Errorf("record %d: %q: %w",
				len(series)+1, rec[col], stockwatch.ErrMalformedInput)
		}
		series = append(series, v)
	}

	if p.Cost > 0 {
		t := time.NewTimer(p.Cost)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	return series, nil
}

// closeColumn returns the index of the "Close" column of a header record,
// or -1 if the record does not look like a header naming one.
func closeColumn(rec []string) int {
	for i, f := range rec {
		if strings.EqualFold(strings.TrimSpace(f), "close") {
			return i
		}
	}
	return -1
}
