// Copyright (c) the Loom Authors. All rights reserved.
// Licensed under the MIT License.

package tui

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/loomkit/loom/stockwatch"
)

// picker is the symbol-search modal: type to filter the catalog, enter to
// select. Matching is subsequence-based with a Levenshtein tie-break so that
// near-misses still rank close.
type picker struct {
	stocks []stockwatch.Stock
	query  string
	cursor int
	ranked []stockwatch.Stock
}

func newPicker(stocks []stockwatch.Stock) *picker {
	p := &picker{stocks: stocks}
	p.rerank()
	return p
}

func (p *picker) Type(r rune) {
	p.query += string(r)
	p.rerank()
}

func (p *picker) Backspace() {
	if p.query == "" {
		return
	}
	p.query = p.query[:len(p.query)-1]
	p.rerank()
}

func (p *picker) CursorUp() {
	if p.cursor > 0 {
		p.cursor--
	}
}

func (p *picker) CursorDown() {
	if p.cursor < len(p.ranked)-1 {
		p.cursor++
	}
}

// Current returns the stock under the cursor, if any row matches the query.
func (p *picker) Current() (stockwatch.Stock, bool) {
	if len(p.ranked) == 0 {
		return stockwatch.Stock{}, false
	}
	return p.ranked[p.cursor], true
}

func (p *picker) rerank() {
	q := strings.TrimSpace(p.query)
	if q == "" {
		// Nothing to rank against; show the catalog in its configured order.
		p.ranked = append(p.ranked[:0], p.stocks...)
		p.clampCursor()
		return
	}
	type scored struct {
		stock stockwatch.Stock
		score int
		dist  int
	}
	items := make([]scored, 0, len(p.stocks))
	for _, s := range p.stocks {
		matched, score := matchStock(s, q)
		if !matched {
			continue
		}
		dist := levenshtein.ComputeDistance(strings.ToLower(q), strings.ToLower(s.Name))
		items = append(items, scored{stock: s, score: score, dist: dist})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].score != items[j].score {
			return items[i].score > items[j].score
		}
		if items[i].dist != items[j].dist {
			return items[i].dist < items[j].dist
		}
		return items[i].stock.Name < items[j].stock.Name
	})

	p.ranked = p.ranked[:0]
	for _, it := range items {
		p.ranked = append(p.ranked, it.stock)
	}
	p.clampCursor()
}

func (p *picker) clampCursor() {
	if p.cursor >= len(p.ranked) {
		p.cursor = len(p.ranked) - 1
	}
	if p.cursor < 0 {
		p.cursor = 0
	}
}

// matchStock scores a stock against the query, taking the better of the name
// and ticker-key matches.
func matchStock(s stockwatch.Stock, query string) (bool, int) {
	nameOK, nameScore := fuzzyMatchScore(s.Name, query)
	keyOK, keyScore := fuzzyMatchScore(s.Key, query)
	switch {
	case nameOK && keyOK:
		if keyScore > nameScore {
			return true, keyScore
		}
		return true, nameScore
	case nameOK:
		return true, nameScore
	case keyOK:
		return true, keyScore
	default:
		return false, 0
	}
}

// fuzzyMatchScore reports whether query is a subsequence of label, with
// bonuses for prefix and adjacent matches.
func fuzzyMatchScore(label, query string) (bool, int) {
	if query == "" {
		return true, 0
	}
	labelLower := strings.ToLower(label)
	queryLower := strings.ToLower(query)

	matchIdx := make([]int, 0, len(queryLower))
	searchFrom := 0
	for i := 0; i < len(queryLower); i++ {
		ch := queryLower[i]
		found := false
		for j := searchFrom; j < len(labelLower); j++ {
			if labelLower[j] == ch {
				matchIdx = append(matchIdx, j)
				searchFrom = j + 1
				found = true
				break
			}
		}
		if !found {
			return false, 0
		}
	}

	score := len(queryLower)
	if len(matchIdx) > 0 && matchIdx[0] == 0 {
		score += 10
	}
	for i := 1; i < len(matchIdx); i++ {
		if matchIdx[i] == matchIdx[i-1]+1 {
			score += 3
		}
	}
	if strings.EqualFold(strings.TrimSpace(label), strings.TrimSpace(query)) {
		score += 20
	}
	return true, score
}
