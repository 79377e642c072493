package models

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NormalizeTickers trims and upper-cases symbols, dropping blanks and
// duplicates while keeping first-seen order.
func NormalizeTickers(tickers []string) []string {
	caser := cases.Upper(language.English)
	seen := make(map[string]bool, len(tickers))
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		t = caser.String(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// TickerSet is a fixed set of normalised tickers.
type TickerSet map[string]struct{}

// NewTickerSet builds a set from any number of ticker lists.
func NewTickerSet(lists ...[]string) TickerSet {
	set := make(TickerSet)
	for _, list := range lists {
		for _, t := range NormalizeTickers(list) {
			set[t] = struct{}{}
		}
	}
	return set
}

// Contains reports whether ticker, once normalised, is in the set.
func (s TickerSet) Contains(ticker string) bool {
	n := NormalizeTickers([]string{ticker})
	if len(n) == 0 {
		return false
	}
	_, ok := s[n[0]]
	return ok
}
