package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SeriesPoint is one labelled value of a price series.
type SeriesPoint struct {
	Label string  `json:"name"`
	Value float64 `json:"value"`
}

// CacheEntry is a stored series for one CacheKey. Series is never empty and
// is never mutated after the entry is stored.
type CacheEntry struct {
	Series      []SeriesPoint `json:"series"`
	FetchedAt   time.Time     `json:"fetched_at"`
	IsFallback  bool          `json:"is_fallback"`
	CompanyName string        `json:"company_name"`
}

// Clone returns a copy that shares no backing array with e.
func (e CacheEntry) Clone() CacheEntry {
	series := make([]SeriesPoint, len(e.Series))
	copy(series, e.Series)
	e.Series = series
	return e
}

// Live reports whether the entry is still fresh at now for the given ttl.
func (e CacheEntry) Live(now time.Time, ttl time.Duration) bool {
	return len(e.Series) > 0 && now.Sub(e.FetchedAt) < ttl
}

// SeriesResult is derived from a CacheEntry on every read.
type SeriesResult struct {
	Ticker        string        `json:"ticker"`
	TimeView      TimeView      `json:"time_view"`
	Series        []SeriesPoint `json:"data"`
	LatestPrice   float64       `json:"latest_price"`
	PctChange     float64       `json:"pct_change"`
	CompanyName   string        `json:"company_name"`
	IsFallback    bool          `json:"is_fallback"`
	MovingAverage []float64     `json:"moving_average,omitempty"`
}

// NewSeriesResult derives the display values for key from entry.
func NewSeriesResult(key CacheKey, entry CacheEntry) SeriesResult {
	res := SeriesResult{
		Ticker:      key.Ticker,
		TimeView:    key.TimeView,
		Series:      entry.Series,
		CompanyName: entry.CompanyName,
		IsFallback:  entry.IsFallback,
	}
	if res.CompanyName == "" {
		res.CompanyName = key.Ticker
	}
	if len(entry.Series) == 0 {
		return res
	}

	first := decimal.NewFromFloat(entry.Series[0].Value)
	last := decimal.NewFromFloat(entry.Series[len(entry.Series)-1].Value)
	res.LatestPrice = last.InexactFloat64()
	if !first.IsZero() {
		res.PctChange = last.Sub(first).Div(first).Mul(decimal.NewFromInt(100)).InexactFloat64()
	}
	res.MovingAverage = MovingAverage(entry.Series)
	return res
}

// TickerSlotSet holds one SeriesResult per requested time view, indexed by
// canonical view order. A nil slot has not been filled yet.
type TickerSlotSet struct {
	Ticker string          `json:"ticker"`
	Views  []TimeView      `json:"views"`
	Slots  []*SeriesResult `json:"slots"`
}

// NewTickerSlotSet returns an empty slot set for ticker over views.
// Views are expected in canonical order.
func NewTickerSlotSet(ticker string, views []TimeView) *TickerSlotSet {
	v := make([]TimeView, len(views))
	copy(v, views)
	return &TickerSlotSet{
		Ticker: ticker,
		Views:  v,
		Slots:  make([]*SeriesResult, len(views)),
	}
}

// Fill stores res in the slot for its time view. It returns false if the
// view is not part of the set.
func (s *TickerSlotSet) Fill(res SeriesResult) bool {
	for i, v := range s.Views {
		if v == res.TimeView {
			r := res
			s.Slots[i] = &r
			return true
		}
	}
	return false
}

// Complete reports whether every slot is filled.
func (s *TickerSlotSet) Complete() bool {
	if s == nil || len(s.Slots) == 0 {
		return false
	}
	for _, slot := range s.Slots {
		if slot == nil {
			return false
		}
	}
	return true
}

// Len returns the number of slots.
func (s *TickerSlotSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Slots)
}

// At returns the result in slot i.
func (s *TickerSlotSet) At(i int) (SeriesResult, bool) {
	if s == nil || i < 0 || i >= len(s.Slots) || s.Slots[i] == nil {
		return SeriesResult{}, false
	}
	return *s.Slots[i], true
}

// Clone returns a copy whose slots can be read without holding any lock.
func (s *TickerSlotSet) Clone() *TickerSlotSet {
	if s == nil {
		return nil
	}
	out := NewTickerSlotSet(s.Ticker, s.Views)
	for i, slot := range s.Slots {
		if slot != nil {
			r := *slot
			out.Slots[i] = &r
		}
	}
	return out
}
