package models

import (
	"fmt"
	"strings"
)

// TimeView is a named time range for a series.
type TimeView string

const (
	Intraday   TimeView = "1D"
	Weekly     TimeView = "1W"
	Monthly    TimeView = "1M"
	YearToDate TimeView = "YTD"
	MultiYear  TimeView = "5Y"
)

// canonicalTimeViews fixes slot order for every TickerSlotSet.
var canonicalTimeViews = []TimeView{Intraday, Weekly, Monthly, YearToDate, MultiYear}

// providerRanges maps each time view to the provider's (period, interval) pair.
var providerRanges = map[TimeView][2]string{
	Intraday:   {"1d", "5m"},
	Weekly:     {"5d", "1h"},
	Monthly:    {"1mo", "1d"},
	YearToDate: {"ytd", "1d"},
	MultiYear:  {"5y", "1wk"},
}

var timeViewLabels = map[TimeView]string{
	Intraday:   "1-Day",
	Weekly:     "1-Week",
	Monthly:    "1-Month",
	YearToDate: "YTD",
	MultiYear:  "5-Year",
}

// AllTimeViews returns every time view in canonical order.
func AllTimeViews() []TimeView {
	out := make([]TimeView, len(canonicalTimeViews))
	copy(out, canonicalTimeViews)
	return out
}

// Index returns the canonical position of the view, or -1 if unknown.
func (v TimeView) Index() int {
	for i, tv := range canonicalTimeViews {
		if tv == v {
			return i
		}
	}
	return -1
}

// Valid reports whether v is one of the known time views.
func (v TimeView) Valid() bool {
	return v.Index() >= 0
}

// ProviderRange returns the provider period and interval for the view.
// Unknown views map to the intraday range.
func (v TimeView) ProviderRange() (period, interval string) {
	r, ok := providerRanges[v]
	if !ok {
		r = providerRanges[Intraday]
	}
	return r[0], r[1]
}

// Label returns the display label used by chart titles.
func (v TimeView) Label() string {
	if l, ok := timeViewLabels[v]; ok {
		return l
	}
	return string(v)
}

func (v TimeView) String() string {
	return string(v)
}

// ParseTimeView accepts the short tag ("1D"), the display label ("1-Day")
// or the long name ("intraday"), case-insensitively.
func ParseTimeView(s string) (TimeView, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	switch norm {
	case "1d", "1-day", "intraday", "day":
		return Intraday, nil
	case "1w", "1-week", "weekly", "week":
		return Weekly, nil
	case "1m", "1-month", "monthly", "month":
		return Monthly, nil
	case "ytd", "year-to-date":
		return YearToDate, nil
	case "5y", "5-year", "multi-year", "multiyear":
		return MultiYear, nil
	}
	return "", fmt.Errorf("unknown time view %q", s)
}

// CanonicalTimeViews drops unknown and duplicate views and returns the rest
// in canonical order.
func CanonicalTimeViews(views []TimeView) []TimeView {
	seen := make(map[TimeView]bool, len(views))
	for _, v := range views {
		if v.Valid() {
			seen[v] = true
		}
	}
	out := make([]TimeView, 0, len(seen))
	for _, v := range canonicalTimeViews {
		if seen[v] {
			out = append(out, v)
		}
	}
	return out
}

// CacheKey uniquely identifies one fetch.
type CacheKey struct {
	Ticker   string   `json:"ticker"`
	TimeView TimeView `json:"time_view"`
}

// NewCacheKey builds a key for ticker and view.
func NewCacheKey(ticker string, view TimeView) CacheKey {
	return CacheKey{Ticker: ticker, TimeView: view}
}

func (k CacheKey) String() string {
	return k.Ticker + ":" + string(k.TimeView)
}
