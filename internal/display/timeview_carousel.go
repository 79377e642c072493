package display

import (
	"github.com/irfndi/tickerwall/internal/models"
	"github.com/irfndi/tickerwall/internal/rotation"
	"github.com/irfndi/tickerwall/internal/scheduler"
)

// TimeViewSnapshot is the rendered state of one ticker's time-view carousel.
type TimeViewSnapshot struct {
	Ticker          string               `json:"ticker"`
	Armed           bool                 `json:"armed"`
	ActiveIndex     int                  `json:"active_index"`
	ActiveView      models.TimeView      `json:"active_view,omitempty"`
	ActiveLabel     string               `json:"active_label,omitempty"`
	IsTransitioning bool                 `json:"is_transitioning"`
	LapKey          int64                `json:"lap_key"`
	Current         *models.SeriesResult `json:"current,omitempty"`
}

// TimeViewCarousel rotates through the time views of a single ticker. It
// only arms when every slot of its set is filled.
type TimeViewCarousel struct {
	ticker string
	set    *models.TickerSlotSet
	rot    *rotation.Rotation
}

// NewTimeViewCarousel builds a carousel over set. A nil or incomplete set
// yields a carousel that never rotates. listener may be nil.
func NewTimeViewCarousel(ticker string, set *models.TickerSlotSet, cfg rotation.Config, clock scheduler.Clock, listener rotation.LapListener, onView func(models.TimeView)) *TimeViewCarousel {
	c := &TimeViewCarousel{ticker: ticker}
	if !set.Complete() {
		return c
	}
	c.set = set.Clone()

	var opts []rotation.Option
	if onView != nil {
		views := c.set.Views
		opts = append(opts, rotation.WithOnSwitch(func(i int) { onView(views[i]) }))
	}
	c.rot = rotation.New(c.set.Len(), cfg, clock, listener, opts...)
	return c
}

// Start begins rotating. It does nothing for an unarmed carousel.
func (c *TimeViewCarousel) Start() {
	if c.rot != nil {
		c.rot.Start()
	}
}

// Stop halts rotation and cancels pending timers.
func (c *TimeViewCarousel) Stop() {
	if c.rot != nil {
		c.rot.Stop()
	}
}

// Armed reports whether the carousel has a complete set to rotate through.
func (c *TimeViewCarousel) Armed() bool {
	return c.rot != nil
}

// Ticker returns the carousel's ticker.
func (c *TimeViewCarousel) Ticker() string {
	return c.ticker
}

// Snapshot returns the current state.
func (c *TimeViewCarousel) Snapshot() TimeViewSnapshot {
	snap := TimeViewSnapshot{Ticker: c.ticker}
	if c.rot == nil {
		return snap
	}
	state := c.rot.State()
	snap.Armed = true
	snap.ActiveIndex = state.ActiveIndex
	snap.IsTransitioning = state.IsTransitioning
	snap.LapKey = state.LapKey
	if res, ok := c.set.At(state.ActiveIndex); ok {
		snap.Current = &res
		snap.ActiveView = res.TimeView
		snap.ActiveLabel = res.TimeView.Label()
	}
	return snap
}
