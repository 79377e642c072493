// Package display composes rotations into the on-screen carousels and the
// top-level mode cycle.
package display

import (
	"sync"
	"time"

	"github.com/irfndi/tickerwall/internal/logging"
	"github.com/irfndi/tickerwall/internal/models"
	"github.com/irfndi/tickerwall/internal/preload"
	"github.com/irfndi/tickerwall/internal/rotation"
	"github.com/irfndi/tickerwall/internal/scheduler"
	"github.com/irfndi/tickerwall/internal/telemetry"
)

// TickerCarouselConfig configures a TickerCarousel.
type TickerCarouselConfig struct {
	Tickers []string
	// TimeViews is the inner carousel timing.
	TimeViews rotation.Config
	// TickerPeriod is the outer period; zero derives it from the
	// time-view period and the number of views.
	TickerPeriod time.Duration
	Views        int
	Clock        scheduler.Clock
	Logger       *logging.StandardLogger
	// OnTimeViewChange receives the active time view of the mounted
	// ticker each time it changes.
	OnTimeViewChange func(ticker string, view models.TimeView)
}

// TickerSnapshot is the rendered state of the outer carousel.
type TickerSnapshot struct {
	Loading         bool              `json:"loading"`
	Progress        float64           `json:"progress"`
	Tickers         []string          `json:"tickers"`
	ActiveIndex     int               `json:"active_index"`
	ActiveTicker    string            `json:"active_ticker,omitempty"`
	IsTransitioning bool              `json:"is_transitioning"`
	LapKey          int64             `json:"lap_key"`
	CurrentView     models.TimeView   `json:"current_view,omitempty"`
	TimeView        *TimeViewSnapshot `json:"time_view,omitempty"`
}

// TickerCarousel rotates through tickers once its slot source is ready,
// mounting a fresh TimeViewCarousel for each ticker it shows.
type TickerCarousel struct {
	cfg    TickerCarouselConfig
	source preload.SlotSource
	parent rotation.LapListener
	clock  scheduler.Clock
	logger *logging.StandardLogger

	mu          sync.Mutex
	mounted     bool
	generation  uint64
	stopWait    chan struct{}
	armed       chan struct{}
	outer       *rotation.Rotation
	inner       *TimeViewCarousel
	currentView models.TimeView
}

// NewTickerCarousel creates an unmounted carousel. parent is notified each
// time the carousel wraps back to its first ticker and may be nil.
func NewTickerCarousel(cfg TickerCarouselConfig, source preload.SlotSource, parent rotation.LapListener) *TickerCarousel {
	cfg.Tickers = models.NormalizeTickers(cfg.Tickers)
	if cfg.TimeViews.Period <= 0 {
		cfg.TimeViews.Period = rotation.DefaultPeriod
	}
	if cfg.Views <= 0 {
		cfg.Views = len(models.AllTimeViews())
	}
	if cfg.TickerPeriod <= 0 {
		cfg.TickerPeriod = cfg.TimeViews.Period * time.Duration(cfg.Views)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewStandardLoggerFrom(telemetry.Logger())
	}
	return &TickerCarousel{
		cfg:    cfg,
		source: source,
		parent: parent,
		clock:  scheduler.OrSystem(cfg.Clock),
		logger: logger,
		armed:  make(chan struct{}),
	}
}

// Mount waits for the source to become ready, then arms the rotation.
func (c *TickerCarousel) Mount() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mounted {
		return
	}
	c.mounted = true
	c.generation++
	c.stopWait = make(chan struct{})
	c.armed = make(chan struct{})
	go c.waitReady(c.generation, c.stopWait, c.armed)
}

// Unmount stops the wait, the outer rotation and the mounted inner carousel.
func (c *TickerCarousel) Unmount() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.mounted {
		return
	}
	c.mounted = false
	c.generation++
	close(c.stopWait)
	if c.outer != nil {
		c.outer.Stop()
		c.outer = nil
	}
	if c.inner != nil {
		c.inner.Stop()
		c.inner = nil
	}
	c.currentView = ""
}

// Armed is closed once the outer rotation of the current mount is running.
func (c *TickerCarousel) Armed() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.armed
}

func (c *TickerCarousel) waitReady(gen uint64, stop <-chan struct{}, armed chan struct{}) {
	select {
	case <-c.source.Ready():
	case <-stop:
		return
	}

	c.mu.Lock()
	if !c.mounted || gen != c.generation {
		c.mu.Unlock()
		return
	}
	if len(c.cfg.Tickers) == 0 {
		c.mu.Unlock()
		c.logger.WithComponent("ticker_carousel").Warn("No tickers to rotate")
		return
	}

	outerCfg := rotation.Config{
		Period:  c.cfg.TickerPeriod,
		FadeOut: c.cfg.TimeViews.FadeOut,
		Settle:  c.cfg.TimeViews.Settle,
	}
	c.outer = rotation.New(len(c.cfg.Tickers), outerCfg, c.clock,
		rotation.LapFunc(func() { c.onLap(gen) }),
		rotation.WithOnSwitch(func(i int) { c.onTickerSwitch(gen, i) }),
	)
	c.outer.Start()
	notify := c.mountInnerLocked(0)
	c.mu.Unlock()

	notify()
	close(armed)
}

func (c *TickerCarousel) onTickerSwitch(gen uint64, index int) {
	c.mu.Lock()
	if !c.mounted || gen != c.generation {
		c.mu.Unlock()
		return
	}
	if c.inner != nil {
		c.inner.Stop()
	}
	notify := c.mountInnerLocked(index)
	state := c.outer.State()
	c.mu.Unlock()

	c.logger.LogRotationEvent("ticker", index, state.LapKey, index == 0)
	notify()
}

func (c *TickerCarousel) onLap(gen uint64) {
	c.mu.Lock()
	current := c.mounted && gen == c.generation
	c.mu.Unlock()
	if current && c.parent != nil {
		c.parent.OnLapComplete()
	}
}

// mountInnerLocked builds the inner carousel from the source's current
// slots, so a refreshed pass shows up at the next ticker switch. The
// returned func reports the initial time view and must run unlocked.
func (c *TickerCarousel) mountInnerLocked(index int) func() {
	ticker := c.cfg.Tickers[index]
	set, _ := c.source.Slots(ticker)

	var inner *TimeViewCarousel
	inner = NewTimeViewCarousel(ticker, set, c.cfg.TimeViews, c.clock, nil, func(view models.TimeView) {
		c.onTimeView(inner, view)
	})
	c.inner = inner
	c.currentView = ""
	if inner.Armed() {
		c.currentView = set.Views[0]
	}
	inner.Start()

	if !inner.Armed() {
		c.logger.WithTicker(ticker).Warn("Slot set incomplete, time views will not rotate")
	}

	hook, view := c.cfg.OnTimeViewChange, c.currentView
	return func() {
		if hook != nil && view != "" {
			hook(ticker, view)
		}
	}
}

func (c *TickerCarousel) onTimeView(inner *TimeViewCarousel, view models.TimeView) {
	c.mu.Lock()
	if c.inner != inner {
		c.mu.Unlock()
		return
	}
	c.currentView = view
	hook := c.cfg.OnTimeViewChange
	c.mu.Unlock()

	if hook != nil {
		hook(inner.Ticker(), view)
	}
}

// Inner returns the mounted time-view carousel, or nil.
func (c *TickerCarousel) Inner() *TimeViewCarousel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inner
}

// Snapshot returns the current state. Until the source is ready it only
// reports loading progress.
func (c *TickerCarousel) Snapshot() TickerSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := TickerSnapshot{Tickers: append([]string(nil), c.cfg.Tickers...)}
	if c.outer == nil {
		snap.Loading = true
		snap.Progress = c.source.Percent()
		return snap
	}

	state := c.outer.State()
	snap.Progress = 100
	snap.ActiveIndex = state.ActiveIndex
	snap.ActiveTicker = c.cfg.Tickers[state.ActiveIndex]
	snap.IsTransitioning = state.IsTransitioning
	snap.LapKey = state.LapKey
	snap.CurrentView = c.currentView
	if c.inner != nil {
		inner := c.inner.Snapshot()
		snap.TimeView = &inner
	}
	return snap
}
