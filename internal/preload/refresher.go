package preload

import (
	"context"
	"sync"
	"time"

	"github.com/irfndi/tickerwall/internal/logging"
	"github.com/irfndi/tickerwall/internal/models"
	"github.com/irfndi/tickerwall/internal/scheduler"
	"github.com/irfndi/tickerwall/internal/telemetry"
)

// RefresherConfig configures a Refresher.
type RefresherConfig struct {
	Tickers  []string
	Views    []models.TimeView
	Interval time.Duration
	Clock    scheduler.Clock
	Logger   *logging.StandardLogger
}

// Refresher keeps a carousel's slot sets current by running a pass at start
// and again every Interval. Displayed sets are only replaced once a new pass
// has settled, and a ticker whose new set is incomplete keeps its old one.
type Refresher struct {
	orch     *Orchestrator
	tickers  []string
	views    []models.TimeView
	interval time.Duration
	clock    scheduler.Clock
	logger   *logging.StandardLogger

	mu         sync.RWMutex
	ctx        context.Context
	cancel     context.CancelFunc
	running    bool
	generation uint64
	timer      scheduler.Timer
	current    *Pass
	first      *Pass
	sets       map[string]*models.TickerSlotSet
	passes     int
	lastPass   time.Time
	ready      chan struct{}
	readyOnce  sync.Once
}

// NewRefresher creates a refresher. It does nothing until Start.
func NewRefresher(orch *Orchestrator, cfg RefresherConfig) *Refresher {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPassTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewStandardLoggerFrom(telemetry.Logger())
	}
	return &Refresher{
		orch:     orch,
		tickers:  models.NormalizeTickers(cfg.Tickers),
		views:    models.CanonicalTimeViews(cfg.Views),
		interval: cfg.Interval,
		clock:    scheduler.OrSystem(cfg.Clock),
		logger:   logger,
		sets:     make(map[string]*models.TickerSlotSet),
		ready:    make(chan struct{}),
	}
}

// Start runs the first pass and schedules the following ones. Calling Start
// on a running refresher does nothing.
func (r *Refresher) Start(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.running = true
	r.generation++
	gen := r.generation
	r.mu.Unlock()

	r.runPass(gen)
}

// Stop cancels the in-flight pass and any scheduled one. It is idempotent.
func (r *Refresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return
	}
	r.running = false
	r.generation++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.cancel()
}

func (r *Refresher) runPass(gen uint64) {
	r.mu.Lock()
	if !r.running || gen != r.generation {
		r.mu.Unlock()
		return
	}
	ctx := r.ctx
	r.timer = nil
	r.mu.Unlock()

	pass := r.orch.PreloadAll(ctx, r.tickers, r.views)

	r.mu.Lock()
	r.current = pass
	if r.first == nil {
		r.first = pass
	}
	r.mu.Unlock()

	go r.awaitPass(gen, pass)
}

func (r *Refresher) awaitPass(gen uint64, pass *Pass) {
	<-pass.Done()

	r.mu.Lock()
	if !r.running || gen != r.generation {
		r.mu.Unlock()
		return
	}
	swapped, kept := 0, 0
	for _, ticker := range r.tickers {
		if set, ok := pass.Slots(ticker); ok {
			r.sets[ticker] = set
			swapped++
		} else if _, had := r.sets[ticker]; had {
			kept++
		}
	}
	r.passes++
	r.lastPass = r.clock.Now()
	r.timer = r.clock.AfterFunc(r.interval, func() { r.runPass(gen) })
	r.mu.Unlock()

	r.logger.WithPass(pass.ID()).Info("Slot sets refreshed",
		"swapped", swapped,
		"kept_previous", kept,
		"next_in", r.interval.String(),
	)
	r.readyOnce.Do(func() { close(r.ready) })
}

// Slots returns the latest complete slot set for ticker.
func (r *Refresher) Slots(ticker string) (*models.TickerSlotSet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set, ok := r.sets[ticker]
	if !ok {
		return nil, false
	}
	return set.Clone(), true
}

// Percent reports first-pass progress and stays at 100 afterwards.
func (r *Refresher) Percent() float64 {
	select {
	case <-r.ready:
		return 100
	default:
	}
	r.mu.RLock()
	first := r.first
	r.mu.RUnlock()
	if first == nil {
		return 0
	}
	return first.Percent()
}

// Progress returns the first pass's progress channel, or nil before Start.
func (r *Refresher) Progress() <-chan float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.first == nil {
		return nil
	}
	return r.first.Progress()
}

// Ready is closed once the first pass has settled.
func (r *Refresher) Ready() <-chan struct{} { return r.ready }

// Tickers returns the normalised tickers being refreshed.
func (r *Refresher) Tickers() []string { return append([]string(nil), r.tickers...) }

// Views returns the canonical views being refreshed.
func (r *Refresher) Views() []models.TimeView { return append([]models.TimeView(nil), r.views...) }

// Passes returns how many passes have settled.
func (r *Refresher) Passes() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.passes
}

// LastPass returns when the most recent pass settled.
func (r *Refresher) LastPass() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastPass
}

// Current returns the most recently started pass.
func (r *Refresher) Current() *Pass {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}
