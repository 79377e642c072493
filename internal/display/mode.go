package display

import (
	"context"
	"sync"
	"time"

	"github.com/irfndi/tickerwall/internal/logging"
	"github.com/irfndi/tickerwall/internal/models"
	"github.com/irfndi/tickerwall/internal/preload"
	"github.com/irfndi/tickerwall/internal/rotation"
	"github.com/irfndi/tickerwall/internal/scheduler"
	"github.com/irfndi/tickerwall/internal/telemetry"
)

// DefaultTimedModeDuration is how long a fixed-duration mode stays on screen.
const DefaultTimedModeDuration = 30 * time.Second

// Mode is one top-level screen of the display. Mount starts it and
// registers done, which the mode notifies when it has finished a full
// cycle. Unmount must cancel every timer the mode owns.
type Mode interface {
	Name() string
	Mount(done rotation.LapListener)
	Unmount()
	Snapshot() any
}

// emptyMode is implemented by modes that can end up with nothing to show.
// ModeCycle leaves such modes out, since they would never complete.
type emptyMode interface {
	Empty() bool
}

// Content is what a TimedMode shows while mounted.
type Content interface {
	Mount()
	Unmount()
	Snapshot() any
}

// CarouselModeConfig configures a CarouselMode.
type CarouselModeConfig struct {
	Name            string
	Tickers         []string
	Views           []models.TimeView
	TimeViews       rotation.Config
	TickerPeriod    time.Duration
	RefreshInterval time.Duration
	Clock           scheduler.Clock
	Logger          *logging.StandardLogger
}

// CarouselModeSnapshot is the rendered state of a CarouselMode.
type CarouselModeSnapshot struct {
	Name    string          `json:"name"`
	Mounted bool            `json:"mounted"`
	Ticker  *TickerSnapshot `json:"ticker,omitempty"`
}

// CarouselMode is a lap-based mode: a ticker carousel fed by a background
// refresher. It completes each time the ticker carousel wraps around.
type CarouselMode struct {
	cfg  CarouselModeConfig
	orch *preload.Orchestrator

	mu        sync.Mutex
	cancel    context.CancelFunc
	refresher *preload.Refresher
	carousel  *TickerCarousel
}

// NewCarouselMode creates an unmounted carousel mode.
func NewCarouselMode(cfg CarouselModeConfig, orch *preload.Orchestrator) *CarouselMode {
	cfg.Tickers = models.NormalizeTickers(cfg.Tickers)
	cfg.Views = models.CanonicalTimeViews(cfg.Views)
	if len(cfg.Views) == 0 {
		cfg.Views = models.AllTimeViews()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewStandardLoggerFrom(telemetry.Logger())
	}
	return &CarouselMode{cfg: cfg, orch: orch}
}

// Name returns the mode name.
func (m *CarouselMode) Name() string { return m.cfg.Name }

// Empty reports whether the mode has no tickers to rotate.
func (m *CarouselMode) Empty() bool { return len(m.cfg.Tickers) == 0 }

// Mount starts a refresher and a ticker carousel that reports laps to done.
func (m *CarouselMode) Mount(done rotation.LapListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.carousel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.refresher = preload.NewRefresher(m.orch, preload.RefresherConfig{
		Tickers:  m.cfg.Tickers,
		Views:    m.cfg.Views,
		Interval: m.cfg.RefreshInterval,
		Clock:    m.cfg.Clock,
		Logger:   m.cfg.Logger,
	})
	m.carousel = NewTickerCarousel(TickerCarouselConfig{
		Tickers:      m.cfg.Tickers,
		TimeViews:    m.cfg.TimeViews,
		TickerPeriod: m.cfg.TickerPeriod,
		Views:        len(m.cfg.Views),
		Clock:        m.cfg.Clock,
		Logger:       m.cfg.Logger,
	}, m.refresher, done)

	m.refresher.Start(ctx)
	m.carousel.Mount()
}

// Unmount tears down the carousel and the refresher.
func (m *CarouselMode) Unmount() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.carousel == nil {
		return
	}
	m.carousel.Unmount()
	m.refresher.Stop()
	m.cancel()
	m.carousel = nil
	m.refresher = nil
	m.cancel = nil
}

// Carousel returns the mounted ticker carousel, or nil.
func (m *CarouselMode) Carousel() *TickerCarousel {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.carousel
}

// Snapshot returns a CarouselModeSnapshot.
func (m *CarouselMode) Snapshot() any {
	m.mu.Lock()
	carousel := m.carousel
	m.mu.Unlock()

	snap := CarouselModeSnapshot{Name: m.cfg.Name}
	if carousel != nil {
		ts := carousel.Snapshot()
		snap.Mounted = true
		snap.Ticker = &ts
	}
	return snap
}

// TimedModeSnapshot is the rendered state of a TimedMode.
type TimedModeSnapshot struct {
	Name      string  `json:"name"`
	Mounted   bool    `json:"mounted"`
	Remaining float64 `json:"remaining_seconds"`
	Content   any     `json:"content,omitempty"`
}

// TimedMode completes after a flat duration regardless of its content.
type TimedMode struct {
	name     string
	duration time.Duration
	clock    scheduler.Clock
	content  Content

	mu         sync.Mutex
	mounted    bool
	generation uint64
	timer      scheduler.Timer
	deadline   time.Time
}

// NewTimedMode creates an unmounted fixed-duration mode. content may be nil.
func NewTimedMode(name string, duration time.Duration, clock scheduler.Clock, content Content) *TimedMode {
	if duration <= 0 {
		duration = DefaultTimedModeDuration
	}
	return &TimedMode{
		name:     name,
		duration: duration,
		clock:    scheduler.OrSystem(clock),
		content:  content,
	}
}

// Name returns the mode name.
func (m *TimedMode) Name() string { return m.name }

// Mount mounts the content and arms the completion timer.
func (m *TimedMode) Mount(done rotation.LapListener) {
	m.mu.Lock()
	if m.mounted {
		m.mu.Unlock()
		return
	}
	m.mounted = true
	m.generation++
	gen := m.generation
	m.deadline = m.clock.Now().Add(m.duration)
	m.timer = m.clock.AfterFunc(m.duration, func() { m.fire(gen, done) })
	m.mu.Unlock()

	if m.content != nil {
		m.content.Mount()
	}
}

func (m *TimedMode) fire(gen uint64, done rotation.LapListener) {
	m.mu.Lock()
	current := m.mounted && gen == m.generation
	m.timer = nil
	m.mu.Unlock()
	if current && done != nil {
		done.OnLapComplete()
	}
}

// Unmount cancels the timer and unmounts the content.
func (m *TimedMode) Unmount() {
	m.mu.Lock()
	if !m.mounted {
		m.mu.Unlock()
		return
	}
	m.mounted = false
	m.generation++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.mu.Unlock()

	if m.content != nil {
		m.content.Unmount()
	}
}

// Snapshot returns a TimedModeSnapshot.
func (m *TimedMode) Snapshot() any {
	m.mu.Lock()
	snap := TimedModeSnapshot{Name: m.name, Mounted: m.mounted}
	if m.mounted {
		if remaining := m.deadline.Sub(m.clock.Now()); remaining > 0 {
			snap.Remaining = remaining.Seconds()
		}
	}
	m.mu.Unlock()

	if m.content != nil {
		snap.Content = m.content.Snapshot()
	}
	return snap
}
