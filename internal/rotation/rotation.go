// Package rotation implements the cyclic index with a fade-out and settle
// transition that drives every carousel level.
package rotation

import (
	"sync"
	"time"

	"github.com/irfndi/tickerwall/internal/scheduler"
)

const (
	DefaultPeriod  = 6 * time.Second
	DefaultFadeOut = 800 * time.Millisecond
	DefaultSettle  = 100 * time.Millisecond
)

// Phase is the transition phase of a rotation.
type Phase int

const (
	Idle Phase = iota
	FadingOut
	Settling
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case FadingOut:
		return "fading_out"
	case Settling:
		return "settling"
	default:
		return "unknown"
	}
}

// LapListener is notified when a rotation wraps back to index 0.
type LapListener interface {
	OnLapComplete()
}

// LapFunc adapts a function to LapListener.
type LapFunc func()

// OnLapComplete calls f.
func (f LapFunc) OnLapComplete() { f() }

// Config holds the rotation timings. Period zero means manual mode: the
// rotation only advances through Trigger.
type Config struct {
	Period  time.Duration
	FadeOut time.Duration
	Settle  time.Duration
}

// DefaultConfig returns the 6s / 800ms / 100ms timings.
func DefaultConfig() Config {
	return Config{Period: DefaultPeriod, FadeOut: DefaultFadeOut, Settle: DefaultSettle}
}

// State is a snapshot of a rotation.
type State struct {
	ActiveIndex     int    `json:"active_index"`
	Count           int    `json:"count"`
	IsTransitioning bool   `json:"is_transitioning"`
	Phase           Phase  `json:"-"`
	PhaseName       string `json:"phase"`
	LapKey          int64  `json:"lap_key"`
	Running         bool   `json:"running"`
}

// Option customises a Rotation.
type Option func(*Rotation)

// WithOnSwitch registers a callback receiving each new active index. It is
// called outside the rotation's lock, before any lap notification.
func WithOnSwitch(f func(index int)) Option {
	return func(r *Rotation) { r.onSwitch = f }
}

// Rotation cycles an index over count items. Each advance fades out, moves
// the index, then settles; ticks arriving mid-transition are ignored.
type Rotation struct {
	count    int
	cfg      Config
	clock    scheduler.Clock
	listener LapListener
	onSwitch func(int)

	mu         sync.Mutex
	index      int
	phase      Phase
	lapKey     int64
	running    bool
	generation uint64
	tick       scheduler.Timer
	transition scheduler.Timer
}

// New creates a stopped rotation. listener may be nil.
func New(count int, cfg Config, clock scheduler.Clock, listener LapListener, opts ...Option) *Rotation {
	if count < 1 {
		count = 1
	}
	if cfg.Period < 0 {
		cfg.Period = 0
	}
	if cfg.FadeOut < 0 {
		cfg.FadeOut = 0
	}
	if cfg.Settle < 0 {
		cfg.Settle = 0
	}
	r := &Rotation{
		count:    count,
		cfg:      cfg,
		clock:    scheduler.OrSystem(clock),
		listener: listener,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start arms the period timer. It is a no-op if already running.
func (r *Rotation) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	r.running = true
	r.generation++
	r.scheduleTickLocked()
}

// Stop cancels every pending timer. Callbacks already queued become no-ops.
func (r *Rotation) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return
	}
	r.running = false
	r.generation++
	if r.tick != nil {
		r.tick.Stop()
		r.tick = nil
	}
	if r.transition != nil {
		r.transition.Stop()
		r.transition = nil
	}
	r.phase = Idle
}

// Trigger starts a transition now. It returns false when the rotation is
// stopped or a transition is already in progress.
func (r *Rotation) Trigger() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.beginLocked()
}

// State returns a copy of the current state.
func (r *Rotation) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return State{
		ActiveIndex:     r.index,
		Count:           r.count,
		IsTransitioning: r.phase != Idle,
		Phase:           r.phase,
		PhaseName:       r.phase.String(),
		LapKey:          r.lapKey,
		Running:         r.running,
	}
}

func (r *Rotation) scheduleTickLocked() {
	if r.cfg.Period <= 0 {
		return
	}
	gen := r.generation
	r.tick = r.clock.AfterFunc(r.cfg.Period, func() { r.onTick(gen) })
}

func (r *Rotation) onTick(gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running || gen != r.generation {
		return
	}
	r.beginLocked()
	r.scheduleTickLocked()
}

func (r *Rotation) beginLocked() bool {
	if !r.running || r.phase != Idle {
		return false
	}
	r.phase = FadingOut
	gen := r.generation
	r.transition = r.clock.AfterFunc(r.cfg.FadeOut, func() { r.onFadedOut(gen) })
	return true
}

func (r *Rotation) onFadedOut(gen uint64) {
	r.mu.Lock()
	if !r.running || gen != r.generation || r.phase != FadingOut {
		r.mu.Unlock()
		return
	}
	next := (r.index + 1) % r.count
	r.index = next
	r.lapKey++
	r.phase = Settling
	r.transition = r.clock.AfterFunc(r.cfg.Settle, func() { r.onSettled(gen) })
	onSwitch, listener := r.onSwitch, r.listener
	r.mu.Unlock()

	if onSwitch != nil {
		onSwitch(next)
	}
	if next == 0 && listener != nil {
		listener.OnLapComplete()
	}
}

func (r *Rotation) onSettled(gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running || gen != r.generation || r.phase != Settling {
		return
	}
	r.phase = Idle
	r.transition = nil
}
