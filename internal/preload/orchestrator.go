// Package preload fetches every (ticker, time view) pair a carousel needs
// before the carousel starts rotating.
package preload

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/irfndi/tickerwall/internal/logging"
	"github.com/irfndi/tickerwall/internal/models"
	"github.com/irfndi/tickerwall/internal/telemetry"
)

// DefaultPassTimeout bounds a pass when Options.PassTimeout is unset.
const DefaultPassTimeout = 5 * time.Minute

// Loader resolves one cache key into a display result.
type Loader interface {
	Result(ctx context.Context, key models.CacheKey) (models.SeriesResult, error)
}

// SlotSource is what the carousels read preloaded data from.
type SlotSource interface {
	Slots(ticker string) (*models.TickerSlotSet, bool)
	Percent() float64
	Ready() <-chan struct{}
}

// Options configures an Orchestrator.
type Options struct {
	PassTimeout time.Duration
	OnReady     func(*Pass)
	Logger      *logging.StandardLogger
}

// Orchestrator runs preload passes against a Loader.
type Orchestrator struct {
	loader Loader
	opts   Options
	logger *logging.StandardLogger
}

// NewOrchestrator creates a new preload orchestrator.
//
// Parameters:
//
//	loader: Source of series results, normally the series cache.
//	opts: Pass timeout, ready callback and logger.
//
// Returns:
//
//	*Orchestrator: Initialized orchestrator.
func NewOrchestrator(loader Loader, opts Options) *Orchestrator {
	if opts.PassTimeout <= 0 {
		opts.PassTimeout = DefaultPassTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewStandardLoggerFrom(telemetry.Logger())
	}
	return &Orchestrator{loader: loader, opts: opts, logger: logger}
}

// PreloadAll starts a pass over every (ticker, view) pair and returns
// immediately. All pairs are requested concurrently; the pass reports
// progress as they settle and signals Done once every pair has settled,
// whether with real data, a fallback, or an error.
//
// Parameters:
//
//	ctx: Parent context. Cancelling it abandons unsettled pairs.
//	tickers: Symbols to load. Normalised to trimmed upper case, deduplicated.
//	views: Time views per ticker. Reordered into canonical order.
//
// Returns:
//
//	*Pass: Handle for progress, readiness and results.
func (o *Orchestrator) PreloadAll(ctx context.Context, tickers []string, views []models.TimeView) *Pass {
	tickers = models.NormalizeTickers(tickers)
	views = models.CanonicalTimeViews(views)

	pass := newPass(uuid.NewString(), tickers, views, o.opts.OnReady, o.logger)
	if pass.total == 0 {
		pass.finish()
		return pass
	}

	ctx, cancel := context.WithTimeout(ctx, o.opts.PassTimeout)
	ctx, span := telemetry.Tracer("preload").Start(ctx, "preload.pass")
	span.SetAttributes(
		attribute.String("pass_id", pass.id),
		attribute.StringSlice("tickers", tickers),
		attribute.Int("pairs", pass.total),
	)
	pass.cancel = cancel
	pass.span = span

	pass.logger.WithPass(pass.id).Info("Preload pass started",
		"tickers", len(tickers),
		"views", len(views),
		"pairs", pass.total,
	)

	go func() {
		<-ctx.Done()
		pass.abandon(ctx.Err())
	}()

	for _, ticker := range tickers {
		for _, view := range views {
			key := models.NewCacheKey(ticker, view)
			go func() {
				res, err := o.loader.Result(ctx, key)
				pass.settle(key, res, err)
			}()
		}
	}
	return pass
}

// Pass is one preload run. It is safe for concurrent use.
type Pass struct {
	id      string
	tickers []string
	views   []models.TimeView
	total   int
	onReady func(*Pass)
	logger  *logging.StandardLogger
	cancel  context.CancelFunc
	span    trace.Span

	mu        sync.RWMutex
	completed int
	failed    int
	percent   float64
	sets      map[string]*models.TickerSlotSet
	progress  chan float64
	done      chan struct{}
	finished  bool
}

func newPass(id string, tickers []string, views []models.TimeView, onReady func(*Pass), logger *logging.StandardLogger) *Pass {
	total := len(tickers) * len(views)
	p := &Pass{
		id:       id,
		tickers:  tickers,
		views:    views,
		total:    total,
		onReady:  onReady,
		logger:   logger,
		sets:     make(map[string]*models.TickerSlotSet, len(tickers)),
		progress: make(chan float64, total+2),
		done:     make(chan struct{}),
	}
	for _, t := range tickers {
		p.sets[t] = models.NewTickerSlotSet(t, views)
	}
	p.progress <- 0
	return p
}

func (p *Pass) settle(key models.CacheKey, res models.SeriesResult, err error) {
	if err != nil {
		p.logger.WithPass(p.id).Debug("Preload pair abandoned", "key", key.String(), "error", err.Error())
	}

	p.mu.Lock()
	if p.finished {
		p.mu.Unlock()
		return
	}
	if err == nil {
		p.sets[key.Ticker].Fill(res)
	} else {
		p.failed++
	}
	p.completed++
	completed := p.completed
	if completed < p.total {
		p.percent = float64(completed) / float64(p.total) * 100
		p.progress <- p.percent
		percent := p.percent
		p.mu.Unlock()
		p.logger.LogPreloadProgress(p.id, completed, p.total, percent)
		return
	}
	p.mu.Unlock()
	p.finish()
}

// abandon settles every outstanding pair with err. Results arriving later
// are dropped.
func (p *Pass) abandon(err error) {
	p.mu.Lock()
	if p.finished {
		p.mu.Unlock()
		return
	}
	outstanding := p.total - p.completed
	p.failed += outstanding
	p.completed = p.total
	p.mu.Unlock()

	p.logger.WithPass(p.id).Warn("Preload pass deadline reached",
		"abandoned", outstanding,
		"error", err.Error(),
	)
	p.finish()
}

// finish emits the final 100, closes both channels and fires OnReady. It
// runs exactly once per pass.
func (p *Pass) finish() {
	p.mu.Lock()
	if p.finished {
		p.mu.Unlock()
		return
	}
	p.finished = true
	p.percent = 100
	p.progress <- 100
	close(p.progress)
	close(p.done)
	failed, completed := p.failed, p.completed
	p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
	}
	if p.span != nil {
		p.span.SetAttributes(attribute.Int("failed", failed))
		p.span.End()
	}
	p.logger.WithPass(p.id).Info("Preload pass complete",
		"completed", completed,
		"failed", failed,
		"complete_tickers", len(p.Results()),
	)
	if p.onReady != nil {
		p.onReady(p)
	}
}

// ID returns the pass identifier used in logs and traces.
func (p *Pass) ID() string { return p.id }

// Tickers returns the normalised tickers of the pass.
func (p *Pass) Tickers() []string { return append([]string(nil), p.tickers...) }

// Views returns the canonical views of the pass.
func (p *Pass) Views() []models.TimeView { return append([]models.TimeView(nil), p.views...) }

// Total returns the number of pairs in the pass.
func (p *Pass) Total() int { return p.total }

// Completed returns how many pairs have settled.
func (p *Pass) Completed() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.completed
}

// Progress delivers 0, then one value per settlement, then 100, and is
// closed afterwards. Values never decrease.
func (p *Pass) Progress() <-chan float64 { return p.progress }

// Percent returns the latest progress value.
func (p *Pass) Percent() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.percent
}

// Done is closed once every pair has settled.
func (p *Pass) Done() <-chan struct{} { return p.done }

// Ready is Done under the SlotSource name.
func (p *Pass) Ready() <-chan struct{} { return p.done }

// Wait blocks until the pass is done or ctx ends.
func (p *Pass) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Slots returns the slot set for ticker when every slot is filled.
func (p *Pass) Slots(ticker string) (*models.TickerSlotSet, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	set, ok := p.sets[ticker]
	if !ok || !set.Complete() {
		return nil, false
	}
	return set.Clone(), true
}

// Results returns every complete slot set in ticker order.
func (p *Pass) Results() []*models.TickerSlotSet {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*models.TickerSlotSet, 0, len(p.tickers))
	for _, t := range p.tickers {
		if set := p.sets[t]; set.Complete() {
			out = append(out, set.Clone())
		}
	}
	return out
}
