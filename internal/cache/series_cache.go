package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"github.com/irfndi/tickerwall/internal/logging"
	"github.com/irfndi/tickerwall/internal/models"
	"github.com/irfndi/tickerwall/internal/provider"
	"github.com/irfndi/tickerwall/internal/scheduler"
	"github.com/irfndi/tickerwall/internal/telemetry"
)

const (
	DefaultTTL           = 5 * time.Minute
	DefaultFallbackRetry = time.Minute
	DefaultFetchTimeout  = 10 * time.Second
)

// ErrClearUnsupported is returned by Clear when the store cannot be cleared.
var ErrClearUnsupported = errors.New("cache store does not support clearing")

// CacheStats tracks cache performance metrics.
type CacheStats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Fetches   int64 `json:"fetches"`
	Fallbacks int64 `json:"fallbacks"`
	Coalesced int64 `json:"coalesced"`
}

// HitRate returns hits as a percentage of all lookups.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// Options configures a SeriesCache. Zero values take the package defaults.
type Options struct {
	TTL           time.Duration
	FallbackRetry time.Duration
	FetchTimeout  time.Duration
	Store         Store
	Clock         scheduler.Clock
	Fallback      *FallbackGenerator
	Logger        *logging.StandardLogger
}

// SeriesCache returns live series per (ticker, time view), fetching from the
// provider on a miss and substituting a synthetic series when that fails.
// Concurrent misses for one key share a single fetch.
type SeriesCache struct {
	fetcher       provider.Fetcher
	store         Store
	clock         scheduler.Clock
	fallback      *FallbackGenerator
	logger        *logging.StandardLogger
	ttl           time.Duration
	fallbackRetry time.Duration
	fetchTimeout  time.Duration

	group   singleflight.Group
	statsMu sync.Mutex
	stats   CacheStats
}

// NewSeriesCache creates a cache in front of fetcher.
func NewSeriesCache(fetcher provider.Fetcher, opts Options) *SeriesCache {
	clock := scheduler.OrSystem(opts.Clock)
	c := &SeriesCache{
		fetcher:       fetcher,
		store:         opts.Store,
		clock:         clock,
		fallback:      opts.Fallback,
		logger:        opts.Logger,
		ttl:           opts.TTL,
		fallbackRetry: opts.FallbackRetry,
		fetchTimeout:  opts.FetchTimeout,
	}
	if c.store == nil {
		c.store = NewMemoryStore()
	}
	if c.fallback == nil {
		c.fallback = NewFallbackGenerator(clock, 0)
	}
	if c.logger == nil {
		c.logger = logging.NewStandardLoggerFrom(telemetry.Logger())
	}
	if c.ttl <= 0 {
		c.ttl = DefaultTTL
	}
	if c.fallbackRetry <= 0 {
		c.fallbackRetry = DefaultFallbackRetry
	}
	if c.fetchTimeout <= 0 {
		c.fetchTimeout = DefaultFetchTimeout
	}
	return c
}

// TTL returns the freshness window.
func (c *SeriesCache) TTL() time.Duration {
	return c.ttl
}

// Get returns a live entry for key. It only fails when ctx ends before an
// entry is available; provider failures yield a fallback entry instead.
func (c *SeriesCache) Get(ctx context.Context, key models.CacheKey) (models.CacheEntry, error) {
	if err := ctx.Err(); err != nil {
		return models.CacheEntry{}, err
	}

	start := c.clock.Now()
	if entry, ok := c.loadLive(ctx, key); ok {
		c.record(func(s *CacheStats) { s.Hits++ })
		c.logger.LogCacheOperation("get", key.String(), true, c.clock.Now().Sub(start))
		return entry, nil
	}
	c.record(func(s *CacheStats) { s.Misses++ })

	ch := c.group.DoChan(key.String(), func() (interface{}, error) {
		return c.refresh(key), nil
	})

	select {
	case <-ctx.Done():
		return models.CacheEntry{}, ctx.Err()
	case res := <-ch:
		if res.Shared {
			c.record(func(s *CacheStats) { s.Coalesced++ })
		}
		entry := res.Val.(models.CacheEntry)
		c.logger.LogCacheOperation("get", key.String(), false, c.clock.Now().Sub(start))
		return entry.Clone(), nil
	}
}

// Result returns the display values derived from the entry for key.
func (c *SeriesCache) Result(ctx context.Context, key models.CacheKey) (models.SeriesResult, error) {
	entry, err := c.Get(ctx, key)
	if err != nil {
		return models.SeriesResult{}, err
	}
	return models.NewSeriesResult(key, entry), nil
}

func (c *SeriesCache) loadLive(ctx context.Context, key models.CacheKey) (models.CacheEntry, bool) {
	entry, ok, err := c.store.Load(ctx, key)
	if err != nil {
		c.logger.WithError(err).Warn("Cache load failed, treating as miss", "key", key.String())
		return models.CacheEntry{}, false
	}
	if !ok || !entry.Live(c.clock.Now(), c.ttl) {
		return models.CacheEntry{}, false
	}
	return entry, true
}

// refresh runs once per in-flight key on a context detached from every
// caller, so a cancelled caller never aborts a fetch others wait on.
func (c *SeriesCache) refresh(key models.CacheKey) models.CacheEntry {
	ctx, cancel := context.WithTimeout(context.Background(), c.fetchTimeout)
	defer cancel()

	// Another flight may have stored a live entry since the caller's lookup.
	if entry, ok := c.loadLive(ctx, key); ok {
		return entry
	}

	ctx, span := telemetry.Tracer("cache").Start(ctx, "cache.fetch")
	defer span.End()
	span.SetAttributes(
		attribute.String("ticker", key.Ticker),
		attribute.String("time_view", key.TimeView.String()),
	)

	c.record(func(s *CacheStats) { s.Fetches++ })
	entry, err := c.fetch(ctx, key)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider fetch failed")
		c.logger.WithError(err).Warn("Provider fetch failed, using fallback series",
			"ticker", key.Ticker,
			"time_view", key.TimeView.String(),
		)
		entry = c.fallbackEntry(key)
		c.record(func(s *CacheStats) { s.Fallbacks++ })
	}
	span.SetAttributes(attribute.Bool("fallback", entry.IsFallback))

	if err := c.store.Save(ctx, key, entry); err != nil {
		c.logger.WithError(err).Warn("Cache save failed", "key", key.String())
	}
	return entry
}

func (c *SeriesCache) fetch(ctx context.Context, key models.CacheKey) (models.CacheEntry, error) {
	if !key.TimeView.Valid() {
		return models.CacheEntry{}, fmt.Errorf("unknown time view %q", key.TimeView)
	}
	period, interval := key.TimeView.ProviderRange()
	resp, err := c.fetcher.FetchSeries(ctx, key.Ticker, period, interval)
	if err != nil {
		return models.CacheEntry{}, err
	}
	if resp == nil || len(resp.Series) == 0 {
		return models.CacheEntry{}, fmt.Errorf("%w: empty series", provider.ErrMalformedPayload)
	}
	return models.CacheEntry{
		Series:      resp.Series,
		FetchedAt:   c.clock.Now(),
		CompanyName: resp.CompanyName,
	}, nil
}

// fallbackEntry backdates FetchedAt so the entry goes stale after
// fallbackRetry and the provider is retried soon.
func (c *SeriesCache) fallbackEntry(key models.CacheKey) models.CacheEntry {
	backdate := c.ttl - c.fallbackRetry
	if backdate < 0 {
		backdate = 0
	}
	return models.CacheEntry{
		Series:     c.fallback.Generate(key.TimeView),
		FetchedAt:  c.clock.Now().Add(-backdate),
		IsFallback: true,
	}
}

func (c *SeriesCache) record(update func(*CacheStats)) {
	c.statsMu.Lock()
	update(&c.stats)
	c.statsMu.Unlock()
}

// GetStats returns current cache statistics
func (c *SeriesCache) GetStats() CacheStats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.stats
}

// LogStats logs current cache performance statistics
func (c *SeriesCache) LogStats() {
	stats := c.GetStats()
	c.logger.Logger().Info("Series cache stats",
		"hits", stats.Hits,
		"misses", stats.Misses,
		"fetches", stats.Fetches,
		"fallbacks", stats.Fallbacks,
		"coalesced", stats.Coalesced,
		"hit_rate", fmt.Sprintf("%.2f%%", stats.HitRate()),
	)
}

// Clear drops every stored entry. Statistics are kept.
func (c *SeriesCache) Clear(ctx context.Context) (int, error) {
	clearer, ok := c.store.(Clearer)
	if !ok {
		return 0, ErrClearUnsupported
	}
	n, err := clearer.Clear(ctx)
	if err != nil {
		return 0, err
	}
	c.logger.WithComponent("series_cache").Info("Series cache cleared", "entries", n)
	return n, nil
}

// StartPeriodicReporting logs the cache statistics every interval until ctx
// is done.
func (c *SeriesCache) StartPeriodicReporting(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	var mu sync.Mutex
	var timer scheduler.Timer
	var tick func()
	tick = func() {
		if ctx.Err() != nil {
			return
		}
		c.LogStats()
		mu.Lock()
		timer = c.clock.AfterFunc(interval, tick)
		mu.Unlock()
	}

	mu.Lock()
	timer = c.clock.AfterFunc(interval, tick)
	mu.Unlock()

	go func() {
		<-ctx.Done()
		mu.Lock()
		timer.Stop()
		mu.Unlock()
	}()
}
