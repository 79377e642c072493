package preload

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/tickerwall/internal/cache"
	"github.com/irfndi/tickerwall/internal/logging"
	"github.com/irfndi/tickerwall/internal/models"
	"github.com/irfndi/tickerwall/internal/provider"
	"github.com/irfndi/tickerwall/internal/scheduler"
)

type loaderFunc func(ctx context.Context, key models.CacheKey) (models.SeriesResult, error)

func (f loaderFunc) Result(ctx context.Context, key models.CacheKey) (models.SeriesResult, error) {
	return f(ctx, key)
}

func instantLoader(price float64) loaderFunc {
	return func(ctx context.Context, key models.CacheKey) (models.SeriesResult, error) {
		return models.SeriesResult{Ticker: key.Ticker, TimeView: key.TimeView, LatestPrice: price}, nil
	}
}

func quietLogger() *logging.StandardLogger {
	return logging.NewStandardLoggerWithWriter(&bytes.Buffer{}, "error", "test")
}

func drain(t *testing.T, ch <-chan float64) []float64 {
	t.Helper()
	var values []float64
	timeout := time.After(2 * time.Second)
	for {
		select {
		case v, ok := <-ch:
			if !ok {
				return values
			}
			values = append(values, v)
		case <-timeout:
			t.Fatal("progress channel was not closed")
		}
	}
}

func waitDone(t *testing.T, pass *Pass) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, pass.Wait(ctx))
}

func TestPreloadAll_ProgressIsMonotonicFromZeroToHundred(t *testing.T) {
	var readyCalls atomic.Int32
	orch := NewOrchestrator(instantLoader(1), Options{
		Logger:  quietLogger(),
		OnReady: func(*Pass) { readyCalls.Add(1) },
	})

	pass := orch.PreloadAll(context.Background(), []string{"AAPL", "MSFT", "NVDA"}, models.AllTimeViews())
	values := drain(t, pass.Progress())
	waitDone(t, pass)

	require.Len(t, values, 1+15)
	assert.Equal(t, 0.0, values[0])
	assert.Equal(t, 100.0, values[len(values)-1])
	for i := 1; i < len(values); i++ {
		assert.GreaterOrEqual(t, values[i], values[i-1])
	}

	assert.Equal(t, 15, pass.Completed())
	assert.Equal(t, 100.0, pass.Percent())
	assert.Equal(t, int32(1), readyCalls.Load())
	assert.Len(t, pass.Results(), 3)
	assert.NotEmpty(t, pass.ID())
}

func TestPreloadAll_ReadyOnlyAfterEverySettlement(t *testing.T) {
	gate := make(chan struct{})
	var started atomic.Int32
	loader := loaderFunc(func(ctx context.Context, key models.CacheKey) (models.SeriesResult, error) {
		started.Add(1)
		<-gate
		return models.SeriesResult{Ticker: key.Ticker, TimeView: key.TimeView}, nil
	})
	orch := NewOrchestrator(loader, Options{Logger: quietLogger()})

	pass := orch.PreloadAll(context.Background(), []string{"AAPL", "MSFT"}, []models.TimeView{models.Intraday, models.Weekly})
	require.Eventually(t, func() bool { return started.Load() == 4 }, time.Second, time.Millisecond)

	select {
	case <-pass.Done():
		t.Fatal("pass done before any pair settled")
	default:
	}
	assert.Equal(t, 0.0, pass.Percent())
	_, ok := pass.Slots("AAPL")
	assert.False(t, ok)

	close(gate)
	waitDone(t, pass)
	assert.Equal(t, 4, pass.Completed())
}

func TestPreloadAll_SlotOrderIsCanonicalUnderReorderedLatency(t *testing.T) {
	views := models.AllTimeViews()
	gates := make(map[models.TimeView]chan struct{}, len(views))
	for _, v := range views {
		gates[v] = make(chan struct{})
	}
	var mu sync.Mutex
	var arrival []models.TimeView
	loader := loaderFunc(func(ctx context.Context, key models.CacheKey) (models.SeriesResult, error) {
		<-gates[key.TimeView]
		mu.Lock()
		arrival = append(arrival, key.TimeView)
		mu.Unlock()
		return models.SeriesResult{Ticker: key.Ticker, TimeView: key.TimeView}, nil
	})
	orch := NewOrchestrator(loader, Options{Logger: quietLogger()})

	// Request out of order; release multi-year first and intraday last.
	pass := orch.PreloadAll(context.Background(), []string{"AAPL"},
		[]models.TimeView{models.YearToDate, models.Intraday, models.MultiYear, models.Weekly, models.Monthly})
	for i := len(views) - 1; i >= 0; i-- {
		close(gates[views[i]])
		v := views[i]
		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(arrival) > 0 && arrival[len(arrival)-1] == v
		}, time.Second, time.Millisecond)
	}
	waitDone(t, pass)

	assert.Equal(t, models.MultiYear, arrival[0])
	assert.Equal(t, models.Intraday, arrival[len(arrival)-1])

	set, ok := pass.Slots("AAPL")
	require.True(t, ok)
	assert.Equal(t, views, set.Views)
	for i, v := range views {
		res, ok := set.At(i)
		require.True(t, ok)
		assert.Equal(t, v, res.TimeView)
	}
}

func TestPreloadAll_AlwaysFailingProviderFillsFallbackSlots(t *testing.T) {
	var calls atomic.Int64
	fetcher := provider.FetcherFunc(func(ctx context.Context, ticker, period, interval string) (*provider.SeriesResponse, error) {
		calls.Add(1)
		return nil, errors.New("provider unreachable")
	})
	clock := scheduler.NewManualClock(time.Date(2026, time.October, 19, 15, 0, 0, 0, time.UTC))
	seriesCache := cache.NewSeriesCache(fetcher, cache.Options{Clock: clock, Logger: quietLogger()})
	orch := NewOrchestrator(seriesCache, Options{Logger: quietLogger()})

	pass := orch.PreloadAll(context.Background(), []string{"AAPL", "MSFT"}, models.AllTimeViews())
	values := drain(t, pass.Progress())
	waitDone(t, pass)

	assert.Equal(t, 100.0, values[len(values)-1])
	assert.Equal(t, int64(10), calls.Load())
	assert.Equal(t, int64(10), seriesCache.GetStats().Fallbacks)

	set, ok := pass.Slots("AAPL")
	require.True(t, ok)
	require.Equal(t, 5, set.Len())
	for i := 0; i < set.Len(); i++ {
		res, ok := set.At(i)
		require.True(t, ok)
		assert.True(t, res.IsFallback)
		assert.NotEmpty(t, res.Series)
	}
}

func TestPreloadAll_IncompleteSetIsWithheld(t *testing.T) {
	loader := loaderFunc(func(ctx context.Context, key models.CacheKey) (models.SeriesResult, error) {
		if key.Ticker == "MSFT" && key.TimeView == models.Monthly {
			return models.SeriesResult{}, context.DeadlineExceeded
		}
		return models.SeriesResult{Ticker: key.Ticker, TimeView: key.TimeView}, nil
	})
	orch := NewOrchestrator(loader, Options{Logger: quietLogger()})

	pass := orch.PreloadAll(context.Background(), []string{"AAPL", "MSFT"}, models.AllTimeViews())
	waitDone(t, pass)

	_, ok := pass.Slots("MSFT")
	assert.False(t, ok)
	_, ok = pass.Slots("AAPL")
	assert.True(t, ok)

	results := pass.Results()
	require.Len(t, results, 1)
	assert.Equal(t, "AAPL", results[0].Ticker)
}

func TestPreloadAll_PassTimeoutAbandonsStuckPairs(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	loader := loaderFunc(func(ctx context.Context, key models.CacheKey) (models.SeriesResult, error) {
		if key.Ticker == "AAPL" {
			return models.SeriesResult{Ticker: key.Ticker, TimeView: key.TimeView}, nil
		}
		// Ignores ctx entirely.
		<-block
		return models.SeriesResult{Ticker: key.Ticker, TimeView: key.TimeView}, nil
	})
	var readyCalls atomic.Int32
	orch := NewOrchestrator(loader, Options{
		PassTimeout: 20 * time.Millisecond,
		Logger:      quietLogger(),
		OnReady:     func(*Pass) { readyCalls.Add(1) },
	})

	pass := orch.PreloadAll(context.Background(), []string{"AAPL", "MSFT"}, []models.TimeView{models.Intraday})
	values := drain(t, pass.Progress())
	waitDone(t, pass)

	assert.Equal(t, 100.0, values[len(values)-1])
	assert.Equal(t, 2, pass.Completed())
	assert.Equal(t, int32(1), readyCalls.Load())
	_, ok := pass.Slots("MSFT")
	assert.False(t, ok)
	_, ok = pass.Slots("AAPL")
	assert.True(t, ok)
}

func TestPreloadAll_EmptyInputIsReadyImmediately(t *testing.T) {
	var readyCalls atomic.Int32
	orch := NewOrchestrator(instantLoader(1), Options{
		Logger:  quietLogger(),
		OnReady: func(*Pass) { readyCalls.Add(1) },
	})

	pass := orch.PreloadAll(context.Background(), nil, models.AllTimeViews())
	assert.Equal(t, []float64{0, 100}, drain(t, pass.Progress()))
	waitDone(t, pass)
	assert.Equal(t, 0, pass.Total())
	assert.Equal(t, int32(1), readyCalls.Load())
	assert.Empty(t, pass.Results())
}

func TestPreloadAll_NormalisesInput(t *testing.T) {
	orch := NewOrchestrator(instantLoader(1), Options{Logger: quietLogger()})

	pass := orch.PreloadAll(context.Background(),
		[]string{" aapl", "AAPL", "", "msft "},
		[]models.TimeView{models.Weekly, models.Intraday, models.Weekly, models.TimeView("bogus")})
	waitDone(t, pass)

	assert.Equal(t, []string{"AAPL", "MSFT"}, pass.Tickers())
	assert.Equal(t, []models.TimeView{models.Intraday, models.Weekly}, pass.Views())
	assert.Equal(t, 4, pass.Total())
}

func TestPass_WaitHonoursContext(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)
	loader := loaderFunc(func(ctx context.Context, key models.CacheKey) (models.SeriesResult, error) {
		<-gate
		return models.SeriesResult{Ticker: key.Ticker, TimeView: key.TimeView}, nil
	})
	orch := NewOrchestrator(loader, Options{Logger: quietLogger()})
	pass := orch.PreloadAll(context.Background(), []string{"AAPL"}, []models.TimeView{models.Intraday})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, pass.Wait(ctx), context.Canceled)
}
