package provider

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUpstream = errors.New("upstream down")

func quietLogrus() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// newTestBreaker returns a breaker whose clock the test moves by hand.
func newTestBreaker(cfg CircuitBreakerConfig) (*CircuitBreaker, *time.Time) {
	now := time.Date(2026, time.October, 19, 9, 30, 0, 0, time.UTC)
	cb := NewCircuitBreaker("test", cfg, quietLogrus())
	cb.now = func() time.Time { return now }
	cb.lastStateChange = now
	return cb, &now
}

func fail(context.Context) error    { return errUpstream }
func succeed(context.Context) error { return nil }

func TestCircuitBreaker_ConfigDefaults(t *testing.T) {
	cb := NewCircuitBreaker("defaults", CircuitBreakerConfig{}, nil)
	assert.Equal(t, 5, cb.config.FailureThreshold)
	assert.Equal(t, 1, cb.config.SuccessThreshold)
	assert.Equal(t, 30*time.Second, cb.config.Timeout)
	assert.Equal(t, 1, cb.config.MaxRequests)
	assert.Equal(t, Closed, cb.State())
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb, _ := newTestBreaker(CircuitBreakerConfig{FailureThreshold: 3, Timeout: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(ctx, fail), errUpstream)
	}
	assert.Equal(t, Open, cb.State())

	called := false
	err := cb.Execute(ctx, func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)

	stats := cb.Stats()
	assert.Equal(t, int64(4), stats.TotalRequests)
	assert.Equal(t, int64(3), stats.FailedRequests)
	assert.Equal(t, int64(1), stats.RejectedRequests)
	assert.Equal(t, int64(1), stats.StateChanges)
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb, _ := newTestBreaker(CircuitBreakerConfig{FailureThreshold: 2})
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	require.NoError(t, cb.Execute(ctx, succeed))
	_ = cb.Execute(ctx, fail)
	assert.Equal(t, Closed, cb.State())
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cb, now := newTestBreaker(CircuitBreakerConfig{FailureThreshold: 1, SuccessThreshold: 2, Timeout: time.Minute})
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	require.Equal(t, Open, cb.State())

	*now = now.Add(time.Minute)
	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, HalfOpen, cb.State())
	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, Closed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb, now := newTestBreaker(CircuitBreakerConfig{FailureThreshold: 1, Timeout: time.Minute})
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	*now = now.Add(2 * time.Minute)
	assert.ErrorIs(t, cb.Execute(ctx, fail), errUpstream)
	assert.Equal(t, Open, cb.State())

	assert.ErrorIs(t, cb.Execute(ctx, succeed), ErrCircuitOpen)
}

func TestCircuitBreaker_HalfOpenLimitsProbes(t *testing.T) {
	cb, now := newTestBreaker(CircuitBreakerConfig{FailureThreshold: 1, Timeout: time.Minute, MaxRequests: 1})
	ctx := context.Background()
	_ = cb.Execute(ctx, fail)
	*now = now.Add(time.Minute)

	probing := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = cb.Execute(ctx, func(context.Context) error {
			close(probing)
			<-release
			return nil
		})
	}()
	<-probing

	assert.ErrorIs(t, cb.Execute(ctx, succeed), ErrCircuitOpen)
	close(release)
	wg.Wait()
	assert.Equal(t, Closed, cb.State())
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb, _ := newTestBreaker(CircuitBreakerConfig{FailureThreshold: 1})
	_ = cb.Execute(context.Background(), fail)
	require.Equal(t, Open, cb.State())

	cb.Reset()
	assert.Equal(t, Closed, cb.State())
	assert.NoError(t, cb.Execute(context.Background(), succeed))
}

func TestCircuitBreakerState_String(t *testing.T) {
	assert.Equal(t, "closed", Closed.String())
	assert.Equal(t, "open", Open.String())
	assert.Equal(t, "half-open", HalfOpen.String())
	assert.Equal(t, "unknown", CircuitBreakerState(9).String())
}

func TestBreaker_WrapsFetcher(t *testing.T) {
	calls := 0
	next := FetcherFunc(func(ctx context.Context, ticker, period, interval string) (*SeriesResponse, error) {
		calls++
		if ticker == "DOWN" {
			return nil, errUpstream
		}
		return &SeriesResponse{CompanyName: ticker}, nil
	})
	breaker := NewBreaker(next, CircuitBreakerConfig{FailureThreshold: 2, Timeout: time.Hour}, quietLogrus())
	ctx := context.Background()

	resp, err := breaker.FetchSeries(ctx, "AAPL", "1d", "5m")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", resp.CompanyName)

	for i := 0; i < 2; i++ {
		_, err = breaker.FetchSeries(ctx, "DOWN", "1d", "5m")
		assert.ErrorIs(t, err, errUpstream)
	}

	resp, err = breaker.FetchSeries(ctx, "AAPL", "1d", "5m")
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 3, calls)
	assert.Equal(t, Open, breaker.CircuitBreaker().State())
}
