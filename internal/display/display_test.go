package display

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/irfndi/tickerwall/internal/logging"
	"github.com/irfndi/tickerwall/internal/models"
	"github.com/irfndi/tickerwall/internal/rotation"
	"github.com/irfndi/tickerwall/internal/scheduler"
)

var (
	testStart = time.Date(2026, time.October, 19, 9, 30, 0, 0, time.UTC)
	fastCfg   = rotation.DefaultConfig()
	fullCycle = rotation.DefaultFadeOut + rotation.DefaultSettle
)

func newClock() *scheduler.ManualClock {
	return scheduler.NewManualClock(testStart)
}

func quietLogger() *logging.StandardLogger {
	return logging.NewStandardLoggerWithWriter(&bytes.Buffer{}, "error", "test")
}

func completeSet(ticker string, views []models.TimeView) *models.TickerSlotSet {
	set := models.NewTickerSlotSet(ticker, views)
	for i, v := range views {
		set.Fill(models.SeriesResult{
			Ticker:      ticker,
			TimeView:    v,
			LatestPrice: float64(100 + i),
			Series:      []models.SeriesPoint{{Label: "x", Value: float64(100 + i)}},
		})
	}
	return set
}

// fakeSource is a SlotSource whose readiness and contents the test controls.
type fakeSource struct {
	mu      sync.Mutex
	ready   chan struct{}
	sets    map[string]*models.TickerSlotSet
	percent float64
}

func newFakeSource() *fakeSource {
	return &fakeSource{ready: make(chan struct{}), sets: map[string]*models.TickerSlotSet{}}
}

func (s *fakeSource) put(set *models.TickerSlotSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets[set.Ticker] = set
}

func (s *fakeSource) Slots(ticker string) (*models.TickerSlotSet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.sets[ticker]
	if !ok || !set.Complete() {
		return nil, false
	}
	return set.Clone(), true
}

func (s *fakeSource) Percent() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.percent
}

func (s *fakeSource) Ready() <-chan struct{} { return s.ready }

// lapCounter counts completions.
type lapCounter struct {
	mu sync.Mutex
	n  int
}

func (l *lapCounter) OnLapComplete() {
	l.mu.Lock()
	l.n++
	l.mu.Unlock()
}

func (l *lapCounter) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.n
}

type loaderFunc func(ctx context.Context, key models.CacheKey) (models.SeriesResult, error)

func (f loaderFunc) Result(ctx context.Context, key models.CacheKey) (models.SeriesResult, error) {
	return f(ctx, key)
}

func instantLoader() loaderFunc {
	return func(ctx context.Context, key models.CacheKey) (models.SeriesResult, error) {
		return models.SeriesResult{
			Ticker:      key.Ticker,
			TimeView:    key.TimeView,
			LatestPrice: 50,
			PctChange:   1.5,
			Series:      []models.SeriesPoint{{Label: "9:30", Value: 49}, {Label: "10:30", Value: 50}},
		}, nil
	}
}
