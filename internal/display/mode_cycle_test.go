package display

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/tickerwall/internal/cache"
	"github.com/irfndi/tickerwall/internal/models"
	"github.com/irfndi/tickerwall/internal/preload"
	"github.com/irfndi/tickerwall/internal/provider"
	"github.com/irfndi/tickerwall/internal/rotation"
	"github.com/irfndi/tickerwall/internal/scheduler"
)

// mountTracker is Content that records how many instances are mounted at once.
type mountTracker struct {
	mu       sync.Mutex
	shared   *int
	maxSeen  *int
	mounts   int
	unmounts int
}

func (m *mountTracker) Mount() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mounts++
	*m.shared++
	if *m.shared > *m.maxSeen {
		*m.maxSeen = *m.shared
	}
}

func (m *mountTracker) Unmount() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unmounts++
	*m.shared--
}

func (m *mountTracker) Snapshot() any { return nil }

// leakyMode never cancels its timers, so it keeps reporting completions
// after it has been unmounted.
type leakyMode struct {
	name  string
	clock scheduler.Clock
	mu    sync.Mutex
	fired int
}

func (m *leakyMode) Name() string { return m.name }

func (m *leakyMode) Mount(done rotation.LapListener) {
	for _, d := range []time.Duration{10 * time.Second, 20 * time.Second, 30 * time.Second} {
		m.clock.AfterFunc(d, func() {
			m.mu.Lock()
			m.fired++
			m.mu.Unlock()
			done.OnLapComplete()
		})
	}
}

func (m *leakyMode) Unmount()      {}
func (m *leakyMode) Snapshot() any { return m.name }

func TestModeCycle_ThreeModesThreeLapsReturnsToStart(t *testing.T) {
	clock := newClock()
	var mounted, maxMounted int
	trackers := make([]*mountTracker, 3)
	modes := make([]Mode, 3)
	for i, name := range []string{"watchlist", "index", "sectors"} {
		trackers[i] = &mountTracker{shared: &mounted, maxSeen: &maxMounted}
		modes[i] = NewTimedMode(name, 30*time.Second, clock, trackers[i])
	}

	cycle := NewModeCycle(modes, fastCfg, clock, quietLogger())
	cycle.Start()
	defer cycle.Stop()

	var visited []string
	for lap := 0; lap < 3; lap++ {
		visited = append(visited, cycle.Snapshot().ActiveMode)
		clock.Advance(30 * time.Second)
		assert.True(t, cycle.Snapshot().IsTransitioning)
		clock.Advance(fullCycle)
	}

	snap := cycle.Snapshot()
	assert.Equal(t, []string{"watchlist", "index", "sectors"}, visited)
	assert.Equal(t, 0, snap.ActiveIndex)
	assert.Equal(t, "watchlist", snap.ActiveMode)
	assert.Equal(t, "index", snap.NextMode)
	assert.Equal(t, int64(3), snap.LapKey)
	assert.Equal(t, 1, maxMounted)
	assert.Equal(t, 2, trackers[0].mounts)
	assert.Equal(t, 1, trackers[1].mounts)
	assert.Equal(t, 1, trackers[1].unmounts)
	assert.Equal(t, 1, trackers[2].unmounts)

	// Only the active mode's timer is pending.
	assert.Equal(t, 1, clock.Pending())
}

func TestModeCycle_IgnoresCompletionsFromInactiveModes(t *testing.T) {
	clock := newClock()
	leaky := &leakyMode{name: "leaky", clock: clock}
	timed := NewTimedMode("timed", 60*time.Second, clock, nil)

	cycle := NewModeCycle([]Mode{leaky, timed}, fastCfg, clock, quietLogger())
	cycle.Start()
	defer cycle.Stop()

	clock.Advance(10*time.Second + fullCycle)
	require.Equal(t, "timed", cycle.Snapshot().ActiveMode)

	// The leaky mode's later timers fire while it is inactive.
	clock.Advance(25 * time.Second)
	snap := cycle.Snapshot()
	assert.Equal(t, "timed", snap.ActiveMode)
	assert.False(t, snap.IsTransitioning)
	assert.Equal(t, int64(1), snap.LapKey)
	assert.Equal(t, 3, leaky.fired)
}

func TestModeCycle_SnapshotIncludesActiveDetail(t *testing.T) {
	clock := newClock()
	cycle := NewModeCycle([]Mode{
		NewTimedMode("a", 30*time.Second, clock, nil),
		NewTimedMode("b", 30*time.Second, clock, nil),
	}, fastCfg, clock, quietLogger())

	before := cycle.Snapshot()
	assert.False(t, before.Running)

	cycle.Start()
	clock.Advance(10 * time.Second)

	snap := cycle.Snapshot()
	assert.True(t, snap.Running)
	assert.Equal(t, []string{"a", "b"}, snap.Modes)
	assert.Equal(t, "b", snap.NextMode)
	detail, ok := snap.Detail.(TimedModeSnapshot)
	require.True(t, ok)
	assert.True(t, detail.Mounted)
	assert.InDelta(t, 20.0, detail.Remaining, 0.001)

	cycle.Stop()
	cycle.Stop()
	assert.Equal(t, 0, clock.Pending())
	assert.False(t, cycle.Snapshot().Running)
}

func TestModeCycle_EmptyIsInert(t *testing.T) {
	cycle := NewModeCycle(nil, fastCfg, newClock(), quietLogger())
	cycle.Start()
	assert.Nil(t, cycle.Active())
	snap := cycle.Snapshot()
	assert.False(t, snap.Running)
	assert.Empty(t, snap.ActiveMode)
	cycle.Stop()
}

func TestTimedMode_UnmountCancelsTimer(t *testing.T) {
	clock := newClock()
	laps := &lapCounter{}
	mode := NewTimedMode("sectors", 0, clock, nil)

	mode.Mount(laps)
	mode.Mount(laps)
	assert.Equal(t, 1, clock.Pending())
	mode.Unmount()
	mode.Unmount()
	assert.Equal(t, 0, clock.Pending())

	clock.Advance(DefaultTimedModeDuration)
	assert.Equal(t, 0, laps.count())

	mode.Mount(laps)
	clock.Advance(DefaultTimedModeDuration)
	assert.Equal(t, 1, laps.count())
}

func TestCarouselMode_LapDrivesModeCycle(t *testing.T) {
	clock := newClock()
	fetcher := provider.FetcherFunc(func(ctx context.Context, ticker, period, interval string) (*provider.SeriesResponse, error) {
		return &provider.SeriesResponse{
			CompanyName: ticker + " Inc.",
			Series:      []models.SeriesPoint{{Label: "9:30", Value: 40}, {Label: "10:30", Value: 50}},
		}, nil
	})
	seriesCache := cache.NewSeriesCache(fetcher, cache.Options{Clock: clock, Logger: quietLogger()})
	orch := preload.NewOrchestrator(seriesCache, preload.Options{Logger: quietLogger()})

	watchlist := NewCarouselMode(CarouselModeConfig{
		Name:      "watchlist",
		Tickers:   []string{"AAPL", "MSFT"},
		Views:     models.AllTimeViews(),
		TimeViews: fastCfg,
		Clock:     clock,
		Logger:    quietLogger(),
	}, orch)
	sectors := NewTimedMode("sectors", 30*time.Second, clock, nil)

	cycle := NewModeCycle([]Mode{watchlist, sectors}, fastCfg, clock, quietLogger())
	cycle.Start()
	defer cycle.Stop()

	carousel := watchlist.Carousel()
	require.NotNil(t, carousel)
	waitArmed(t, carousel)

	detail, ok := cycle.Snapshot().Detail.(CarouselModeSnapshot)
	require.True(t, ok)
	require.NotNil(t, detail.Ticker)
	assert.Equal(t, "AAPL", detail.Ticker.ActiveTicker)
	require.NotNil(t, detail.Ticker.TimeView.Current)
	assert.Equal(t, 50.0, detail.Ticker.TimeView.Current.LatestPrice)
	assert.Equal(t, "AAPL Inc.", detail.Ticker.TimeView.Current.CompanyName)
	assert.Equal(t, int64(10), seriesCache.GetStats().Fetches)

	// Two tickers at 30s each complete one outer lap.
	clock.Advance(2*tickerPeriod + rotation.DefaultFadeOut)
	assert.True(t, cycle.Snapshot().IsTransitioning)
	assert.Equal(t, "watchlist", cycle.Snapshot().ActiveMode)

	clock.Advance(rotation.DefaultFadeOut + rotation.DefaultSettle)
	assert.Equal(t, "sectors", cycle.Snapshot().ActiveMode)
	assert.Nil(t, watchlist.Carousel())

	clock.Advance(30*time.Second + fullCycle)
	assert.Equal(t, "watchlist", cycle.Snapshot().ActiveMode)
	require.NotNil(t, watchlist.Carousel())
}

func TestSectorBoard_RowsFollowSectorOrder(t *testing.T) {
	orch := preload.NewOrchestrator(instantLoader(), preload.Options{Logger: quietLogger()})
	board := NewSectorBoard([]Sector{
		{Ticker: "xlk", Name: "Information Technology"},
		{Ticker: " ", Name: "Blank"},
		{Ticker: "XLE", Name: "Energy"},
	}, orch, quietLogger())

	before := board.Snapshot().(SectorBoardSnapshot)
	assert.True(t, before.Loading)

	board.Mount()
	defer board.Unmount()
	select {
	case <-board.Settled():
	case <-time.After(2 * time.Second):
		t.Fatal("sector board never settled")
	}

	snap := board.Snapshot().(SectorBoardSnapshot)
	assert.False(t, snap.Loading)
	assert.Equal(t, 100.0, snap.Progress)
	require.Len(t, snap.Rows, 2)
	assert.Equal(t, "XLK", snap.Rows[0].Ticker)
	assert.Equal(t, "Information Technology", snap.Rows[0].Name)
	assert.Equal(t, "XLE", snap.Rows[1].Ticker)
	assert.Equal(t, 50.0, snap.Rows[1].Price)
	assert.Equal(t, 1.5, snap.Rows[1].PctChange)
}

func TestTimedMode_WithSectorBoardContent(t *testing.T) {
	clock := newClock()
	orch := preload.NewOrchestrator(instantLoader(), preload.Options{Logger: quietLogger()})
	board := NewSectorBoard([]Sector{{Ticker: "XLF", Name: "Financials"}}, orch, quietLogger())
	mode := NewTimedMode("sectors", 30*time.Second, clock, board)

	mode.Mount(&lapCounter{})
	defer mode.Unmount()
	<-board.Settled()

	snap := mode.Snapshot().(TimedModeSnapshot)
	content, ok := snap.Content.(SectorBoardSnapshot)
	require.True(t, ok)
	require.Len(t, content.Rows, 1)
	assert.Equal(t, "Financials", content.Rows[0].Name)
}

func TestCarouselMode_EmptyAfterNormalising(t *testing.T) {
	orch := preload.NewOrchestrator(instantLoader(), preload.Options{Logger: quietLogger()})
	blank := NewCarouselMode(CarouselModeConfig{Name: "blank", Tickers: []string{" ", ""}}, orch)
	assert.True(t, blank.Empty())

	filled := NewCarouselMode(CarouselModeConfig{Name: "index", Tickers: []string{" spy", "SPY"}}, orch)
	assert.False(t, filled.Empty())
}

func TestModeCycle_SkipsCarouselWithoutTickers(t *testing.T) {
	clock := newClock()
	orch := preload.NewOrchestrator(instantLoader(), preload.Options{Logger: quietLogger()})
	blank := NewCarouselMode(CarouselModeConfig{
		Name:      "watchlist",
		Tickers:   []string{" "},
		TimeViews: fastCfg,
		Clock:     clock,
		Logger:    quietLogger(),
	}, orch)
	sectors := NewTimedMode("sectors", 30*time.Second, clock, nil)

	cycle := NewModeCycle([]Mode{blank, sectors}, fastCfg, clock, quietLogger())
	cycle.Start()
	defer cycle.Stop()

	snap := cycle.Snapshot()
	assert.Equal(t, []string{"sectors"}, snap.Modes)
	assert.Equal(t, "sectors", snap.ActiveMode)
	assert.Nil(t, blank.Carousel())

	for lap := 1; lap <= 3; lap++ {
		clock.Advance(30*time.Second + fullCycle)
		assert.Equal(t, int64(lap), cycle.Snapshot().LapKey)
	}
	assert.Equal(t, 1, clock.Pending())
}
