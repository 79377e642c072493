package cache

import (
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/irfndi/tickerwall/internal/models"
	"github.com/irfndi/tickerwall/internal/scheduler"
)

// FallbackBasePrice anchors every synthetic series.
const FallbackBasePrice = 150.0

// RandomSource supplies uniform values in [0, 1).
type RandomSource interface {
	Float64() float64
}

type fallbackShape struct {
	volatility float64
	bias       float64
}

var fallbackShapes = map[models.TimeView]fallbackShape{
	models.Intraday:   {volatility: 0.02, bias: 0.5},
	models.Weekly:     {volatility: 0.05, bias: 0.5},
	models.Monthly:    {volatility: 0.08, bias: 0.5},
	models.YearToDate: {volatility: 0.3, bias: 0.4},
	models.MultiYear:  {volatility: 0.8, bias: 0.3},
}

var (
	weekdayLabels = []string{"Mon", "Tue", "Wed", "Thu", "Fri"}
	monthLabels   = []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}
)

// GenerateFallback returns a plausible synthetic series for view. The
// result is never empty and every value is positive.
func GenerateFallback(view models.TimeView, now time.Time, rng RandomSource) []models.SeriesPoint {
	shape, ok := fallbackShapes[view]
	if !ok {
		return []models.SeriesPoint{{Label: "No Data", Value: FallbackBasePrice}}
	}

	labels := fallbackLabels(view, now)
	series := make([]models.SeriesPoint, len(labels))
	floor := FallbackBasePrice * 0.01
	for i, label := range labels {
		change := (rng.Float64() - shape.bias) * shape.volatility
		value := FallbackBasePrice * (1 + change*float64(i+1))
		if value < floor {
			value = floor
		}
		series[i] = models.SeriesPoint{Label: label, Value: value}
	}
	return series
}

func fallbackLabels(view models.TimeView, now time.Time) []string {
	switch view {
	case models.Intraday:
		labels := make([]string, 7)
		for i := range labels {
			hour := 9 + (i*13)/12
			minute := 30
			if i > 0 && i%2 == 0 {
				minute = 0
			}
			labels[i] = fmt.Sprintf("%d:%02d", hour, minute)
		}
		return labels
	case models.Weekly:
		return append([]string(nil), weekdayLabels...)
	case models.Monthly:
		labels := make([]string, 20)
		for i := range labels {
			labels[i] = strconv.Itoa(i + 1)
		}
		return labels
	case models.YearToDate:
		return append([]string(nil), monthLabels[:int(now.Month())]...)
	case models.MultiYear:
		labels := make([]string, 5)
		for i := range labels {
			labels[i] = strconv.Itoa(now.Year() - 4 + i)
		}
		return labels
	}
	return nil
}

// FallbackGenerator produces synthetic series against a clock and a seeded
// random source.
type FallbackGenerator struct {
	clock scheduler.Clock
	mu    sync.Mutex
	rng   *rand.Rand
}

// NewFallbackGenerator creates a generator. A zero seed uses the clock's
// current time.
func NewFallbackGenerator(clock scheduler.Clock, seed int64) *FallbackGenerator {
	clock = scheduler.OrSystem(clock)
	if seed == 0 {
		seed = clock.Now().UnixNano()
	}
	return &FallbackGenerator{
		clock: clock,
		rng:   rand.New(rand.NewSource(seed)),
	}
}

// Generate returns a synthetic series for view.
func (g *FallbackGenerator) Generate(view models.TimeView) []models.SeriesPoint {
	g.mu.Lock()
	defer g.mu.Unlock()
	return GenerateFallback(view, g.clock.Now(), g.rng)
}
