package cache

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/tickerwall/internal/models"
	"github.com/irfndi/tickerwall/internal/scheduler"
)

type fixedSource float64

func (f fixedSource) Float64() float64 { return float64(f) }

func TestGenerateFallback_Shapes(t *testing.T) {
	now := time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC)
	rng := rand.New(rand.NewSource(7))

	tests := []struct {
		view       models.TimeView
		length     int
		firstLabel string
		lastLabel  string
	}{
		{models.Intraday, 7, "9:30", "15:00"},
		{models.Weekly, 5, "Mon", "Fri"},
		{models.Monthly, 20, "1", "20"},
		{models.YearToDate, 10, "Jan", "Oct"},
		{models.MultiYear, 5, "2022", "2026"},
	}

	for _, tt := range tests {
		t.Run(tt.view.String(), func(t *testing.T) {
			series := GenerateFallback(tt.view, now, rng)
			require.Len(t, series, tt.length)
			assert.Equal(t, tt.firstLabel, series[0].Label)
			assert.Equal(t, tt.lastLabel, series[len(series)-1].Label)
			for _, p := range series {
				assert.Greater(t, p.Value, 0.0)
			}
		})
	}
}

func TestGenerateFallback_IntradayLabels(t *testing.T) {
	series := GenerateFallback(models.Intraday, time.Now(), fixedSource(0.5))
	labels := make([]string, len(series))
	for i, p := range series {
		labels[i] = p.Label
	}
	assert.Equal(t, []string{"9:30", "10:30", "11:00", "12:30", "13:00", "14:30", "15:00"}, labels)
}

func TestGenerateFallback_NeutralDrawStaysAtBase(t *testing.T) {
	series := GenerateFallback(models.Weekly, time.Now(), fixedSource(0.5))
	for _, p := range series {
		assert.Equal(t, FallbackBasePrice, p.Value)
	}
}

func TestGenerateFallback_FloorsAtOnePercent(t *testing.T) {
	series := GenerateFallback(models.MultiYear, time.Now(), fixedSource(0))
	last := series[len(series)-1]
	assert.Equal(t, FallbackBasePrice*0.01, last.Value)
}

func TestGenerateFallback_JanuaryYTD(t *testing.T) {
	now := time.Date(2027, time.January, 3, 0, 0, 0, 0, time.UTC)
	series := GenerateFallback(models.YearToDate, now, fixedSource(0.5))
	require.Len(t, series, 1)
	assert.Equal(t, "Jan", series[0].Label)
}

func TestGenerateFallback_UnknownView(t *testing.T) {
	series := GenerateFallback(models.TimeView("bogus"), time.Now(), fixedSource(0.9))
	assert.Equal(t, []models.SeriesPoint{{Label: "No Data", Value: FallbackBasePrice}}, series)
}

func TestFallbackGenerator_SeededIsDeterministic(t *testing.T) {
	clock := scheduler.NewManualClock(time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC))
	a := NewFallbackGenerator(clock, 99)
	b := NewFallbackGenerator(clock, 99)

	assert.Equal(t, a.Generate(models.Monthly), b.Generate(models.Monthly))
	assert.Len(t, a.Generate(models.YearToDate), 3)
}
