package models

import (
	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
)

// MaxMovingAveragePeriod caps the SMA window used for chart overlays.
const MaxMovingAveragePeriod = 5

// MovingAverage computes a simple moving average over the series values with
// period min(MaxMovingAveragePeriod, len(series)). The result has
// len(series)-period+1 values. Series shorter than two points get nil.
func MovingAverage(series []SeriesPoint) []float64 {
	if len(series) < 2 {
		return nil
	}
	period := MaxMovingAveragePeriod
	if len(series) < period {
		period = len(series)
	}

	prices := make([]float64, len(series))
	for i, p := range series {
		prices[i] = p.Value
	}

	sma := trend.NewSmaWithPeriod[float64](period)
	return helper.ChanToSlice(sma.Compute(helper.SliceToChan(prices)))
}
