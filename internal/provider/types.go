package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/irfndi/tickerwall/internal/models"
)

// ErrMalformedPayload is returned when the provider answers 2xx with a body
// that cannot be turned into a non-empty series.
var ErrMalformedPayload = errors.New("malformed provider payload")

// StatusError is returned for non-2xx provider responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider error (%d): %s", e.StatusCode, e.Body)
}

// Fetcher fetches one price series from the data provider.
type Fetcher interface {
	FetchSeries(ctx context.Context, ticker, period, interval string) (*SeriesResponse, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, ticker, period, interval string) (*SeriesResponse, error)

// FetchSeries calls f.
func (f FetcherFunc) FetchSeries(ctx context.Context, ticker, period, interval string) (*SeriesResponse, error) {
	return f(ctx, ticker, period, interval)
}

// SeriesResponse is a parsed provider answer.
type SeriesResponse struct {
	CompanyName string               `json:"company_name"`
	Series      []models.SeriesPoint `json:"series"`
}

// seriesPayload covers both payload shapes the provider has been seen to
// return: a list of {date, price} objects, or parallel dates/prices arrays.
type seriesPayload struct {
	CompanyName string             `json:"company_name"`
	Data        []seriesPoint      `json:"data"`
	Dates       []string           `json:"dates"`
	Prices      []*decimal.Decimal `json:"prices"`
}

type seriesPoint struct {
	Date      string           `json:"date"`
	Timestamp string           `json:"timestamp"`
	Price     *decimal.Decimal `json:"price"`
	Close     *decimal.Decimal `json:"close"`
	Value     *decimal.Decimal `json:"value"`
}

func (p seriesPoint) label() string {
	if p.Date != "" {
		return p.Date
	}
	return p.Timestamp
}

func (p seriesPoint) price() (decimal.Decimal, bool) {
	for _, d := range []*decimal.Decimal{p.Price, p.Close, p.Value} {
		if d != nil {
			return *d, true
		}
	}
	return decimal.Zero, false
}

// toResponse validates the payload and converts it to an ordered series.
func (p *seriesPayload) toResponse() (*SeriesResponse, error) {
	var series []models.SeriesPoint

	switch {
	case len(p.Data) > 0:
		series = make([]models.SeriesPoint, 0, len(p.Data))
		for i, item := range p.Data {
			price, ok := item.price()
			if !ok {
				return nil, fmt.Errorf("%w: point %d has no price", ErrMalformedPayload, i)
			}
			series = append(series, models.SeriesPoint{Label: item.label(), Value: price.InexactFloat64()})
		}
	case len(p.Dates) > 0:
		if len(p.Dates) != len(p.Prices) {
			return nil, fmt.Errorf("%w: %d dates but %d prices", ErrMalformedPayload, len(p.Dates), len(p.Prices))
		}
		series = make([]models.SeriesPoint, 0, len(p.Dates))
		for i, date := range p.Dates {
			if p.Prices[i] == nil {
				return nil, fmt.Errorf("%w: point %d has no price", ErrMalformedPayload, i)
			}
			series = append(series, models.SeriesPoint{Label: date, Value: p.Prices[i].InexactFloat64()})
		}
	default:
		return nil, fmt.Errorf("%w: empty series", ErrMalformedPayload)
	}

	return &SeriesResponse{CompanyName: p.CompanyName, Series: series}, nil
}
