package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/irfndi/tickerwall/internal/middleware"
	"github.com/irfndi/tickerwall/internal/models"
	"github.com/irfndi/tickerwall/internal/observability"
	"github.com/irfndi/tickerwall/internal/preload"
	"github.com/irfndi/tickerwall/internal/utils"
)

// SeriesReader returns the display result for one key.
type SeriesReader interface {
	Result(ctx context.Context, key models.CacheKey) (models.SeriesResult, error)
}

// PassRunner starts preload passes.
type PassRunner interface {
	PreloadAll(ctx context.Context, tickers []string, views []models.TimeView) *preload.Pass
}

// ErrUnknownTicker is returned for tickers outside the configured display.
var ErrUnknownTicker = errors.New("ticker is not on the display")

// SeriesHandler serves series for ad-hoc lookups outside the rotation.
// Only tickers in allowed are served, which keeps the cache key space
// bounded by the configured lists.
type SeriesHandler struct {
	series  SeriesReader
	passes  PassRunner
	allowed models.TickerSet
}

// NewSeriesHandler creates a series handler restricted to allowed.
func NewSeriesHandler(series SeriesReader, passes PassRunner, allowed models.TickerSet) *SeriesHandler {
	return &SeriesHandler{series: series, passes: passes, allowed: allowed}
}

// GetSeries returns the series for one ticker and time view.
func (h *SeriesHandler) GetSeries(c *gin.Context) {
	ticker, err := h.parseTicker(c.Param("ticker"))
	if err != nil {
		respondError(c, err)
		return
	}
	view, err := models.ParseTimeView(c.Param("view"))
	if err != nil {
		respondError(c, utils.NewValidationError("view", err.Error()))
		return
	}

	middleware.AddSpanAttribute(c, "ticker", ticker)
	middleware.AddSpanAttribute(c, "time_view", view.String())

	result, err := h.series.Result(c.Request.Context(), models.NewCacheKey(ticker, view))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}

// GetTicker loads every time view for one ticker in a single pass and
// returns the full slot set.
func (h *SeriesHandler) GetTicker(c *gin.Context) {
	ticker, err := h.parseTicker(c.Param("ticker"))
	if err != nil {
		respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	pass := h.passes.PreloadAll(ctx, []string{ticker}, models.AllTimeViews())
	if err := pass.Wait(ctx); err != nil {
		respondError(c, err)
		return
	}

	set, ok := pass.Slots(ticker)
	if !ok {
		middleware.RecordError(c, errors.New("incomplete slot set"), "ticker preload incomplete")
		c.JSON(http.StatusGatewayTimeout, gin.H{
			"success": false,
			"error":   "Timed out loading all time views",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"pass_id": pass.ID(),
		"data":    set,
	})
}

func (h *SeriesHandler) parseTicker(raw string) (string, error) {
	tickers := models.NormalizeTickers([]string{raw})
	if len(tickers) == 0 {
		return "", utils.NewValidationError("ticker", "must not be empty")
	}
	if !h.allowed.Contains(tickers[0]) {
		return "", fmt.Errorf("%w: %s", ErrUnknownTicker, tickers[0])
	}
	return tickers[0], nil
}

func respondError(c *gin.Context, err error) {
	switch {
	case utils.IsValidationError(err):
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
		})
	case errors.Is(err, ErrUnknownTicker):
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   err.Error(),
		})
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		middleware.RecordError(c, err, "request context ended")
		c.JSON(http.StatusGatewayTimeout, gin.H{
			"success": false,
			"error":   "Request timed out",
		})
	default:
		middleware.RecordError(c, err, "series lookup failed")
		observability.CaptureSeriesError(c.Request.Context(), err, c.Param("ticker"), c.Param("view"))
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to load series: " + err.Error(),
		})
	}
}
