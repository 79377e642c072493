package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/irfndi/tickerwall/internal/cache"
	"github.com/irfndi/tickerwall/internal/middleware"
	"github.com/irfndi/tickerwall/internal/observability"
)

// CacheAdmin exposes series cache statistics and maintenance.
type CacheAdmin interface {
	GetStats() cache.CacheStats
	Clear(ctx context.Context) (int, error)
}

// CacheHandler handles cache monitoring endpoints
type CacheHandler struct {
	cache CacheAdmin
}

// NewCacheHandler creates a new cache handler
func NewCacheHandler(admin CacheAdmin) *CacheHandler {
	return &CacheHandler{cache: admin}
}

// GetCacheStats returns hit, miss, fetch and fallback counters.
// @Summary Get cache statistics
// @Tags cache
// @Produce json
// @Success 200 {object} cache.CacheStats
// @Router /api/v1/cache/stats [get]
func (h *CacheHandler) GetCacheStats(c *gin.Context) {
	stats := h.cache.GetStats()
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"data":     stats,
		"hit_rate": stats.HitRate(),
	})
}

// ClearCache drops every stored series so the next lookup refetches.
// @Summary Clear the series cache
// @Tags cache
// @Produce json
// @Router /api/v1/cache [delete]
func (h *CacheHandler) ClearCache(c *gin.Context) {
	cleared, err := h.cache.Clear(c.Request.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, cache.ErrClearUnsupported) {
			status = http.StatusNotImplemented
		} else {
			observability.CaptureException(c.Request.Context(), err)
		}
		middleware.RecordError(c, err, "cache clear failed")
		c.JSON(status, gin.H{
			"success": false,
			"error":   "Failed to clear cache: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"cleared": cleared,
	})
}
