package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/irfndi/tickerwall/internal/cache"
	"github.com/irfndi/tickerwall/internal/provider"
)

var startTime = time.Now()

// HealthChecker is implemented by backing services that can be pinged.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// CacheStatsProvider reports series cache statistics.
type CacheStatsProvider interface {
	GetStats() cache.CacheStats
}

// BreakerStatus reports the provider circuit breaker state.
type BreakerStatus interface {
	State() provider.CircuitBreakerState
}

// MemoryStats is the host memory summary included in health responses.
type MemoryStats struct {
	TotalMB     uint64  `json:"total_mb"`
	UsedMB      uint64  `json:"used_mb"`
	UsedPercent float64 `json:"used_percent"`
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
	Version   string            `json:"version"`
	Uptime    string            `json:"uptime"`
	Cache     *cache.CacheStats `json:"cache,omitempty"`
	HitRate   float64           `json:"cache_hit_rate"`
	Memory    *MemoryStats      `json:"memory,omitempty"`
}

type HealthHandler struct {
	redis       HealthChecker
	cache       CacheStatsProvider
	breaker     BreakerStatus
	version     string
	memoryStats func(ctx context.Context) (*mem.VirtualMemoryStat, error)
}

// NewHealthHandler creates a health handler. redis and breaker may be nil
// when the corresponding component is not in use.
func NewHealthHandler(redis HealthChecker, cacheStats CacheStatsProvider, breaker BreakerStatus, version string) *HealthHandler {
	return &HealthHandler{
		redis:       redis,
		cache:       cacheStats,
		breaker:     breaker,
		version:     version,
		memoryStats: mem.VirtualMemoryWithContext,
	}
}

// HealthCheck reports dependency status. A failing Redis makes the service
// unhealthy; an open provider breaker only degrades it, since fallback
// series keep the display running.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx := c.Request.Context()
	services := make(map[string]string)
	status := "healthy"

	if h.redis != nil {
		if err := h.redis.HealthCheck(ctx); err != nil {
			services["redis"] = "unhealthy: " + err.Error()
			status = "unhealthy"
		} else {
			services["redis"] = "healthy"
		}
	} else {
		services["redis"] = "not configured"
	}

	if h.breaker != nil {
		state := h.breaker.State()
		if state == provider.Closed {
			services["provider"] = "healthy"
		} else {
			services["provider"] = "degraded: circuit " + state.String()
			if status == "healthy" {
				status = "degraded"
			}
		}
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Services:  services,
		Version:   h.version,
		Uptime:    time.Since(startTime).String(),
	}

	if h.cache != nil {
		stats := h.cache.GetStats()
		response.Cache = &stats
		response.HitRate = stats.HitRate()
	}

	if memInfo, err := h.memoryStats(ctx); err == nil && memInfo != nil {
		response.Memory = &MemoryStats{
			TotalMB:     memInfo.Total / 1024 / 1024,
			UsedMB:      memInfo.Used / 1024 / 1024,
			UsedPercent: memInfo.UsedPercent,
		}
	}

	statusCode := http.StatusOK
	if status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}
	c.JSON(statusCode, response)
}

// LivenessCheck reports that the process is responsive.
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
