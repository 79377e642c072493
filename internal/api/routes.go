package api

import (
	"github.com/gin-gonic/gin"

	"github.com/irfndi/tickerwall/internal/api/handlers"
	"github.com/irfndi/tickerwall/internal/logging"
	"github.com/irfndi/tickerwall/internal/middleware"
	"github.com/irfndi/tickerwall/internal/models"
)

// Dependencies are the components the HTTP API reads from. Redis and
// Breaker may be nil.
type Dependencies struct {
	Cache   handlers.CacheAdmin
	Series  handlers.SeriesReader
	Passes  handlers.PassRunner
	Display handlers.DisplaySource
	Redis   handlers.HealthChecker
	Breaker handlers.BreakerStatus
	Logger  *logging.StandardLogger
	Version string
	// Tickers are the symbols the series routes will serve.
	Tickers models.TickerSet
}

func SetupRoutes(router *gin.Engine, deps Dependencies) {
	router.Use(middleware.RequestTelemetry(deps.Logger))

	healthHandler := handlers.NewHealthHandler(deps.Redis, deps.Cache, deps.Breaker, deps.Version)
	displayHandler := handlers.NewDisplayHandler(deps.Display)
	seriesHandler := handlers.NewSeriesHandler(deps.Series, deps.Passes, deps.Tickers)
	cacheHandler := handlers.NewCacheHandler(deps.Cache)

	// Health check endpoints
	router.GET("/health", healthHandler.HealthCheck)
	router.GET("/live", healthHandler.LivenessCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		v1.GET("/display", displayHandler.GetDisplay)

		series := v1.Group("/series")
		{
			series.GET("/:ticker", seriesHandler.GetTicker)
			series.GET("/:ticker/:view", seriesHandler.GetSeries)
		}

		cacheGroup := v1.Group("/cache")
		{
			cacheGroup.GET("/stats", cacheHandler.GetCacheStats)
			cacheGroup.DELETE("", cacheHandler.ClearCache)
		}
	}
}
