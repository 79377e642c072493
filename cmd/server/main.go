package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/irfndi/tickerwall/internal/api"
	"github.com/irfndi/tickerwall/internal/cache"
	"github.com/irfndi/tickerwall/internal/config"
	"github.com/irfndi/tickerwall/internal/database"
	"github.com/irfndi/tickerwall/internal/display"
	"github.com/irfndi/tickerwall/internal/logging"
	"github.com/irfndi/tickerwall/internal/models"
	"github.com/irfndi/tickerwall/internal/observability"
	"github.com/irfndi/tickerwall/internal/preload"
	"github.com/irfndi/tickerwall/internal/provider"
	"github.com/irfndi/tickerwall/internal/rotation"
	"github.com/irfndi/tickerwall/internal/scheduler"
	"github.com/irfndi/tickerwall/internal/telemetry"
)

const (
	serviceName         = "tickerwall"
	statsReportPeriod   = 5 * time.Minute
	shutdownGracePeriod = 30 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, otlpLogger := newLogger(cfg)
	telemetry.SetLogger(logger.Logger())
	defer func() {
		if otlpLogger != nil {
			_ = otlpLogger.Shutdown(context.Background())
		}
	}()

	tp, err := telemetry.InitTelemetry(ctx, telemetry.TelemetryConfig{
		Enabled:     cfg.Telemetry.Enabled,
		Exporter:    cfg.Telemetry.Exporter,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		ServiceName: cfg.Telemetry.ServiceName,
		Environment: cfg.Environment,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Warn("Failed to shutdown telemetry")
		}
	}()

	if err := observability.InitSentry(cfg.Sentry, telemetry.ServiceVersion, cfg.Environment); err != nil {
		logger.WithError(err).Warn("Failed to initialize Sentry, error reporting disabled")
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		observability.Flush(flushCtx)
	}()

	// Create logrus logger for the components that use it
	logrusLogger := logging.NewLogrusLogger(cfg.LogLevel)

	clock := scheduler.NewSystemClock()
	app, err := buildApp(cfg, clock, logger, logrusLogger)
	if err != nil {
		return err
	}
	defer app.close()

	app.cache.StartPeriodicReporting(ctx, statsReportPeriod)
	app.cycle.Start()
	defer app.cycle.Stop()

	router := newRouter(cfg, app, logger)

	// Create HTTP server with security timeouts
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.LogStartup(serviceName, telemetry.ServiceVersion, cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}
	logger.LogShutdown(serviceName, "signal received")

	// Give outstanding requests a deadline for completion
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logrusLogger.Info("Server exited gracefully")
	return nil
}

func newLogger(cfg *config.Config) (*logging.StandardLogger, *logging.OTLPLogger) {
	if cfg.Telemetry.Enabled && strings.EqualFold(cfg.Telemetry.Exporter, "otlp") {
		return logging.NewStandardOTLPLogger(logging.OTLPConfig{
			Enabled:        true,
			Endpoint:       otlpHost(cfg.Telemetry.OTLPEndpoint),
			ServiceName:    cfg.Telemetry.ServiceName,
			ServiceVersion: telemetry.ServiceVersion,
			Environment:    cfg.Environment,
			LogLevel:       cfg.LogLevel,
		})
	}
	return logging.NewStandardLogger(cfg.LogLevel, cfg.Environment), nil
}

// otlpHost strips the scheme and path from a collector URL.
func otlpHost(endpoint string) string {
	host := strings.TrimPrefix(strings.TrimPrefix(endpoint, "http://"), "https://")
	if i := strings.Index(host, "/"); i >= 0 {
		host = host[:i]
	}
	return host
}

// app holds the long-lived components built at startup.
type app struct {
	redis   *database.RedisClient
	breaker *provider.Breaker
	cache   *cache.SeriesCache
	orch    *preload.Orchestrator
	cycle   *display.ModeCycle
	tickers models.TickerSet
}

func (a *app) close() {
	if a.redis != nil {
		a.redis.Close()
	}
}

func buildApp(cfg *config.Config, clock scheduler.Clock, logger *logging.StandardLogger, logrusLogger *logrus.Logger) (*app, error) {
	a := &app{tickers: configuredTickers(cfg)}

	ttl := cfg.Cache.TTLDuration()
	var store cache.Store
	switch cfg.Cache.Backend {
	case config.CacheBackendRedis:
		redisClient, err := database.NewRedisConnection(cfg.Redis, logrusLogger)
		if err != nil {
			return nil, err
		}
		a.redis = redisClient
		store = cache.NewRedisStore(redisClient.Client, ttl)
	default:
		store = cache.NewMemoryStore()
	}

	a.breaker = provider.NewBreaker(provider.NewClient(&cfg.Provider), provider.CircuitBreakerConfig{
		FailureThreshold: cfg.Provider.BreakerFailureThreshold,
		Timeout:          cfg.Provider.BreakerTimeoutDuration(),
	}, logrusLogger)

	a.cache = cache.NewSeriesCache(a.breaker, cache.Options{
		TTL:           ttl,
		FallbackRetry: cfg.Cache.FallbackRetryDuration(),
		FetchTimeout:  cfg.Provider.TimeoutDuration(),
		Store:         store,
		Clock:         clock,
		Logger:        logger,
	})
	a.orch = preload.NewOrchestrator(a.cache, preload.Options{
		PassTimeout: cfg.Preload.PassTimeoutDuration(ttl),
		Logger:      logger,
	})
	a.cycle = display.NewModeCycle(buildModes(cfg, a.orch, clock, logger), transitionConfig(cfg), clock, logger)
	return a, nil
}

// configuredTickers is every symbol the display can show. The series API
// serves nothing else.
func configuredTickers(cfg *config.Config) models.TickerSet {
	sectors := make([]string, len(cfg.Display.Sectors))
	for i, s := range cfg.Display.Sectors {
		sectors[i] = s.Ticker
	}
	return models.NewTickerSet(cfg.Display.Watchlist, cfg.Display.IndexTickers, sectors)
}

func transitionConfig(cfg *config.Config) rotation.Config {
	return rotation.Config{
		Period:  cfg.Rotation.TimeViewPeriodDuration(),
		FadeOut: cfg.Rotation.FadeOutDuration(),
		Settle:  cfg.Rotation.SettleDuration(),
	}
}

// buildModes returns the display modes in cycle order: the watchlist
// carousel, the index carousel, then the sector board.
func buildModes(cfg *config.Config, orch *preload.Orchestrator, clock scheduler.Clock, logger *logging.StandardLogger) []display.Mode {
	ttl := cfg.Cache.TTLDuration()
	views := models.AllTimeViews()
	carousel := func(name string, tickers []string) display.Mode {
		return display.NewCarouselMode(display.CarouselModeConfig{
			Name:            name,
			Tickers:         tickers,
			Views:           views,
			TimeViews:       transitionConfig(cfg),
			TickerPeriod:    cfg.Rotation.TickerPeriodDuration(len(views)),
			RefreshInterval: cfg.Preload.RefreshIntervalDuration(ttl),
			Clock:           clock,
			Logger:          logger,
		}, orch)
	}

	sectors := make([]display.Sector, len(cfg.Display.Sectors))
	for i, s := range cfg.Display.Sectors {
		sectors[i] = display.Sector{Ticker: s.Ticker, Name: s.Name}
	}

	modes := []display.Mode{
		carousel("watchlist", cfg.Display.Watchlist),
		carousel("index", cfg.Display.IndexTickers),
	}
	if len(sectors) > 0 {
		board := display.NewSectorBoard(sectors, orch, logger)
		modes = append(modes, display.NewTimedMode("sectors", cfg.Rotation.TimedModeDurationValue(), clock, board))
	}
	return modes
}

func newRouter(cfg *config.Config, a *app, logger *logging.StandardLogger) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))

	deps := api.Dependencies{
		Cache:   a.cache,
		Series:  a.cache,
		Passes:  a.orch,
		Display: a.cycle,
		Breaker: a.breaker.CircuitBreaker(),
		Logger:  logger,
		Version: telemetry.ServiceVersion,
		Tickers: a.tickers,
	}
	// Leave Redis unset for the memory backend so health reports it as not configured.
	if a.redis != nil {
		deps.Redis = a.redis
	}
	api.SetupRoutes(router, deps)
	return router
}
