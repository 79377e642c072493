package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/irfndi/tickerwall/internal/models"
)

type Config struct {
	Environment string          `mapstructure:"environment"`
	LogLevel    string          `mapstructure:"log_level"`
	Server      ServerConfig    `mapstructure:"server"`
	Provider    ProviderConfig  `mapstructure:"provider"`
	Cache       CacheConfig     `mapstructure:"cache"`
	Redis       RedisConfig     `mapstructure:"redis"`
	Rotation    RotationConfig  `mapstructure:"rotation"`
	Preload     PreloadConfig   `mapstructure:"preload"`
	Display     DisplayConfig   `mapstructure:"display"`
	Telemetry   TelemetryConfig `mapstructure:"telemetry"`
	Sentry      SentryConfig    `mapstructure:"sentry"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type ProviderConfig struct {
	BaseURL                 string `mapstructure:"base_url"`
	Timeout                 string `mapstructure:"timeout"`
	BreakerFailureThreshold int    `mapstructure:"breaker_failure_threshold"`
	BreakerTimeout          string `mapstructure:"breaker_timeout"`
}

type CacheConfig struct {
	TTL           string `mapstructure:"ttl"`
	FallbackRetry string `mapstructure:"fallback_retry"`
	Backend       string `mapstructure:"backend"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type RotationConfig struct {
	TimeViewPeriod    string `mapstructure:"time_view_period"`
	TickerPeriod      string `mapstructure:"ticker_period"`
	FadeOut           string `mapstructure:"fade_out"`
	Settle            string `mapstructure:"settle"`
	TimedModeDuration string `mapstructure:"timed_mode_duration"`
}

type PreloadConfig struct {
	PassTimeout     string `mapstructure:"pass_timeout"`
	RefreshInterval string `mapstructure:"refresh_interval"`
}

type SectorConfig struct {
	Ticker string `mapstructure:"ticker"`
	Name   string `mapstructure:"name"`
}

type DisplayConfig struct {
	Watchlist    []string       `mapstructure:"watchlist"`
	IndexTickers []string       `mapstructure:"index_tickers"`
	Sectors      []SectorConfig `mapstructure:"sectors"`
}

type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Exporter     string `mapstructure:"exporter"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name"`
}

// SentryConfig controls error reporting. Reporting is off unless a DSN is set.
type SentryConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	DSN              string  `mapstructure:"dsn"`
	Environment      string  `mapstructure:"environment"`
	Release          string  `mapstructure:"release"`
	TracesSampleRate float64 `mapstructure:"traces_sample_rate"`
}

const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.Environment = strings.ToLower(config.Environment)
	config.Cache.Backend = strings.ToLower(config.Cache.Backend)
	config.Display.Watchlist = models.NormalizeTickers(config.Display.Watchlist)
	config.Display.IndexTickers = models.NormalizeTickers(config.Display.IndexTickers)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks that durations parse and that the display has something
// to rotate through.
func (c *Config) Validate() error {
	durations := map[string]string{
		"provider.timeout":             c.Provider.Timeout,
		"provider.breaker_timeout":     c.Provider.BreakerTimeout,
		"cache.ttl":                    c.Cache.TTL,
		"cache.fallback_retry":         c.Cache.FallbackRetry,
		"rotation.time_view_period":    c.Rotation.TimeViewPeriod,
		"rotation.ticker_period":       c.Rotation.TickerPeriod,
		"rotation.fade_out":            c.Rotation.FadeOut,
		"rotation.settle":              c.Rotation.Settle,
		"rotation.timed_mode_duration": c.Rotation.TimedModeDuration,
		"preload.pass_timeout":         c.Preload.PassTimeout,
		"preload.refresh_interval":     c.Preload.RefreshInterval,
	}
	for key, value := range durations {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid duration for %s: %w", key, err)
		}
	}

	ttl := c.Cache.TTLDuration()
	retry := c.Cache.FallbackRetryDuration()
	if ttl <= 0 {
		return errors.New("cache.ttl must be positive")
	}
	if retry <= 0 || retry >= ttl {
		return fmt.Errorf("cache.fallback_retry must be in (0, %s), got %s", ttl, retry)
	}

	switch c.Cache.Backend {
	case CacheBackendMemory, CacheBackendRedis:
	default:
		return fmt.Errorf("unsupported cache.backend %q", c.Cache.Backend)
	}

	if c.Rotation.TimeViewPeriodDuration() <= 0 {
		return errors.New("rotation.time_view_period must be positive")
	}
	if len(models.NormalizeTickers(c.Display.Watchlist)) == 0 {
		return errors.New("display.watchlist must contain at least one ticker")
	}
	if len(models.NormalizeTickers(c.Display.IndexTickers)) == 0 {
		return errors.New("display.index_tickers must contain at least one ticker")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Environment
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")

	// Server
	v.SetDefault("server.port", 8080)

	// Provider
	v.SetDefault("provider.base_url", "http://localhost:5000")
	v.SetDefault("provider.timeout", "10s")
	v.SetDefault("provider.breaker_failure_threshold", 5)
	v.SetDefault("provider.breaker_timeout", "30s")

	// Cache
	v.SetDefault("cache.ttl", "5m")
	v.SetDefault("cache.fallback_retry", "60s")
	v.SetDefault("cache.backend", CacheBackendMemory)

	// Redis
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Rotation
	v.SetDefault("rotation.time_view_period", "6s")
	v.SetDefault("rotation.ticker_period", "")
	v.SetDefault("rotation.fade_out", "800ms")
	v.SetDefault("rotation.settle", "100ms")
	v.SetDefault("rotation.timed_mode_duration", "30s")

	// Preload
	v.SetDefault("preload.pass_timeout", "")
	v.SetDefault("preload.refresh_interval", "")

	// Display
	v.SetDefault("display.watchlist", []string{"AAPL", "MSFT", "NVDA", "TSLA", "AMZN"})
	v.SetDefault("display.index_tickers", []string{"TSLA", "AAPL", "MSFT", "GOOGL", "AMZN", "NFLX", "NVDA", "META", "AMD", "INTC"})
	v.SetDefault("display.sectors", []map[string]string{
		{"ticker": "XLE", "name": "Energy"},
		{"ticker": "XLB", "name": "Materials"},
		{"ticker": "XLI", "name": "Industrials"},
		{"ticker": "XLY", "name": "Consumer Discretionary"},
		{"ticker": "XLP", "name": "Consumer Staples"},
		{"ticker": "XLV", "name": "Health Care"},
		{"ticker": "XLF", "name": "Financials"},
		{"ticker": "XLK", "name": "Information Technology"},
		{"ticker": "XLC", "name": "Communication Services"},
		{"ticker": "XLU", "name": "Utilities"},
		{"ticker": "XLRE", "name": "Real Estate"},
	})

	// Telemetry
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.exporter", "stdout")
	v.SetDefault("telemetry.otlp_endpoint", "http://localhost:4318")
	v.SetDefault("telemetry.service_name", "tickerwall")

	// Sentry
	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "")
	v.SetDefault("sentry.release", "")
	v.SetDefault("sentry.traces_sample_rate", 0.0)
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

// TimeoutDuration returns the provider request timeout.
func (p ProviderConfig) TimeoutDuration() time.Duration {
	return parseDuration(p.Timeout, 10*time.Second)
}

// BreakerTimeoutDuration returns how long the breaker stays open.
func (p ProviderConfig) BreakerTimeoutDuration() time.Duration {
	return parseDuration(p.BreakerTimeout, 30*time.Second)
}

// TTLDuration returns the cache freshness window.
func (c CacheConfig) TTLDuration() time.Duration {
	return parseDuration(c.TTL, 5*time.Minute)
}

// FallbackRetryDuration returns how long a fallback entry stays live.
func (c CacheConfig) FallbackRetryDuration() time.Duration {
	return parseDuration(c.FallbackRetry, time.Minute)
}

func (r RotationConfig) TimeViewPeriodDuration() time.Duration {
	return parseDuration(r.TimeViewPeriod, 6*time.Second)
}

// TickerPeriodDuration returns the ticker period, derived as
// time-view period × views when not set.
func (r RotationConfig) TickerPeriodDuration(views int) time.Duration {
	return parseDuration(r.TickerPeriod, r.TimeViewPeriodDuration()*time.Duration(views))
}

func (r RotationConfig) FadeOutDuration() time.Duration {
	return parseDuration(r.FadeOut, 800*time.Millisecond)
}

func (r RotationConfig) SettleDuration() time.Duration {
	return parseDuration(r.Settle, 100*time.Millisecond)
}

func (r RotationConfig) TimedModeDurationValue() time.Duration {
	return parseDuration(r.TimedModeDuration, 30*time.Second)
}

// PassTimeoutDuration returns the per-pass deadline, defaulting to ttl.
func (p PreloadConfig) PassTimeoutDuration(ttl time.Duration) time.Duration {
	return parseDuration(p.PassTimeout, ttl)
}

// RefreshIntervalDuration returns the background refresh interval,
// defaulting to ttl.
func (p PreloadConfig) RefreshIntervalDuration(ttl time.Duration) time.Duration {
	return parseDuration(p.RefreshInterval, ttl)
}
