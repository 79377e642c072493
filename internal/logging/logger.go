package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// StandardLogger provides a standardized logging interface on top of slog.
type StandardLogger struct {
	logger *slog.Logger
}

// NewStandardLogger creates a JSON logger on stdout at the given level.
func NewStandardLogger(logLevel string, environment string) *StandardLogger {
	return NewStandardLoggerWithWriter(os.Stdout, logLevel, environment)
}

// NewStandardLoggerWithWriter creates a JSON logger writing to w.
func NewStandardLoggerWithWriter(w io.Writer, logLevel string, environment string) *StandardLogger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: getSlogLevel(logLevel),
	}))
	if environment != "" {
		logger = logger.With("environment", environment)
	}
	return &StandardLogger{logger: logger}
}

// NewStandardLoggerFrom wraps an existing slog.Logger. A nil logger wraps
// slog.Default().
func NewStandardLoggerFrom(logger *slog.Logger) *StandardLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &StandardLogger{logger: logger}
}

// NewStandardOTLPLogger creates a logger exporting through OTLP, falling
// back to stdout JSON if the exporter cannot be built.
func NewStandardOTLPLogger(config OTLPConfig) (*StandardLogger, *OTLPLogger) {
	otlpLogger, err := NewOTLPLogger(config)
	if err != nil {
		fallback := NewStandardLogger(config.LogLevel, config.Environment)
		fallback.WithError(err).Warn("OTLP logger unavailable, using stdout")
		return fallback, nil
	}
	return &StandardLogger{logger: otlpLogger.Logger()}, otlpLogger
}

// WithComponent creates a logger with component context
func (l *StandardLogger) WithComponent(componentName string) *slog.Logger {
	return l.logger.With("component", componentName)
}

// WithTicker creates a logger with ticker context
func (l *StandardLogger) WithTicker(ticker string) *slog.Logger {
	return l.logger.With("ticker", ticker)
}

// WithTimeView creates a logger with time view context
func (l *StandardLogger) WithTimeView(view string) *slog.Logger {
	return l.logger.With("time_view", view)
}

// WithPass creates a logger with preload pass context
func (l *StandardLogger) WithPass(passID string) *slog.Logger {
	return l.logger.With("pass_id", passID)
}

// WithError creates a logger with error context
func (l *StandardLogger) WithError(err error) *slog.Logger {
	if err == nil {
		return l.logger
	}
	return l.logger.With("error", err.Error())
}

// LogStartup logs application startup information
func (l *StandardLogger) LogStartup(serviceName string, version string, port int) {
	l.logger.Info("Application startup",
		"service", serviceName,
		"version", version,
		"port", port,
		"event", "startup",
	)
}

// LogShutdown logs application shutdown information
func (l *StandardLogger) LogShutdown(serviceName string, reason string) {
	l.logger.Info("Application shutdown",
		"service", serviceName,
		"reason", reason,
		"event", "shutdown",
	)
}

// LogCacheOperation logs cache operations in a standardized format
func (l *StandardLogger) LogCacheOperation(operation string, key string, hit bool, duration time.Duration) {
	l.logger.Debug("Cache operation",
		"operation", operation,
		"key", key,
		"hit", hit,
		"duration_ms", duration.Milliseconds(),
		"event", "cache",
	)
}

// LogRotationEvent logs a rotation transition.
func (l *StandardLogger) LogRotationEvent(level string, index int, lapKey int64, lapComplete bool) {
	l.logger.Debug("Rotation switched",
		"level", level,
		"active_index", index,
		"lap_key", lapKey,
		"lap_complete", lapComplete,
		"event", "rotation",
	)
}

// LogPreloadProgress logs preload progress for a pass.
func (l *StandardLogger) LogPreloadProgress(passID string, completed, total int, percent float64) {
	l.logger.Debug("Preload progress",
		"pass_id", passID,
		"completed", completed,
		"total", total,
		"percent", percent,
		"event", "preload",
	)
}

// LogAPIRequest logs one served HTTP request.
func (l *StandardLogger) LogAPIRequest(method string, path string, statusCode int, duration time.Duration) {
	level := slog.LevelDebug
	if statusCode >= 500 {
		level = slog.LevelWarn
	}
	l.logger.Log(context.Background(), level, "API request",
		"method", method,
		"path", path,
		"status_code", statusCode,
		"duration_ms", duration.Milliseconds(),
		"event", "api_request",
	)
}

// Logger returns the underlying *slog.Logger
func (l *StandardLogger) Logger() *slog.Logger {
	return l.logger
}

// getSlogLevel converts string level to slog.Level
func getSlogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLogrusLevel converts string level to logrus.Level
func ParseLogrusLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// NewLogrusLogger returns a JSON logrus logger for the components that log
// through logrus.
func NewLogrusLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(ParseLogrusLevel(level))
	return logger
}
