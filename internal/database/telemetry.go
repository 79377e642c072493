package database

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/irfndi/tickerwall/internal/telemetry"
)

// slowCommandThreshold is the duration above which a command is logged.
const slowCommandThreshold = 250 * time.Millisecond

// TracingHook wraps every Redis command in a span and logs slow or failed
// commands.
type TracingHook struct {
	tracer trace.Tracer
	logger *logrus.Logger
}

// NewTracingHook creates a hook using the "redis" tracer.
func NewTracingHook(logger *logrus.Logger) *TracingHook {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &TracingHook{tracer: telemetry.Tracer("redis"), logger: logger}
}

// DialHook passes dials through unchanged.
func (h *TracingHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

// ProcessHook traces a single command.
func (h *TracingHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		ctx, span := h.tracer.Start(ctx, "redis."+cmd.Name(),
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(attribute.String("db.system", "redis")),
		)
		defer span.End()

		start := time.Now()
		err := next(ctx, cmd)
		h.record(span, cmd.Name(), 1, time.Since(start), err)
		return err
	}
}

// ProcessPipelineHook traces a pipeline as one span.
func (h *TracingHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		ctx, span := h.tracer.Start(ctx, "redis.pipeline",
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(attribute.String("db.system", "redis")),
		)
		defer span.End()

		start := time.Now()
		err := next(ctx, cmds)
		h.record(span, "pipeline", len(cmds), time.Since(start), err)
		return err
	}
}

func (h *TracingHook) record(span trace.Span, name string, size int, duration time.Duration, err error) {
	span.SetAttributes(
		attribute.Int("db.redis.num_cmd", size),
		attribute.Int64("db.duration_ms", duration.Milliseconds()),
	)

	// A missing key is a normal cache miss.
	if err != nil && !errors.Is(err, redis.Nil) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.logger.WithFields(logrus.Fields{
			"command":     name,
			"duration_ms": duration.Milliseconds(),
		}).WithError(err).Warn("Redis command failed")
		return
	}
	if duration > slowCommandThreshold {
		h.logger.WithFields(logrus.Fields{
			"command":     name,
			"duration_ms": duration.Milliseconds(),
		}).Debug("Slow Redis command")
	}
}
