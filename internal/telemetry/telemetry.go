package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	// Service information
	ServiceName    = "github.com/irfndi/tickerwall"
	ServiceVersion = "1.0.0"
)

// TelemetryConfig holds configuration for tracing
type TelemetryConfig struct {
	Enabled     bool
	Exporter    string // "stdout" or "otlp"
	Endpoint    string
	ServiceName string
	Environment string
}

// DefaultConfig returns default telemetry configuration
func DefaultConfig() *TelemetryConfig {
	return &TelemetryConfig{
		Enabled:     false,
		Exporter:    "stdout",
		Endpoint:    "http://localhost:4318",
		ServiceName: ServiceName,
		Environment: "development",
	}
}

// Provider holds the telemetry provider
type Provider struct {
	tp *sdktrace.TracerProvider
}

// Shutdown flushes and stops the tracer provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

// InitTelemetry installs a global tracer provider. With telemetry disabled
// the otel no-op provider stays in place and a nil-safe Provider is returned.
func InitTelemetry(ctx context.Context, config TelemetryConfig) (*Provider, error) {
	if !config.Enabled {
		return &Provider{}, nil
	}

	var exporter sdktrace.SpanExporter
	switch strings.ToLower(config.Exporter) {
	case "", "stdout":
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("stdout trace exporter: %w", err)
		}
		exporter = exp
	case "otlp":
		hostport, path, insecure, _, err := normalizeOTLPEndpoint(config.Endpoint)
		if err != nil {
			return nil, err
		}
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(hostport),
			otlptracehttp.WithURLPath(path),
		}
		if insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		exp, err := otlptracehttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("otlp trace exporter: %w", err)
		}
		exporter = exp
	default:
		return nil, fmt.Errorf("unsupported trace exporter %q", config.Exporter)
	}

	serviceName := config.ServiceName
	if serviceName == "" {
		serviceName = ServiceName
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(ServiceVersion),
			semconv.DeploymentEnvironment(config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return &Provider{tp: tp}, nil
}

// normalizeOTLPEndpoint splits a collector base URL into the host:port and
// traces path expected by otlptracehttp.
func normalizeOTLPEndpoint(endpoint string) (hostport, urlPath string, insecure bool, resolved string, err error) {
	u, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", "", false, "", fmt.Errorf("invalid OTLP endpoint %q: expected scheme://host[:port][/path]", endpoint)
	}

	path := strings.TrimSuffix(u.Path, "/")
	if !strings.HasSuffix(path, "/v1/traces") {
		path += "/v1/traces"
	}

	insecure = u.Scheme == "http"
	resolved = fmt.Sprintf("%s://%s%s", u.Scheme, u.Host, path)
	return u.Host, path, insecure, resolved, nil
}

// Tracer returns a named tracer from the global provider.
func Tracer(component string) trace.Tracer {
	return otel.Tracer(ServiceName + "/" + component)
}

var globalLogger atomic.Pointer[slog.Logger]

// SetLogger replaces the logger returned by Logger.
func SetLogger(l *slog.Logger) {
	globalLogger.Store(l)
}

// Logger returns the global slog.Logger instance for application logging
func Logger() *slog.Logger {
	if l := globalLogger.Load(); l != nil {
		return l
	}
	return slog.Default()
}
