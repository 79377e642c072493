// Package observability reports unexpected errors to Sentry.
package observability

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/irfndi/tickerwall/internal/config"
)

// InitSentry configures the Sentry SDK. It is a no-op unless reporting is
// enabled and a DSN is set.
func InitSentry(cfg config.SentryConfig, fallbackRelease string, fallbackEnv string) error {
	if !cfg.Enabled || cfg.DSN == "" {
		return nil
	}

	release := cfg.Release
	if release == "" {
		release = fallbackRelease
	}

	environment := cfg.Environment
	if environment == "" {
		environment = fallbackEnv
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      environment,
		Release:          release,
		EnableTracing:    cfg.TracesSampleRate > 0,
		TracesSampleRate: cfg.TracesSampleRate,
		AttachStacktrace: true,
	})
}

// Flush drains buffered events within the context deadline, or two seconds
// when the context has none.
func Flush(ctx context.Context) {
	timeout := 2 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = max(time.Until(deadline), 0)
	}
	sentry.Flush(timeout)
}

// CaptureException reports err, preferring the hub carried by ctx.
func CaptureException(ctx context.Context, err error) {
	if err == nil {
		return
	}
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.CaptureException(err)
		return
	}
	sentry.CaptureException(err)
}

// CaptureSeriesError reports a failed series lookup tagged with the ticker
// and time view it was for.
func CaptureSeriesError(ctx context.Context, err error, ticker, timeView string) {
	if err == nil {
		return
	}
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("ticker", ticker)
		if timeView != "" {
			scope.SetTag("time_view", timeView)
		}
		CaptureException(sentry.SetHubOnContext(ctx, hub), err)
	})
}
