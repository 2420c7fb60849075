package services

import (
	"context"
	"log/slog"

	"github.com/getsentry/sentry-go"
)

// reportError logs err and forwards it to Sentry. It is used where an error is
// swallowed so the caller can still answer the provider.
func reportError(ctx context.Context, msg string, err error, attrs ...any) {
	slog.ErrorContext(ctx, msg, append(attrs, "error", err)...)

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", "billing")
		for i := 0; i+1 < len(attrs); i += 2 {
			if k, ok := attrs[i].(string); ok {
				scope.SetExtra(k, attrs[i+1])
			}
		}
		scope.SetExtra("message", msg)
		hub.CaptureException(err)
	})
}
