package sentryutil

import (
	"context"
	"time"

	"github.com/SplitFi/go-drops/service/logger"
	"github.com/getsentry/sentry-go"
)

// ReportError reports an error to sentry (if configured) and logs it.
func ReportError(ctx context.Context, err error) {
	logger.For(ctx).Error(err)
	if hub := hubFor(ctx); hub != nil {
		hub.CaptureException(err)
		return
	}
	sentry.CaptureException(err)
}

func hubFor(ctx context.Context) *sentry.Hub {
	if ctx == nil {
		return nil
	}
	return sentry.GetHubFromContext(ctx)
}

// RecoverAndRaise reports a panic to sentry and then re-panics so the host
// environment still sees the crash.
func RecoverAndRaise(ctx context.Context) {
	if p := recover(); p != nil {
		if hub := hubFor(ctx); hub != nil {
			hub.Recover(p)
		} else {
			sentry.CurrentHub().Recover(p)
		}
		sentry.Flush(2 * time.Second)
		panic(p)
	}
}
