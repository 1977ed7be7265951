package middleware

import (
	"context"
	"log/slog"

	"tickrpc/message"

	"github.com/benbjohnson/clock"
)

// LoggingMiddleware logs every handled call at debug level. A nil logger
// discards and a nil clock uses the wall clock.
func LoggingMiddleware(logger *slog.Logger, clk clock.Clock) Middleware {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if clk == nil {
		clk = clock.New()
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *message.Call) (any, error) {
			start := clk.Now()
			result, err := next(ctx, call)
			logger.Debug("call handled",
				"method", call.Method,
				"params", call.Params.Len(),
				"notification", call.IsNotification(),
				"duration", clk.Since(start),
				"failed", err != nil,
			)
			return result, err
		}
	}
}
