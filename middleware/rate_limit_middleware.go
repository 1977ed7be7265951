package middleware

import (
	"context"

	"tickrpc/message"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/rpc/v2/json2"
	"golang.org/x/time/rate"
)

// RateLimitMiddleware 创建一个基于令牌桶算法的限流中间件
func RateLimitMiddleware(r float64, burst int, clk clock.Clock) Middleware {
	if clk == nil {
		clk = clock.New()
	}
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *message.Call) (any, error) {
			if !limiter.AllowN(clk.Now(), 1) {
				return nil, &json2.Error{
					Code:    json2.E_SERVER,
					Message: "rate limit exceeded",
				}
			}
			return next(ctx, call)
		}
	}
}
