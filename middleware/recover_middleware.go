package middleware

import (
	"context"
	"fmt"

	"tickrpc/message"

	"github.com/gorilla/rpc/v2/json2"
)

// RecoverMiddleware turns a handler panic into an internal error for that call only.
func RecoverMiddleware() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *message.Call) (result any, err error) {
			defer func() {
				if r := recover(); r != nil {
					result = nil
					err = &json2.Error{
						Code:    json2.E_INTERNAL,
						Message: fmt.Sprintf("panic in %s: %v", call.Method, r),
					}
				}
			}()
			return next(ctx, call)
		}
	}
}
