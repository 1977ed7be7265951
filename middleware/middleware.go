// Package middleware wraps handler invocation on the tick goroutine.
//
// A chain never leaves the calling goroutine: middlewares run before and after
// the registry call, on the same goroutine that drains the mailbox.
package middleware

import (
	"context"

	"tickrpc/message"
)

type HandlerFunc func(ctx context.Context, call *message.Call) (any, error)

type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes middlewares into one. The first middleware is the outermost.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
