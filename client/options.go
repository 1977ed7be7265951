package client

import (
	"context"
	"net"
	"time"

	"tickrpc/protocol"

	"github.com/benbjohnson/clock"
)

type Options struct {
	// PoolSize is the number of multiplexed connections kept to the server.
	PoolSize     int
	MaxFrameSize int
	Retry        RetryOptions

	Dial  func(ctx context.Context, network, addr string) (net.Conn, error)
	Clock clock.Clock
}

// RetryOptions controls re-dialing on transient network errors.
type RetryOptions struct {
	MaxRetries int
	BaseDelay  time.Duration // doubled after each attempt
}

type Option func(*Options)

func DefaultOptions() Options {
	var d net.Dialer
	return Options{
		PoolSize:     1,
		MaxFrameSize: protocol.DefaultMaxFrameSize,
		Retry:        RetryOptions{MaxRetries: 3, BaseDelay: 100 * time.Millisecond},
		Dial:         d.DialContext,
		Clock:        clock.New(),
	}
}

func WithPoolSize(n int) Option {
	return func(o *Options) { o.PoolSize = n }
}

func WithMaxFrameSize(n int) Option {
	return func(o *Options) { o.MaxFrameSize = n }
}

func WithRetry(maxRetries int, baseDelay time.Duration) Option {
	return func(o *Options) { o.Retry = RetryOptions{MaxRetries: maxRetries, BaseDelay: baseDelay} }
}

func WithDialer(dial func(ctx context.Context, network, addr string) (net.Conn, error)) Option {
	return func(o *Options) { o.Dial = dial }
}

func WithClock(clk clock.Clock) Option {
	return func(o *Options) { o.Clock = clk }
}
