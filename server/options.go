package server

import (
	"log/slog"
	"time"

	"tickrpc/codec"
	"tickrpc/middleware"
	"tickrpc/protocol"

	"github.com/benbjohnson/clock"
)

// DefaultTickInterval is roughly one frame at 60 updates per second.
const DefaultTickInterval = 16 * time.Millisecond

type Options struct {
	Logger  *slog.Logger
	Clock   clock.Clock
	Codec   codec.Codec
	Profile *Profile

	Middlewares []middleware.Middleware

	// TickInterval is only used by Server.Run.
	TickInterval time.Duration
	MaxFrameSize int
}

type Option func(*Options)

func DefaultOptions() Options {
	return Options{
		Logger:       slog.New(slog.DiscardHandler),
		Clock:        clock.New(),
		Codec:        codec.Default,
		TickInterval: DefaultTickInterval,
		MaxFrameSize: protocol.DefaultMaxFrameSize,
	}
}

func newOptions(opts []Option) Options {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.Profile == nil {
		o.Profile = NewProfile(o.Clock)
	}
	return o
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}

func WithClock(clk clock.Clock) Option {
	return func(o *Options) { o.Clock = clk }
}

func WithCodec(c codec.Codec) Option {
	return func(o *Options) { o.Codec = c }
}

func WithProfile(p *Profile) Option {
	return func(o *Options) { o.Profile = p }
}

func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(o *Options) { o.Middlewares = append(o.Middlewares, mws...) }
}

func WithTickInterval(d time.Duration) Option {
	return func(o *Options) { o.TickInterval = d }
}

func WithMaxFrameSize(n int) Option {
	return func(o *Options) { o.MaxFrameSize = n }
}
