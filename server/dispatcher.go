package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"tickrpc/codec"
	"tickrpc/mailbox"
	"tickrpc/message"
	"tickrpc/middleware"
	"tickrpc/registry"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/rpc/v2/json2"
	"github.com/pkg/errors"
)

// ErrTickInProgress is returned when RunOneTick is called while another tick
// is still draining, including from inside a handler.
var ErrTickInProgress = errors.New("tick already in progress")

type State int32

const (
	Idle State = iota
	Draining
)

func (s State) String() string {
	if s == Draining {
		return "draining"
	}
	return "idle"
}

// TickStats summarizes one RunOneTick.
type TickStats struct {
	Connections  int // connections drained from the mailbox
	Messages     int // messages taken from those connections
	Skipped      int // malformed or method-less messages
	Failures     int // calls whose handler failed, notifications included
	Responses    int // envelopes handed to Send successfully
	SendFailures int
}

// Dispatcher is the single consumer side of the engine. Network goroutines
// call Enqueue; exactly one goroutine calls RunOneTick once per host update,
// and that goroutine is the only one that ever runs a handler.
type Dispatcher struct {
	registry *registry.Registry
	mailbox  *mailbox.Mailbox[Connection]
	codec    codec.Codec
	clock    clock.Clock
	logger   *slog.Logger
	profile  *Profile

	middlewares []middleware.Middleware
	handler     middleware.HandlerFunc

	state atomic.Int32
}

func NewDispatcher(reg *registry.Registry, opts ...Option) *Dispatcher {
	o := newOptions(opts)
	d := &Dispatcher{
		registry:    reg,
		mailbox:     mailbox.New[Connection](),
		codec:       o.Codec,
		clock:       o.Clock,
		logger:      o.Logger,
		profile:     o.Profile,
		middlewares: o.Middlewares,
	}
	d.buildChain()
	return d
}

// Use appends a middleware. Must be called before the first tick.
func (d *Dispatcher) Use(mw middleware.Middleware) {
	d.middlewares = append(d.middlewares, mw)
	d.buildChain()
}

// buildChain puts recovery outermost so one panicking handler cannot abort a tick.
func (d *Dispatcher) buildChain() {
	mws := append([]middleware.Middleware{middleware.RecoverMiddleware()}, d.middlewares...)
	d.handler = middleware.Chain(mws...)(d.invokeRegistry)
}

func (d *Dispatcher) invokeRegistry(ctx context.Context, call *message.Call) (any, error) {
	return d.registry.Invoke(ctx, call.Method, call.Params)
}

// Enqueue signals that conn has pending messages. Safe from any goroutine.
func (d *Dispatcher) Enqueue(conn Connection) {
	d.mailbox.Enqueue(conn)
}

func (d *Dispatcher) State() State { return State(d.state.Load()) }

func (d *Dispatcher) Profile() *Profile { return d.profile }

func (d *Dispatcher) Registry() *registry.Registry { return d.registry }

// RunOneTick drains the mailbox and processes every pending message of every
// drained connection, in arrival order per connection. Messages enqueued while
// the tick runs are left for the next one.
func (d *Dispatcher) RunOneTick(ctx context.Context) (TickStats, error) {
	var stats TickStats
	if !d.state.CompareAndSwap(int32(Idle), int32(Draining)) {
		return stats, ErrTickInProgress
	}
	defer d.state.Store(int32(Idle))

	for _, conn := range d.mailbox.DrainAll() {
		stats.Connections++
		for _, raw := range conn.SwapPending() {
			stats.Messages++
			d.process(ctx, conn, raw, &stats)
		}
	}
	return stats, nil
}

func (d *Dispatcher) process(ctx context.Context, conn Connection, raw string, stats *TickStats) {
	logger := d.logger.With("conn", conn.ID())

	start := d.clock.Now()
	call, err := d.codec.Decode(raw)
	switch {
	case errors.Is(err, codec.ErrMissingMethod):
		logger.Debug("ignore message without method")
		stats.Skipped++
		return
	case err != nil:
		logger.Warn("dropping undecodable message", "error", err, "size", len(raw))
		stats.Skipped++
		return
	}

	result, callErr := d.handler(ctx, call)
	handled := d.clock.Now()
	d.profile.Set(ProfileHandleRequest, handled.Sub(start))

	if callErr != nil {
		stats.Failures++
		logger.Error("call failed",
			"method", call.Method,
			"notification", call.IsNotification(),
			"error", fmt.Sprintf("%+v", callErr),
		)
	}
	if call.IsNotification() {
		return
	}

	payload, err := d.encode(call, result, callErr)
	packed := d.clock.Now()
	d.profile.Set(ProfilePackResponse, packed.Sub(handled))
	if err != nil {
		logger.Error("encoding response", "method", call.Method, "error", err)
		return
	}

	if err := conn.Send(payload); err != nil {
		stats.SendFailures++
		logger.Warn("sending response", "method", call.Method, "error", err)
	} else {
		stats.Responses++
	}
	d.profile.Set(ProfileSendResponse, d.clock.Since(packed))
	logger.Debug("profiling", "method", call.Method, "profile", d.profile.Snapshot())
}

func (d *Dispatcher) encode(call *message.Call, result any, callErr error) ([]byte, error) {
	if callErr == nil {
		payload, err := d.codec.EncodeSuccess(call.ID, result)
		if err == nil {
			return payload, nil
		}
		callErr = &json2.Error{Code: json2.E_INTERNAL, Message: err.Error()}
	}
	return d.codec.EncodeFailure(call.ID, toRPCError(call, callErr))
}

// toRPCError maps a handler failure onto a wire error with a non-zero code.
func toRPCError(call *message.Call, err error) *json2.Error {
	var rpcErr *json2.Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	if errors.Is(err, registry.ErrUnknownMethod) {
		return &json2.Error{Code: json2.E_NO_METHOD, Message: fmt.Sprintf("unknown method %q", call.Method)}
	}
	var argErr *message.ArgumentError
	if errors.As(err, &argErr) {
		return &json2.Error{Code: json2.E_BAD_PARAMS, Message: err.Error()}
	}
	return &json2.Error{Code: json2.E_SERVER, Message: err.Error()}
}
