// Package server implements the embedded RPC service: per-connection read
// loops on the network side and a single tick goroutine on the host side.
//
// Request processing pipeline:
//
//	Accept conn → handleConn (one goroutine reads frames)
//	  → Conn.Append(msg) → Dispatcher.Enqueue(conn)
//	tick goroutine: RunOneTick
//	  → Mailbox.DrainAll → Conn.SwapPending → Codec.Decode → Middleware Chain
//	  → Registry.Invoke → Codec.Encode → Conn.Send
package server

import (
	"context"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"tickrpc/middleware"
	"tickrpc/protocol"
	"tickrpc/registry"

	"github.com/pkg/errors"
)

// Server owns the transport side and the dispatcher.
type Server struct {
	dispatcher *Dispatcher
	opts       Options
	logger     *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	conns    map[*Conn]struct{}

	wg       sync.WaitGroup // tracks read loops
	shutdown atomic.Bool
}

// NewServer creates a server dispatching to reg. Handlers must be registered
// before the tick loop starts.
func NewServer(reg *registry.Registry, opts ...Option) *Server {
	o := newOptions(opts)
	return &Server{
		dispatcher: NewDispatcher(reg, func(dst *Options) { *dst = o }),
		opts:       o,
		logger:     o.Logger,
		conns:      make(map[*Conn]struct{}),
	}
}

// Use registers a middleware. Middlewares are applied in the order they are added.
func (svr *Server) Use(mw middleware.Middleware) {
	svr.dispatcher.Use(mw)
}

func (svr *Server) Dispatcher() *Dispatcher { return svr.dispatcher }

// RunOneTick is the host-driven entry point; call it once per update cycle
// from the goroutine that owns host state.
func (svr *Server) RunOneTick(ctx context.Context) (TickStats, error) {
	return svr.dispatcher.RunOneTick(ctx)
}

// Listen binds the listener without accepting. It returns the bound address.
func (svr *Server) Listen(network, address string) (net.Addr, error) {
	l, err := net.Listen(network, address)
	if err != nil {
		return nil, errors.Wrapf(err, "listening on %s", address)
	}
	svr.mu.Lock()
	svr.listener = l
	svr.mu.Unlock()
	svr.logger.Info("tcp server started", "addr", l.Addr().String())
	return l.Addr(), nil
}

// Serve runs the accept loop on a listener created by Listen.
// It returns nil after Shutdown.
func (svr *Server) Serve() error {
	svr.mu.Lock()
	l := svr.listener
	svr.mu.Unlock()
	if l == nil {
		return errors.New("serve called before listen")
	}

	for {
		nc, err := l.Accept()
		if err != nil {
			// listener.Close() during shutdown surfaces here.
			if svr.shutdown.Load() {
				return nil
			}
			return errors.Wrap(err, "accepting connection")
		}

		conn := NewConn(nc, svr.logger)
		if !svr.track(conn) {
			conn.Close()
			return nil
		}
		go func() {
			defer svr.wg.Done()
			svr.handleConn(conn)
		}()
	}
}

// ListenAndServe combines Listen and Serve.
func (svr *Server) ListenAndServe(network, address string) error {
	if _, err := svr.Listen(network, address); err != nil {
		return err
	}
	return svr.Serve()
}

// Addr returns the bound address, or nil before Listen.
func (svr *Server) Addr() net.Addr {
	svr.mu.Lock()
	defer svr.mu.Unlock()
	if svr.listener == nil {
		return nil
	}
	return svr.listener.Addr()
}

func (svr *Server) track(conn *Conn) bool {
	svr.mu.Lock()
	defer svr.mu.Unlock()
	if svr.shutdown.Load() {
		return false
	}
	svr.conns[conn] = struct{}{}
	svr.wg.Add(1)
	return true
}

func (svr *Server) untrack(conn *Conn) {
	svr.mu.Lock()
	delete(svr.conns, conn)
	svr.mu.Unlock()
}

// handleConn reads frames sequentially and hands each one to the mailbox.
// It never runs a handler.
func (svr *Server) handleConn(conn *Conn) {
	defer func() {
		svr.untrack(conn)
		if err := conn.Close(); err != nil {
			conn.logger.Debug("closing connection", "error", err)
		}
	}()

	conn.logger.Debug("client connected")
	for {
		body, err := protocol.Decode(conn.nc, svr.opts.MaxFrameSize)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF), conn.Closed(), svr.shutdown.Load():
				conn.logger.Debug("client disconnected")
			default:
				conn.logger.Warn("reading frame", "error", err)
			}
			return
		}

		conn.logger.Debug("message received", "size", len(body))
		conn.Append(string(body))
		svr.dispatcher.Enqueue(conn)
	}
}

// Run drives RunOneTick from the configured clock until ctx is done.
// Hosts that own an update loop call RunOneTick themselves instead.
func (svr *Server) Run(ctx context.Context) error {
	ticker := svr.opts.Clock.Ticker(svr.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			stats, err := svr.dispatcher.RunOneTick(ctx)
			if err != nil {
				svr.logger.Warn("tick skipped", "error", err)
				continue
			}
			if stats.Messages > 0 {
				svr.logger.Debug("tick",
					"connections", stats.Connections,
					"messages", stats.Messages,
					"responses", stats.Responses,
					"failures", stats.Failures,
				)
			}
		}
	}
}

// Shutdown performs graceful shutdown:
//  1. Set shutdown flag (so Accept error is recognized as intentional)
//  2. Close the listener and every live connection
//  3. Wait for read loops to exit (with timeout)
//
// A handler already running on the tick goroutine is not interrupted.
func (svr *Server) Shutdown(timeout time.Duration) error {
	svr.mu.Lock()
	svr.shutdown.Store(true)
	l := svr.listener
	conns := make([]*Conn, 0, len(svr.conns))
	for conn := range svr.conns {
		conns = append(conns, conn)
	}
	svr.mu.Unlock()

	if l != nil {
		l.Close()
	}
	for _, conn := range conns {
		conn.Close()
	}

	done := make(chan struct{})
	go func() {
		svr.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		svr.logger.Info("tcp server stopped")
		return nil
	case <-time.After(timeout):
		return errors.New("timeout waiting for connections to close")
	}
}
