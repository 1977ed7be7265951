package server

import (
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"tickrpc/protocol"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var ErrConnClosed = errors.New("connection is closed")

// Connection is what the dispatcher needs from a live endpoint.
type Connection interface {
	ID() string
	// SwapPending detaches and returns every message received since the last swap.
	SwapPending() []string
	Send(payload []byte) error
}

// Conn is the per-connection state shared between its read goroutine and the tick.
//
// Two locks, never held together:
//   - mu guards pending, taken by the reader on Append and by the tick on SwapPending.
//   - writeMu serializes frames written by Send.
type Conn struct {
	id     string
	nc     net.Conn
	logger *slog.Logger

	mu      sync.Mutex
	pending []string

	writeMu sync.Mutex
	closed  atomic.Bool
}

var _ Connection = (*Conn)(nil)

func NewConn(nc net.Conn, logger *slog.Logger) *Conn {
	id := uuid.NewString()
	return &Conn{
		id:     id,
		nc:     nc,
		logger: logger.With("conn", id, "remote", nc.RemoteAddr().String()),
	}
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) RemoteAddr() net.Addr { return c.nc.RemoteAddr() }

// Append queues one decoded message. Called from the read goroutine.
func (c *Conn) Append(msg string) {
	c.mu.Lock()
	c.pending = append(c.pending, msg)
	c.mu.Unlock()
}

func (c *Conn) SwapPending() []string {
	c.mu.Lock()
	msgs := c.pending
	c.pending = nil
	c.mu.Unlock()
	return msgs
}

// Send writes payload as one frame. It fails with ErrConnClosed once the
// connection has been torn down.
func (c *Conn) Send(payload []byte) error {
	if c.closed.Load() {
		return ErrConnClosed
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := protocol.Encode(c.nc, payload); err != nil {
		return errors.Wrapf(err, "sending to %s", c.id)
	}
	return nil
}

func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.nc.Close()
}

func (c *Conn) Closed() bool { return c.closed.Load() }
