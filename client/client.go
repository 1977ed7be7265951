// Package client is the controller-side API: it calls named methods inside a
// running host process and decodes their results.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"time"

	"tickrpc/loadbalance"
	"tickrpc/transport"

	"github.com/gorilla/rpc/v2/json2"
	"github.com/pkg/errors"
)

type Client struct {
	addr     string
	opts     Options
	balancer loadbalance.Balancer[int]
	slots    []int

	mu         sync.Mutex
	transports []*transport.ClientTransport
	closed     bool

	// redialing[i] is held while slot i is being re-dialed.
	redialing []sync.Mutex
}

// Dial connects PoolSize transports to addr, retrying transient failures.
func Dial(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.PoolSize < 1 {
		o.PoolSize = 1
	}

	c := &Client{
		addr:       addr,
		opts:       o,
		balancer:   &loadbalance.RoundRobin[int]{},
		slots:      make([]int, o.PoolSize),
		transports: make([]*transport.ClientTransport, o.PoolSize),
		redialing:  make([]sync.Mutex, o.PoolSize),
	}
	for i := range c.slots {
		c.slots[i] = i
	}
	for i := range c.transports {
		t, err := c.dial(ctx)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.transports[i] = t
	}
	return c, nil
}

// Call invokes method and decodes the result into reply (which may be nil).
// A server-side failure is returned as *json2.Error.
func (c *Client) Call(ctx context.Context, method string, reply any, params ...any) error {
	t, err := c.transport(ctx)
	if err != nil {
		return err
	}

	body, err := t.Call(ctx, method, params...)
	if err != nil {
		return errors.Wrapf(err, "calling %s", method)
	}

	if reply == nil {
		reply = &json.RawMessage{}
	}
	err = json2.DecodeClientResponse(bytes.NewReader(body), reply)
	if errors.Is(err, json2.ErrNullResult) {
		return nil
	}
	return err
}

// Notify sends method without an id; the server runs it and never answers.
func (c *Client) Notify(ctx context.Context, method string, params ...any) error {
	t, err := c.transport(ctx)
	if err != nil {
		return err
	}
	return errors.Wrapf(t.Notify(method, params...), "notifying %s", method)
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	var first error
	for _, t := range c.transports {
		if t == nil {
			continue
		}
		if err := t.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// transport picks a pooled transport, re-dialing the slot if its connection died.
// Only callers landing on the dead slot wait for the redial.
func (c *Client) transport(ctx context.Context) (*transport.ClientTransport, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, transport.ErrTransportClosed
	}
	slot, err := c.balancer.Pick(c.slots)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	t := c.transports[slot]
	c.mu.Unlock()

	if alive(t) {
		return t, nil
	}
	return c.redial(ctx, slot)
}

func (c *Client) redial(ctx context.Context, slot int) (*transport.ClientTransport, error) {
	c.redialing[slot].Lock()
	defer c.redialing[slot].Unlock()

	c.mu.Lock()
	dead, closed := c.transports[slot], c.closed
	c.mu.Unlock()
	if closed {
		return nil, transport.ErrTransportClosed
	}
	if alive(dead) {
		// Another caller re-dialed while we waited.
		return dead, nil
	}

	fresh, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		fresh.Close()
		return nil, transport.ErrTransportClosed
	}
	c.transports[slot] = fresh
	c.mu.Unlock()

	dead.Close()
	return fresh, nil
}

func alive(t *transport.ClientTransport) bool {
	select {
	case <-t.Done():
		return false
	default:
		return true
	}
}

func (c *Client) dial(ctx context.Context) (*transport.ClientTransport, error) {
	var lastErr error
	for attempt := 0; attempt <= c.opts.Retry.MaxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff: base, 2*base, 4*base...
			wait := c.opts.Retry.BaseDelay * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-c.opts.Clock.After(wait):
			}
		}

		conn, err := c.opts.Dial(ctx, "tcp", c.addr)
		if err == nil {
			return transport.NewClientTransport(conn, c.opts.MaxFrameSize), nil
		}
		lastErr = err
		if !isRetryableError(err) {
			break
		}
	}
	return nil, errors.Wrapf(lastErr, "dialing %s", c.addr)
}

// isRetryableError checks if an error is transient and worth retrying
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "EOF")
}
