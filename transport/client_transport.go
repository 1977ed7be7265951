// Package transport implements the controller-side connection with multiplexing.
//
// ClientTransport lets several calls wait concurrently on one TCP connection.
// Every request carries a fresh uuid id; a background goroutine (recvLoop)
// reads responses and routes each to its caller by the echoed id.
//
//	goroutine-1 ──Call(id=a)──┐
//	goroutine-2 ──Call(id=b)──┼──→ single TCP conn ──→ Server (answers on its next tick)
//	goroutine-3 ──Notify()────┘
//
//	recvLoop:  ←── response(id=b) → pending["b"] ← body → goroutine-2 wakes up
package transport

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"sync/atomic"

	"tickrpc/codec"
	"tickrpc/protocol"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

var ErrTransportClosed = errors.New("transport closed")

// ClientTransport manages a single multiplexed connection.
type ClientTransport struct {
	conn         net.Conn
	codec        codec.JSONRPCCodec
	maxFrameSize int

	pending sync.Map   // map[string]chan []byte keyed by the raw JSON id
	sending sync.Mutex // one frame at a time on the wire

	closed   atomic.Bool
	readErr  error // set before readDone is closed
	readDone chan struct{}
}

// NewClientTransport wraps conn and starts the receive loop.
// maxFrameSize <= 0 uses protocol.DefaultMaxFrameSize.
func NewClientTransport(conn net.Conn, maxFrameSize int) *ClientTransport {
	t := &ClientTransport{
		conn:         conn,
		maxFrameSize: maxFrameSize,
		readDone:     make(chan struct{}),
	}
	go t.recvLoop()
	return t
}

// Call sends a request and blocks until its response, ctx cancellation,
// or connection loss. The raw response envelope is returned undecoded.
func (t *ClientTransport) Call(ctx context.Context, method string, params ...any) ([]byte, error) {
	if t.closed.Load() {
		return nil, ErrTransportClosed
	}

	id, err := json.Marshal(uuid.NewString())
	if err != nil {
		return nil, err
	}
	body, err := t.codec.EncodeRequest(method, id, params...)
	if err != nil {
		return nil, err
	}

	// Register the response channel BEFORE sending (avoid race with recvLoop).
	respCh := make(chan []byte, 1)
	key := string(id)
	t.pending.Store(key, respCh)
	defer t.pending.Delete(key)

	if err := t.write(body); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case resp := <-respCh:
		return resp, nil
	case <-t.readDone:
		return nil, t.closedErr()
	}
}

// Notify sends a call without id. The server never answers it.
func (t *ClientTransport) Notify(method string, params ...any) error {
	if t.closed.Load() {
		return ErrTransportClosed
	}
	body, err := t.codec.EncodeRequest(method, nil, params...)
	if err != nil {
		return err
	}
	return t.write(body)
}

func (t *ClientTransport) write(body []byte) error {
	t.sending.Lock()
	defer t.sending.Unlock()
	return protocol.Encode(t.conn, body)
}

// recvLoop is the only reader of the connection; frames must be read sequentially.
func (t *ClientTransport) recvLoop() {
	defer close(t.readDone)
	for {
		body, err := protocol.Decode(t.conn, t.maxFrameSize)
		if err != nil {
			t.readErr = err
			return
		}

		id := gjson.GetBytes(body, "id")
		if !id.Exists() {
			continue
		}
		if ch, ok := t.pending.LoadAndDelete(id.Raw); ok {
			ch.(chan []byte) <- body
		}
	}
}

func (t *ClientTransport) closedErr() error {
	if t.readErr != nil && !t.closed.Load() {
		return errors.Wrap(ErrTransportClosed, t.readErr.Error())
	}
	return ErrTransportClosed
}

// Done is closed when the connection can no longer receive responses.
func (t *ClientTransport) Done() <-chan struct{} { return t.readDone }

// Close closes the connection and waits for recvLoop to exit.
func (t *ClientTransport) Close() error {
	if t.closed.Swap(true) {
		<-t.readDone
		return nil
	}
	err := t.conn.Close()
	<-t.readDone
	return err
}

func (t *ClientTransport) Conn() net.Conn { return t.conn }
