package server

import (
	"log/slog"
	"net"
	"sync"
	"testing"

	"tickrpc/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnSwapPending(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()
	c := NewConn(local, slog.New(slog.DiscardHandler))
	defer c.Close()

	assert.Empty(t, c.SwapPending())

	c.Append("a")
	c.Append("b")
	assert.Equal(t, []string{"a", "b"}, c.SwapPending())
	assert.Empty(t, c.SwapPending())

	c.Append("c")
	assert.Equal(t, []string{"c"}, c.SwapPending())
}

func TestConnSwapConcurrentWithAppend(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()
	c := NewConn(local, slog.New(slog.DiscardHandler))
	defer c.Close()

	const n = 1000
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range n {
			c.Append("m")
		}
	}()

	got := 0
	for got < n {
		got += len(c.SwapPending())
	}
	wg.Wait()
	assert.Equal(t, n, got+len(c.SwapPending()))
}

func TestConnSend(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()
	c := NewConn(local, slog.New(slog.DiscardHandler))
	defer c.Close()

	done := make(chan []byte, 1)
	go func() {
		body, err := protocol.Decode(remote, 0)
		assert.NoError(t, err)
		done <- body
	}()

	require.NoError(t, c.Send([]byte(`{"jsonrpc":"2.0","id":1,"result":5}`)))
	assert.Equal(t, `{"jsonrpc":"2.0","id":1,"result":5}`, string(<-done))
}

func TestConnSendAfterClose(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()
	c := NewConn(local, slog.New(slog.DiscardHandler))

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.True(t, c.Closed())
	assert.ErrorIs(t, c.Send([]byte("x")), ErrConnClosed)
}

func TestConnIDsAreUnique(t *testing.T) {
	a1, a2 := net.Pipe()
	b1, b2 := net.Pipe()
	defer a2.Close()
	defer b2.Close()

	ca := NewConn(a1, slog.New(slog.DiscardHandler))
	cb := NewConn(b1, slog.New(slog.DiscardHandler))
	defer ca.Close()
	defer cb.Close()

	assert.NotEmpty(t, ca.ID())
	assert.NotEqual(t, ca.ID(), cb.ID())
}
