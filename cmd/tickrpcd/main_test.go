package main

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	cfg, err := parseFlags([]string{"-addr", "127.0.0.1:0", "-tick", "5ms", "-rate", "20"})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:0", cfg.addr)
	assert.Equal(t, 5*time.Millisecond, cfg.tick)
	assert.Equal(t, 20.0, cfg.rate)
	assert.Equal(t, 10, cfg.burst)
	assert.Equal(t, "1280x720", cfg.screen)
}

func TestParseScreen(t *testing.T) {
	w, h, err := parseScreen("1920X1080")
	require.NoError(t, err)
	assert.Equal(t, 1920, w)
	assert.Equal(t, 1080, h)

	for _, bad := range []string{"", "1920", "0x10", "axb"} {
		_, _, err := parseScreen(bad)
		assert.Error(t, err, bad)
	}
}

func TestNewLogger(t *testing.T) {
	_, err := newLogger("debug", "json")
	require.NoError(t, err)
	_, err = newLogger("loud", "text")
	assert.Error(t, err)
	_, err = newLogger("info", "xml")
	assert.Error(t, err)
}

type stubServer struct {
	err     error
	timeout time.Duration
}

func (s *stubServer) Shutdown(timeout time.Duration) error {
	s.timeout = timeout
	return s.err
}

func TestShutdownLogsFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	svr := &stubServer{err: errors.New("timeout waiting for connections to close")}
	err := shutdown(svr, logger, time.Second)
	require.ErrorIs(t, err, svr.err)
	assert.Equal(t, time.Second, svr.timeout)
	assert.Contains(t, buf.String(), "level=ERROR")
	assert.Contains(t, buf.String(), "timeout waiting for connections to close")

	buf.Reset()
	require.NoError(t, shutdown(&stubServer{}, logger, time.Second))
	assert.Empty(t, buf.String())
}
