package test

import (
	"context"
	"encoding/base64"
	"math"
	"sync"
	"testing"
	"time"

	"tickrpc/client"
	"tickrpc/host"
	"tickrpc/message"
	"tickrpc/middleware"
	"tickrpc/registry"
	"tickrpc/server"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/rpc/v2/json2"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"
)

// game stands in for a host with its own update loop. Its state is only
// touched from the loop goroutine, so handlers reach it without locks.
type game struct {
	frame int
	score int
}

func (g *game) register(reg *registry.Registry) {
	reg.Register("GetFrame", func(context.Context, message.Params) (any, error) {
		return g.frame, nil
	})
	reg.Register("AddScore", func(_ context.Context, p message.Params) (any, error) {
		n, err := p.Int(0)
		if err != nil {
			return nil, err
		}
		g.score += int(n)
		return g.score, nil
	})
}

type IntegrationSuite struct {
	suite.Suite

	svr    *server.Server
	cli    *client.Client
	game   *game
	stop   context.CancelFunc
	loop   sync.WaitGroup
	served chan error
	leaks  goleak.Option
}

func TestIntegration(t *testing.T) {
	suite.Run(t, new(IntegrationSuite))
}

func (s *IntegrationSuite) SetupTest() {
	s.leaks = goleak.IgnoreCurrent()
	clk := clock.New()
	profile := server.NewProfile(clk, host.ProfileDump, host.ProfileScreenshot)

	reg := registry.New()
	(&host.Host{
		Screen:  &host.StaticScreen{Width: 64, Height: 32},
		Scene:   &host.Node{Name: "Root", Children: []*host.Node{{Name: "Player"}}},
		Profile: profile,
	}).Register(reg)
	s.game = &game{}
	s.game.register(reg)

	s.svr = server.NewServer(reg, server.WithClock(clk), server.WithProfile(profile))
	s.svr.Use(middleware.LoggingMiddleware(nil, clk))
	addr, err := s.svr.Listen("tcp", "127.0.0.1:0")
	s.Require().NoError(err)

	s.served = make(chan error, 1)
	go func() { s.served <- s.svr.Serve() }()

	// The host's own frame loop calls RunOneTick once per frame.
	ctx, cancel := context.WithCancel(context.Background())
	s.stop = cancel
	s.loop.Add(1)
	go func() {
		defer s.loop.Done()
		for ctx.Err() == nil {
			s.game.frame++
			_, err := s.svr.RunOneTick(ctx)
			s.NoError(err)
			time.Sleep(time.Millisecond)
		}
	}()

	s.cli, err = client.Dial(context.Background(), addr.String(), client.WithPoolSize(2))
	s.Require().NoError(err)
}

func (s *IntegrationSuite) TearDownTest() {
	s.Require().NoError(s.cli.Close())
	s.stop()
	s.loop.Wait()
	s.Require().NoError(s.svr.Shutdown(time.Second))
	s.Require().NoError(<-s.served)
	goleak.VerifyNone(s.T(), s.leaks)
}

func (s *IntegrationSuite) TestAdd() {
	var sum int
	s.Require().NoError(s.cli.Call(context.Background(), "Add", &sum, 2, 3))
	s.Equal(5, sum)
}

func (s *IntegrationSuite) TestHostMethods() {
	ctx := context.Background()

	var size []float64
	s.Require().NoError(s.cli.Call(ctx, "GetScreenSize", &size))
	s.Equal([]float64{64, 32}, size)

	var shot []string
	s.Require().NoError(s.cli.Call(ctx, "Screenshot", &shot))
	s.Require().Len(shot, 2)
	s.Equal("jpg", shot[1])
	_, err := base64.StdEncoding.DecodeString(shot[0])
	s.NoError(err)

	var tree map[string]any
	s.Require().NoError(s.cli.Call(ctx, "Dump", &tree))
	s.Equal("Root", tree["name"])
	s.Len(tree["children"], 1)

	var prof map[string]int64
	s.Require().NoError(s.cli.Call(ctx, "GetDebugProfilingData", &prof))
	for _, key := range []string{
		server.ProfileHandleRequest, server.ProfilePackResponse, server.ProfileSendResponse,
		host.ProfileDump, host.ProfileScreenshot,
	} {
		s.Contains(prof, key)
	}
}

func (s *IntegrationSuite) TestErrorsKeepTheConnectionUsable() {
	ctx := context.Background()

	err := s.cli.Call(ctx, "Missing", nil)
	var rpcErr *json2.Error
	s.Require().True(errors.As(err, &rpcErr))
	s.Equal(json2.E_NO_METHOD, rpcErr.Code)

	err = s.cli.Call(ctx, "Add", nil, "a", "b")
	s.Require().True(errors.As(err, &rpcErr))
	s.Equal(json2.E_BAD_PARAMS, rpcErr.Code)

	err = s.cli.Call(ctx, "Add", nil, int64(math.MaxInt64), 1)
	s.Require().True(errors.As(err, &rpcErr))
	s.Equal(json2.E_BAD_PARAMS, rpcErr.Code)

	var sum int
	s.Require().NoError(s.cli.Call(ctx, "Add", &sum, 1, 1))
	s.Equal(2, sum)
}

func (s *IntegrationSuite) TestHandlersRunOnTheHostLoop() {
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.NoError(s.cli.Call(ctx, "AddScore", nil, 1))
		}()
	}
	wg.Wait()

	var total int
	s.Require().NoError(s.cli.Call(ctx, "AddScore", &total, 0))
	s.Equal(50, total)

	var frame int
	s.Require().NoError(s.cli.Call(ctx, "GetFrame", &frame))
	s.Positive(frame)
}

func (s *IntegrationSuite) TestNotificationsRunWithoutReply() {
	ctx := context.Background()
	s.Require().NoError(s.cli.Notify(ctx, "AddScore", 7))

	s.Eventually(func() bool {
		var total int
		return s.cli.Call(ctx, "AddScore", &total, 0) == nil && total == 7
	}, time.Second, 5*time.Millisecond)
}

func TestServerRunLoop(t *testing.T) {
	reg := registry.New()
	reg.Register("Add", host.Add)
	svr := server.NewServer(reg, server.WithTickInterval(time.Millisecond))
	addr, err := svr.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	served := make(chan error, 1)
	go func() { served <- svr.Serve() }()

	ctx, cancel := context.WithCancel(context.Background())
	ran := make(chan error, 1)
	go func() { ran <- svr.Run(ctx) }()

	cli, err := client.Dial(context.Background(), addr.String())
	require.NoError(t, err)

	for i := 1; i <= 10; i++ {
		var sum int
		require.NoError(t, cli.Call(context.Background(), "Add", &sum, i, i*10))
		assert.Equal(t, i+i*10, sum)
	}

	require.NoError(t, cli.Close())
	cancel()
	require.NoError(t, <-ran)
	require.NoError(t, svr.Shutdown(time.Second))
	require.NoError(t, <-served)
}
