// Command tickrpcd runs a headless host: a static scene and screen served over
// the tick dispatcher, for driving controllers against without a game engine.
package main

import (
	"context"
	"flag"
	"fmt"
	"image/color"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"tickrpc/host"
	"tickrpc/middleware"
	"tickrpc/registry"
	"tickrpc/server"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "tickrpcd:", err)
		os.Exit(1)
	}
}

type config struct {
	addr      string
	tick      time.Duration
	logLevel  string
	logFormat string
	screen    string
	rate      float64
	burst     int
}

func parseFlags(args []string) (config, error) {
	var cfg config
	fs := flag.NewFlagSet("tickrpcd", flag.ContinueOnError)
	fs.StringVar(&cfg.addr, "addr", ":5001", "listen address")
	fs.DurationVar(&cfg.tick, "tick", server.DefaultTickInterval, "dispatcher tick interval")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "debug, info, warn or error")
	fs.StringVar(&cfg.logFormat, "log-format", "text", "text or json")
	fs.StringVar(&cfg.screen, "screen", "1280x720", "screen size WIDTHxHEIGHT")
	fs.Float64Var(&cfg.rate, "rate", 0, "max calls per second, 0 disables limiting")
	fs.IntVar(&cfg.burst, "burst", 10, "rate limiter burst")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func newLogger(level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, errors.Wrapf(err, "log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch format {
	case "text":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	default:
		return nil, errors.Errorf("unknown log format %q", format)
	}
}

func parseScreen(s string) (int, int, error) {
	var w, h int
	if _, err := fmt.Sscanf(strings.ToLower(s), "%dx%d", &w, &h); err != nil || w <= 0 || h <= 0 {
		return 0, 0, errors.Errorf("invalid screen size %q", s)
	}
	return w, h, nil
}

func demoScene(w, h int) *host.Node {
	return &host.Node{
		Name:    "Root",
		Payload: map[string]any{"type": "Root", "visible": true, "size": []float64{1, 1}},
		Children: []*host.Node{{
			Name: "Canvas",
			Payload: map[string]any{
				"type":    "Canvas",
				"visible": true,
				"pos":     []float64{0.5, 0.5},
				"size":    []float64{1, 1},
				"screen":  []int{w, h},
			},
			Children: []*host.Node{{
				Name:    "StartButton",
				Payload: map[string]any{"type": "Button", "visible": true, "pos": []float64{0.5, 0.8}, "size": []float64{0.2, 0.1}},
			}},
		}},
	}
}

func run(args []string) error {
	cfg, err := parseFlags(args)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.logLevel, cfg.logFormat)
	if err != nil {
		return err
	}
	w, h, err := parseScreen(cfg.screen)
	if err != nil {
		return err
	}

	clk := clock.New()
	profile := server.NewProfile(clk, host.ProfileDump, host.ProfileScreenshot)
	reg := registry.New()
	(&host.Host{
		Screen:  &host.StaticScreen{Width: w, Height: h, Fill: color.RGBA{R: 32, G: 96, B: 160, A: 255}},
		Scene:   demoScene(w, h),
		Profile: profile,
	}).Register(reg)

	svr := server.NewServer(reg,
		server.WithLogger(logger),
		server.WithClock(clk),
		server.WithProfile(profile),
		server.WithTickInterval(cfg.tick),
	)
	svr.Use(middleware.LoggingMiddleware(logger, clk))
	if cfg.rate > 0 {
		svr.Use(middleware.RateLimitMiddleware(cfg.rate, cfg.burst, clk))
	}

	if _, err := svr.Listen("tcp", cfg.addr); err != nil {
		return err
	}
	served := make(chan error, 1)
	go func() { served <- svr.Serve() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("host ready", "methods", reg.Names(), "tick", cfg.tick)
	runErr := make(chan error, 1)
	go func() { runErr <- svr.Run(ctx) }()

	select {
	case err := <-served:
		// Accept loop died on its own; stop ticking and report.
		stop()
		<-runErr
		shutdown(svr, logger, time.Second)
		return err
	case err := <-runErr:
		if err != nil {
			return err
		}
	}

	logger.Info("shutting down")
	if err := shutdown(svr, logger, 5*time.Second); err != nil {
		return err
	}
	return <-served
}

type shutdowner interface {
	Shutdown(timeout time.Duration) error
}

// shutdown stops svr and logs a failure before returning it.
func shutdown(svr shutdowner, logger *slog.Logger, timeout time.Duration) error {
	err := svr.Shutdown(timeout)
	if err != nil {
		logger.Error("shutdown", "timeout", timeout, "error", err)
	}
	return err
}
