// Package host provides the handlers a game or app process exposes to the
// controller: arithmetic, screen capture and scene introspection.
//
// Every handler runs on the tick goroutine, so it may read host state directly.
package host

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"math"

	"tickrpc/message"
	"tickrpc/registry"
	"tickrpc/server"

	"github.com/pkg/errors"
)

const (
	ProfileDump       = "dump"
	ProfileScreenshot = "screenshot"

	// JPEGQuality is the quality used by Screenshot.
	JPEGQuality = 80
)

var (
	ErrNoScreen = errors.New("no screen attached")
	ErrNoScene  = errors.New("no scene attached")
)

// Screen is the rendering surface of the host.
type Screen interface {
	Size() (width, height int)
	Capture() (image.Image, error)
}

// Dumper produces the scene hierarchy as plain, serializable values.
type Dumper interface {
	DumpHierarchy() (any, error)
}

type Host struct {
	Screen  Screen
	Scene   Dumper
	Profile *server.Profile
}

// Register adds every host method to reg.
func (h *Host) Register(reg *registry.Registry) {
	reg.Register("Add", Add)
	reg.Register("Screenshot", h.Screenshot)
	reg.Register("GetScreenSize", h.GetScreenSize)
	reg.Register("Dump", h.Dump)
	reg.Register("GetDebugProfilingData", h.GetDebugProfilingData)
}

// Add returns the sum of two integer params.
func Add(_ context.Context, params message.Params) (any, error) {
	first, err := params.Int(0)
	if err != nil {
		return nil, err
	}
	second, err := params.Int(1)
	if err != nil {
		return nil, err
	}
	if (second > 0 && first > math.MaxInt64-second) || (second < 0 && first < math.MinInt64-second) {
		return nil, &message.ArgumentError{Index: 1, Reason: fmt.Sprintf("%d + %d overflows int64", first, second)}
	}
	return first + second, nil
}

// GetScreenSize returns [width, height].
func (h *Host) GetScreenSize(context.Context, message.Params) (any, error) {
	if h.Screen == nil {
		return nil, ErrNoScreen
	}
	w, hgt := h.Screen.Size()
	return []float64{float64(w), float64(hgt)}, nil
}

// Screenshot returns [base64 jpeg, "jpg"].
func (h *Host) Screenshot(context.Context, message.Params) (any, error) {
	if h.Screen == nil {
		return nil, ErrNoScreen
	}
	if h.Profile != nil {
		defer h.Profile.Start(ProfileScreenshot)()
	}

	img, err := h.Screen.Capture()
	if err != nil {
		return nil, errors.Wrap(err, "capturing screen")
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, errors.Wrap(err, "encoding screenshot")
	}
	return []any{base64.StdEncoding.EncodeToString(buf.Bytes()), "jpg"}, nil
}

func (h *Host) Dump(context.Context, message.Params) (any, error) {
	if h.Scene == nil {
		return nil, ErrNoScene
	}
	if h.Profile != nil {
		defer h.Profile.Start(ProfileDump)()
	}
	tree, err := h.Scene.DumpHierarchy()
	if err != nil {
		return nil, errors.Wrap(err, "dumping hierarchy")
	}
	return tree, nil
}

// GetDebugProfilingData returns the latest step durations in milliseconds.
func (h *Host) GetDebugProfilingData(context.Context, message.Params) (any, error) {
	if h.Profile == nil {
		return map[string]int64{}, nil
	}
	return h.Profile.Snapshot(), nil
}
