package server

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Profile keys recorded by the dispatcher for the last processed message.
const (
	ProfileHandleRequest = "handleRpcRequest"
	ProfilePackResponse  = "packRpcResponse"
	ProfileSendResponse  = "sendRpcResponse"
)

// Profile keeps the latest duration per named step. Host handlers may add
// their own keys (e.g. "dump", "screenshot").
type Profile struct {
	clock   clock.Clock
	mu      sync.Mutex
	entries map[string]time.Duration
}

func NewProfile(clk clock.Clock, keys ...string) *Profile {
	if clk == nil {
		clk = clock.New()
	}
	p := &Profile{clock: clk, entries: make(map[string]time.Duration)}
	for _, key := range append([]string{ProfileHandleRequest, ProfilePackResponse, ProfileSendResponse}, keys...) {
		p.entries[key] = 0
	}
	return p
}

func (p *Profile) Set(key string, d time.Duration) {
	p.mu.Lock()
	p.entries[key] = d
	p.mu.Unlock()
}

// Start returns a func that records the time elapsed since Start under key.
func (p *Profile) Start(key string) func() {
	start := p.clock.Now()
	return func() { p.Set(key, p.clock.Since(start)) }
}

// Snapshot returns every entry in milliseconds.
func (p *Profile) Snapshot() map[string]int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]int64, len(p.entries))
	for key, d := range p.entries {
		out[key] = d.Milliseconds()
	}
	return out
}
