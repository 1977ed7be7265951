// Package registry maps method names to host-supplied handlers.
//
// The registry is populated once at startup, before the tick loop runs, and
// treated as read-only afterwards. Invoke runs the handler synchronously on the
// caller's goroutine; the dispatcher only ever calls it from the tick goroutine.
package registry

import (
	"context"
	"sort"
	"sync"

	"tickrpc/message"

	"github.com/pkg/errors"
)

// ErrUnknownMethod is returned by Invoke when no handler is registered for the name.
var ErrUnknownMethod = errors.New("unknown method")

// Handler executes one method. It reports bad params with *message.ArgumentError.
type Handler func(ctx context.Context, params message.Params) (any, error)

// Registry is a name → handler table.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func New() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a handler, replacing any existing one with the same name.
func (r *Registry) Register(name string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

func (r *Registry) Lookup(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns the registered method names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invoke looks up name and calls its handler. Handler errors are returned unchanged.
func (r *Registry) Invoke(ctx context.Context, name string, params message.Params) (any, error) {
	h, ok := r.Lookup(name)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownMethod, "%q", name)
	}
	return h(ctx, params)
}
