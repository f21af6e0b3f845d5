package kernel

import (
	"context"
	"sync"

	"github.com/Connor22/hydrus/errors"
)

// JobHandler is implemented by a named unit of maintenance or request work
// dispatched through a HandlerRegistry rather than closed over directly,
// so daemons can be composed from config (role, maintenance schedule)
// instead of hardcoded call sites.
type JobHandler interface {
	Name() string
	Handle(ctx context.Context, payload interface{}) (interface{}, error)
}

// HandlerFunc adapts a plain function to JobHandler.
type HandlerFunc struct {
	name string
	fn   func(ctx context.Context, payload interface{}) (interface{}, error)
}

func NewHandlerFunc(name string, fn func(ctx context.Context, payload interface{}) (interface{}, error)) *HandlerFunc {
	return &HandlerFunc{name: name, fn: fn}
}

func (h *HandlerFunc) Name() string { return h.name }
func (h *HandlerFunc) Handle(ctx context.Context, payload interface{}) (interface{}, error) {
	return h.fn(ctx, payload)
}

// ErrHandlerNotFound is returned by Dispatch when no handler is registered
// under the requested name.
var ErrHandlerNotFound = errors.New("no handler registered for that name")

// HandlerRegistry maps names to JobHandlers so maintenance jobs, request
// endpoints and daemon-internal commands can all be registered and invoked
// uniformly.
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string]JobHandler
}

// NewHandlerRegistry returns an empty registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: make(map[string]JobHandler)}
}

// Register adds handler under its own Name(). Registering the same name
// twice replaces the previous handler.
func (r *HandlerRegistry) Register(handler JobHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[handler.Name()] = handler
}

// Dispatch invokes the handler registered under name.
func (r *HandlerRegistry) Dispatch(ctx context.Context, name string, payload interface{}) (interface{}, error) {
	r.mu.RLock()
	h, ok := r.handlers[name]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrHandlerNotFound, "handler %q", name)
	}
	return h.Handle(ctx, payload)
}

// Names returns every registered handler name, for health/introspection endpoints.
func (r *HandlerRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	return names
}
