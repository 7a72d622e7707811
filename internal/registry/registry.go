package registry

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/specialistvlad/stepgrid/internal/step"
)

// Module is the interface that all built-in modules implement to be
// registered.
type Module interface {
	Register(r *Registry)
}

// Registry holds the handlers of a single application instance.
type Registry struct {
	handlers map[string]step.Func
}

// New creates a registry and registers modules into it.
func New(modules ...Module) *Registry {
	r := &Registry{handlers: make(map[string]step.Func)}
	for _, m := range modules {
		m.Register(r)
	}
	return r
}

// Register adds a handler under name. Registering a name twice is a
// programming error and panics.
func (r *Registry) Register(name string, fn step.Func) {
	if fn == nil {
		panic(fmt.Sprintf("handler '%s' is nil", name))
	}
	if _, exists := r.handlers[name]; exists {
		panic(fmt.Sprintf("handler with name '%s' already registered", name))
	}
	slog.Debug("Registering step handler.", "name", name)
	r.handlers[name] = fn
}

// Handler returns the handler registered under name.
func (r *Registry) Handler(name string) (step.Func, bool) {
	fn, ok := r.handlers[name]
	return fn, ok
}

// Names returns the registered handler names in sorted order.
func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(r.handlers))
}

func (r *Registry) Len() int { return len(r.handlers) }
