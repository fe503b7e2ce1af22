package apicache

import (
	"errors"
	"slices"
	"sync"
)

// Registry keeps track of engines for callers that need to enumerate
// every cache in the process, e.g. to report or shut them down together.
// Engines do not register themselves.
type Registry struct {
	mu      sync.Mutex
	engines map[string]*Engine
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{engines: make(map[string]*Engine)}
}

// New creates an engine and registers it under name, replacing any engine
// already registered there.
func (r *Registry) New(name string, opts ...Option) *Engine {
	e := New(opts...)
	r.Register(name, e)
	return e
}

// Register adds e under name.
func (r *Registry) Register(name string, e *Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.engines[name]; !ok {
		r.order = append(r.order, name)
	}
	r.engines[name] = e
}

// Get returns the engine registered under name.
func (r *Registry) Get(name string) (*Engine, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.engines[name]
	return e, ok
}

// Names lists registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.order)
}

// Close closes every registered engine.
func (r *Registry) Close() error {
	r.mu.Lock()
	engines := make([]*Engine, 0, len(r.order))
	for _, name := range r.order {
		engines = append(engines, r.engines[name])
	}
	r.mu.Unlock()

	var errs []error
	for _, e := range engines {
		if err := e.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
