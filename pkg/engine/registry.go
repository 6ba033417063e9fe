package engine

import (
	"context"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// Registry tracks running engines by configuration name so a
// configuration never has two concurrent runs and status or stop
// requests can find their engine.
type Registry struct {
	mu      sync.Mutex
	running map[string]*Engine
	log     hclog.Logger
}

// NewRegistry builds an empty registry.
func NewRegistry(log hclog.Logger) *Registry {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Registry{
		running: make(map[string]*Engine),
		log:     log.Named("registry"),
	}
}

// Run executes the engine, refusing a duplicate start for the same
// configuration with a warning rather than an error.
func (r *Registry) Run(ctx context.Context, e *Engine) error {
	r.mu.Lock()
	if _, exists := r.running[e.cfg.Name]; exists {
		r.mu.Unlock()
		r.log.Warn("migration already running, ignoring duplicate start", "config", e.cfg.Name)
		return nil
	}
	r.running[e.cfg.Name] = e
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.running, e.cfg.Name)
		r.mu.Unlock()
	}()

	return e.Run(ctx)
}

// Get returns the running engine for a configuration, or nil.
func (r *Registry) Get(configName string) *Engine {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running[configName]
}

// Stop requests a cooperative stop of a running configuration and
// reports whether one was running.
func (r *Registry) Stop(configName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.running[configName]
	if !ok {
		return false
	}
	e.Stop()
	return true
}
