package config

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/fabula/internal/store"
)

// ErrBackendNotRegistered is returned by [Registry.CreateSource] when no
// factory has been registered under the requested backend name.
var ErrBackendNotRegistered = errors.New("config: backend not registered")

// SourceFactory builds a [store.Source] from the stories configuration. The
// context covers any connection setup the backend needs.
type SourceFactory func(ctx context.Context, cfg StoriesConfig) (store.Source, error)

// Registry maps backend names to story source factories. It lets the
// binary decide which backends to link — the postgres factory, for
// instance, lives in package main where the connection pool is built.
// Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[Backend]SourceFactory
}

// NewRegistry returns a registry with the fs and http backends
// pre-registered.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[Backend]SourceFactory)}
	r.Register(BackendFS, func(_ context.Context, cfg StoriesConfig) (store.Source, error) {
		return store.NewDirSource(cfg.Dir), nil
	})
	r.Register(BackendHTTP, func(_ context.Context, cfg StoriesConfig) (store.Source, error) {
		breaker := store.NewBreaker(store.BreakerConfig{Name: cfg.BaseURL})
		return store.NewHTTPSource(cfg.BaseURL, store.WithBreaker(breaker)), nil
	})
	return r
}

// Register registers a source factory under name. Subsequent calls with the
// same name overwrite the previous registration.
func (r *Registry) Register(name Backend, factory SourceFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// CreateSource instantiates the story source selected by cfg.Backend.
// Returns [ErrBackendNotRegistered] if no factory has been registered for
// that backend.
func (r *Registry) CreateSource(ctx context.Context, cfg StoriesConfig) (store.Source, error) {
	r.mu.RLock()
	factory, ok := r.factories[cfg.Backend]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBackendNotRegistered, cfg.Backend)
	}
	return factory(ctx, cfg)
}
