package services

import (
	"context"
	"sync"
)

// EngineFactory builds the engine for a newly seen driver.
type EngineFactory func(driverID string) *Engine

// SessionRegistry keeps one engine per driver so trips never share a
// discovery set or cache.
type SessionRegistry struct {
	mu      sync.Mutex
	engines map[string]*Engine
	factory EngineFactory
}

func NewSessionRegistry(factory EngineFactory) *SessionRegistry {
	return &SessionRegistry{
		engines: make(map[string]*Engine),
		factory: factory,
	}
}

// Engine returns the driver's engine, creating it on first use.
func (r *SessionRegistry) Engine(driverID string) *Engine {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.engines[driverID]
	if !ok {
		e = r.factory(driverID)
		r.engines[driverID] = e
	}
	return e
}

// End closes the driver's session and releases its engine.
func (r *SessionRegistry) End(ctx context.Context, driverID string) error {
	r.mu.Lock()
	e, ok := r.engines[driverID]
	delete(r.engines, driverID)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return e.EndSession(ctx)
}

func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.engines)
}
