// Package syncx holds small typed synchronization helpers.
package syncx

import "sync"

// RWGuard is a mutex-guarded value with typed accessors. It suits
// tuning values the control loop reads every tick but the control
// surface writes rarely, like the dim-strength multiplier.
type RWGuard[T any] struct {
	mu    sync.RWMutex
	value T
}

// NewGuard creates a guarded value.
func NewGuard[T any](initial T) *RWGuard[T] {
	return &RWGuard[T]{value: initial}
}

// Get returns a copy of the guarded value.
func (g *RWGuard[T]) Get() T {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.value
}

// Set replaces the guarded value.
func (g *RWGuard[T]) Set(v T) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.value = v
}
