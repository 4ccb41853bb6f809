// Package admission bounds concurrent executions by a configured capacity.
// It is the only resource coordination in the system.
package admission

import (
	"errors"
	"sync"
)

// ErrCapacityExhausted is returned by Gate's caller-facing helpers when no
// slot is available.
var ErrCapacityExhausted = errors.New("capacity exhausted")

// Gate counts in-flight containers and refuses overflow. The counter is
// protected by a mutex since admission needs an atomic check-then-increment
// against max_concurrency, which a bare atomic integer can't express without
// a retry loop.
type Gate struct {
	mu             sync.Mutex
	running        int
	maxConcurrency int
}

// New builds a Gate with the given capacity.
func New(maxConcurrency int) *Gate {
	return &Gate{maxConcurrency: maxConcurrency}
}

// TryEnter reserves a slot if running < max_concurrency, incrementing running
// and returning true; otherwise it returns false without side effects.
func (g *Gate) TryEnter() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running >= g.maxConcurrency {
		return false
	}
	g.running++
	return true
}

// Leave releases a slot reserved by a prior successful TryEnter. Must be
// paired with every successful TryEnter, including on all failure paths.
func (g *Gate) Leave() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running > 0 {
		g.running--
	}
}

// Busy reports whether running >= max_concurrency; used by the /health_check
// route.
func (g *Gate) Busy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running >= g.maxConcurrency
}

// Running returns the current in-flight count, for observability/tests.
func (g *Gate) Running() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}

// Do wraps fn between TryEnter and Leave, guaranteeing release on every
// termination path, including a panic inside fn. Returns ErrCapacityExhausted
// if no slot was available.
func (g *Gate) Do(fn func() error) error {
	if !g.TryEnter() {
		return ErrCapacityExhausted
	}
	defer g.Leave()
	return fn()
}
