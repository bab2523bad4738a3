package state

import (
	"context"
	"sync"
)

// Compile-time interface check.
var _ Container = (*Memory)(nil)

// Memory is a thread-safe in-memory state container. It is the default
// container and the base other containers build on.
type Memory struct {
	mu      sync.RWMutex
	state   State
	subs    map[int]func(State)
	nextSub int
}

// NewMemory creates an in-memory container holding the empty state.
func NewMemory() *Memory {
	return NewMemoryWith(Empty())
}

// NewMemoryWith creates an in-memory container seeded with initial.
func NewMemoryWith(initial State) *Memory {
	return &Memory{
		state: initial.Clone(),
		subs:  map[int]func(State){},
	}
}

// State returns a deep copy of the current state.
func (m *Memory) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Clone()
}

// Update replaces the current state and notifies subscribers. Subscribers
// each receive their own copy and run on the caller's goroutine.
func (m *Memory) Update(next State) {
	m.mu.Lock()
	m.state = next.Clone()
	subs := make([]func(State), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(next.Clone())
	}
}

// Subscribe registers fn for update notifications.
func (m *Memory) Subscribe(fn func(State)) (cancel func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := m.nextSub
	m.nextSub++
	m.subs[key] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, key)
	}
}

// Ping is a no-op for the memory container.
func (m *Memory) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory container.
func (m *Memory) Close() error { return nil }
