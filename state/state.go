// Package state defines the observable state container that backs the
// permission store: the full serialized state shape, the Container
// interface, and an in-memory implementation. Persistent containers live
// in the sqlite, postgres, and mongo subpackages.
package state

import (
	"context"

	"github.com/xraph/caplock/capability"
)

// State is the complete persisted state shape: per-origin capability
// tables, the pending permission-request queue, and the read-only method
// descriptions published at initialization.
type State struct {
	Domains                 map[string]capability.DomainEntry `json:"domains"`
	PermissionsRequests     []capability.PermissionRequest    `json:"permissionsRequests"`
	PermissionsDescriptions map[string]string                 `json:"permissionsDescriptions"`
}

// Empty returns a State with all collections initialized.
func Empty() State {
	return State{
		Domains:                 map[string]capability.DomainEntry{},
		PermissionsRequests:     []capability.PermissionRequest{},
		PermissionsDescriptions: map[string]string{},
	}
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	out := Empty()
	for origin, entry := range s.Domains {
		out.Domains[origin] = entry.Clone()
	}
	out.PermissionsRequests = make([]capability.PermissionRequest, len(s.PermissionsRequests))
	for i, r := range s.PermissionsRequests {
		out.PermissionsRequests[i] = r.Clone()
	}
	for k, v := range s.PermissionsDescriptions {
		out.PermissionsDescriptions[k] = v
	}
	return out
}

// Container is the sole shared mutable resource of the middleware: an
// observable store holding the current State. Every mutation goes through
// Update. Implementations must be safe for concurrent use.
type Container interface {
	// State returns a deep copy of the current state.
	State() State

	// Update replaces the current state and notifies subscribers.
	Update(State)

	// Subscribe registers fn to be called after every Update with a copy
	// of the new state. The returned function cancels the subscription.
	Subscribe(fn func(State)) (cancel func())

	// Ping verifies the container's backing resource is reachable.
	Ping(ctx context.Context) error

	// Close releases the container's backing resource.
	Close() error
}
