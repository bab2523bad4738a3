// Package store implements the permission store: per-origin capability
// tables and the pending permission-request queue, held on an observable
// state container. All operations are synchronous; every mutation is an
// atomic read-modify-write published through the container's Update.
package store

import (
	"errors"
	"sync"

	"github.com/xraph/caplock/capability"
	"github.com/xraph/caplock/state"
)

// ErrOriginRequired is returned when an operation is invoked with an
// empty origin.
var ErrOriginRequired = errors.New("caplock: origin is required")

// Store is the permission store. Invariants held across every operation:
// at most one capability per (origin, method), no empty domain entries,
// and canonical caveat order on every stored capability.
type Store struct {
	mu        sync.Mutex
	container state.Container
}

// New creates a store backed by the given container.
func New(container state.Container) *Store {
	return &Store{container: container}
}

// State returns a deep copy of the full store state.
func (s *Store) State() state.State {
	return s.container.State()
}

// PermissionsForDomain returns the capabilities held by origin. The result
// is a copy; mutating it does not affect the store.
func (s *Store) PermissionsForDomain(origin string) []capability.Capability {
	entry, ok := s.container.State().Domains[origin]
	if !ok {
		return []capability.Capability{}
	}
	return entry.Permissions
}

// GetPermission returns the capability on origin whose parentCapability
// equals method, or nil when the domain holds none. An empty origin is a
// caller error.
func (s *Store) GetPermission(origin, method string) (*capability.Capability, error) {
	if origin == "" {
		return nil, ErrOriginRequired
	}
	for _, c := range s.PermissionsForDomain(origin) {
		if c.ParentCapability == method {
			out := c.Clone()
			return &out, nil
		}
	}
	return nil, nil
}

// HasPermissions reports whether origin holds, for every requested method,
// a capability whose caveats are multiset-equal to the requested caveats.
// Requested caveats must already be in canonical order; the store does not
// re-sort input.
func (s *Store) HasPermissions(origin string, requested capability.RequestedPermissions) bool {
	entry, ok := s.container.State().Domains[origin]
	if !ok {
		return len(requested) == 0
	}
	for method, perm := range requested {
		var held *capability.Capability
		for i := range entry.Permissions {
			if entry.Permissions[i].ParentCapability == method {
				held = &entry.Permissions[i]
				break
			}
		}
		if held == nil {
			return false
		}
		if !capability.CaveatListEqual(held.Caveats, perm.Caveats) {
			return false
		}
	}
	return true
}

// AddPermissionsFor grants origin a fresh capability for each method in
// newPermissions, replacing any existing capability for the same method.
// Other capabilities on the domain are untouched.
func (s *Store) AddPermissionsFor(origin string, newPermissions capability.RequestedPermissions) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.container.State()
	entry := st.Domains[origin]
	for method, perm := range newPermissions {
		kept := entry.Permissions[:0:0]
		for _, c := range entry.Permissions {
			if c.ParentCapability != method {
				kept = append(kept, c)
			}
		}
		entry.Permissions = append(kept, capability.New(method, origin, perm.Caveats))
	}
	setDomain(&st, origin, entry)
	s.container.Update(st)
}

// RemovePermissionsFor removes every capability on origin whose
// parentCapability appears in methods. Removing the last capability
// removes the domain entry.
func (s *Store) RemovePermissionsFor(origin string, methods []string) {
	doomed := make(map[string]struct{}, len(methods))
	for _, m := range methods {
		doomed[m] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.container.State()
	entry, ok := st.Domains[origin]
	if !ok {
		return
	}
	kept := entry.Permissions[:0:0]
	for _, c := range entry.Permissions {
		if _, gone := doomed[c.ParentCapability]; !gone {
			kept = append(kept, c)
		}
	}
	entry.Permissions = kept
	setDomain(&st, origin, entry)
	s.container.Update(st)
}

// SetDomain stores entry under origin. An entry with no permissions
// deletes the domain key so no empty domain entries persist.
func (s *Store) SetDomain(origin string, entry capability.DomainEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.container.State()
	setDomain(&st, origin, entry.Clone())
	s.container.Update(st)
}

// Domains returns a copy of the full domain registry.
func (s *Store) Domains() map[string]capability.DomainEntry {
	return s.container.State().Domains
}

// ClearDomains replaces the domain registry with the empty mapping.
func (s *Store) ClearDomains() {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.container.State()
	st.Domains = map[string]capability.DomainEntry{}
	s.container.Update(st)
}

// Requests returns a copy of the pending permission-request queue.
func (s *Store) Requests() []capability.PermissionRequest {
	return s.container.State().PermissionsRequests
}

// AddRequest appends a pending permission request to the queue.
func (s *Store) AddRequest(req capability.PermissionRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.container.State()
	st.PermissionsRequests = append(st.PermissionsRequests, req.Clone())
	s.container.Update(st)
}

// RemoveRequest removes the pending request with the given metadata id.
// Removing an id that is no longer queued is a no-op.
func (s *Store) RemoveRequest(requestID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.container.State()
	kept := st.PermissionsRequests[:0:0]
	for _, r := range st.PermissionsRequests {
		if r.Metadata.ID != requestID {
			kept = append(kept, r)
		}
	}
	if kept == nil {
		kept = []capability.PermissionRequest{}
	}
	st.PermissionsRequests = kept
	s.container.Update(st)
}

// SetDescriptions publishes the read-only method description table. Called
// once at controller initialization from the restricted-method registry.
func (s *Store) SetDescriptions(descriptions map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.container.State()
	st.PermissionsDescriptions = map[string]string{}
	for k, v := range descriptions {
		st.PermissionsDescriptions[k] = v
	}
	s.container.Update(st)
}

// ResetRequests replaces the pending queue with the empty list. Called at
// controller initialization: pending requests do not survive a restart
// because their approval futures are gone.
func (s *Store) ResetRequests() {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.container.State()
	st.PermissionsRequests = []capability.PermissionRequest{}
	s.container.Update(st)
}

// setDomain writes entry under origin, deleting the key when the entry
// holds no permissions.
func setDomain(st *state.State, origin string, entry capability.DomainEntry) {
	if len(entry.Permissions) == 0 {
		delete(st.Domains, origin)
		return
	}
	st.Domains[origin] = entry
}
