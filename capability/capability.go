// Package capability defines the capability record granted to an origin,
// the caveats that constrain it, and the permission-request envelope used
// while a grant is pending user approval.
package capability

import (
	"time"

	"github.com/xraph/caplock/id"
)

// ContextURI is the constant JSON-LD framing tag carried by every
// capability record.
const ContextURI = "https://github.com/xraph/caplock/context/v1"

// Capability is an immutable record granting one origin the right to invoke
// one restricted method, optionally constrained by caveats. It is created by
// a grant, never mutated, and destroyed by removal or a re-grant of the same
// method.
type Capability struct {
	Context          []string `json:"@context"`
	ParentCapability string   `json:"parentCapability"`
	Invoker          string   `json:"invoker"`
	ID               string   `json:"id"`
	Date             int64    `json:"date"`
	Caveats          []Caveat `json:"caveats,omitempty"`
}

// New constructs a capability for the given method and invoker. It stamps a
// fresh id, the current time in Unix milliseconds, and the constant
// @context. Caveats are deep-copied and stored in canonical order; the
// caller's slice is never aliased.
func New(method, invoker string, caveats []Caveat) Capability {
	c := Capability{
		Context:          []string{ContextURI},
		ParentCapability: method,
		Invoker:          invoker,
		ID:               id.NewCapabilityID().String(),
		Date:             time.Now().UnixMilli(),
		Caveats:          CloneCaveats(caveats),
	}
	SortCaveats(c.Caveats)
	return c
}

// Clone returns a deep copy of the capability.
func (c Capability) Clone() Capability {
	out := c
	out.Context = append([]string(nil), c.Context...)
	out.Caveats = CloneCaveats(c.Caveats)
	return out
}

// DomainEntry holds everything stored for one origin. An entry with no
// permissions is never persisted; the store deletes the domain key instead.
type DomainEntry struct {
	Permissions []Capability `json:"permissions"`
}

// Clone returns a deep copy of the entry.
func (e DomainEntry) Clone() DomainEntry {
	out := DomainEntry{}
	if e.Permissions != nil {
		out.Permissions = make([]Capability, len(e.Permissions))
		for i, c := range e.Permissions {
			out.Permissions[i] = c.Clone()
		}
	}
	return out
}

// OriginMetadata identifies a requester. Origin is the unit of
// authorization; ID is a request-correlation token, synthesized when the
// requester does not supply one. Extra carries requester-supplied metadata
// fields that the host chose to pass along.
type OriginMetadata struct {
	Origin string         `json:"origin"`
	ID     string         `json:"id,omitempty"`
	Extra  map[string]any `json:"extra,omitempty"`
}

// Clone returns a deep copy of the metadata.
func (m OriginMetadata) Clone() OriginMetadata {
	out := m
	if m.Extra != nil {
		out.Extra = make(map[string]any, len(m.Extra))
		for k, v := range m.Extra {
			out.Extra[k] = CloneValue(v)
		}
	}
	return out
}

// RequestedPermission describes one requested method grant: the caveats the
// requester proposes to be bound by.
type RequestedPermission struct {
	Caveats []Caveat `json:"caveats,omitempty"`
}

// RequestedPermissions maps method names to their requested constraints.
type RequestedPermissions map[string]RequestedPermission

// Clone returns a deep copy of the requested permissions.
func (r RequestedPermissions) Clone() RequestedPermissions {
	if r == nil {
		return nil
	}
	out := make(RequestedPermissions, len(r))
	for k, v := range r {
		out[k] = RequestedPermission{Caveats: CloneCaveats(v.Caveats)}
	}
	return out
}

// PermissionRequest is a pending interactive proposal to grant one or more
// capabilities to one origin. It lives in the pending queue, keyed by
// Metadata.ID, while user approval is outstanding.
type PermissionRequest struct {
	Origin      string               `json:"origin"`
	Metadata    OriginMetadata       `json:"metadata"`
	Permissions RequestedPermissions `json:"permissions"`
}

// Clone returns a deep copy of the request.
func (p PermissionRequest) Clone() PermissionRequest {
	return PermissionRequest{
		Origin:      p.Origin,
		Metadata:    p.Metadata.Clone(),
		Permissions: p.Permissions.Clone(),
	}
}
