// Package hook defines the lifecycle hook system for caplock. Hooks are
// notified of lifecycle events (authorization decided, permissions
// granted, request queued, etc.) and can react — logging, metrics,
// tracing.
//
// Each lifecycle event is a separate interface so hooks opt in only to
// the events they care about.
package hook

import (
	"context"

	"github.com/xraph/caplock/capability"
)

// Hook is the base interface all hooks must implement.
type Hook interface {
	// Name returns a unique human-readable name for the hook.
	Name() string
}

// Authorized is called after every restricted-method authorization
// decision. The req parameter is *caplock.RequestObject (passed as any to
// avoid an import cycle).
type Authorized interface {
	OnAuthorized(ctx context.Context, origin, methodKey string, granted bool, req any) error
}

// PermissionsGranted is called after capabilities are granted to an origin.
type PermissionsGranted interface {
	OnPermissionsGranted(ctx context.Context, origin string, granted []capability.Capability) error
}

// PermissionsRemoved is called after capabilities are removed from an origin.
type PermissionsRemoved interface {
	OnPermissionsRemoved(ctx context.Context, origin string, methods []string) error
}

// RequestQueued is called after a permission request enters the pending
// queue.
type RequestQueued interface {
	OnRequestQueued(ctx context.Context, req *capability.PermissionRequest) error
}

// RequestResolved is called after a pending permission request leaves the
// queue, whether approved, rejected, or failed.
type RequestResolved interface {
	OnRequestResolved(ctx context.Context, requestID string, approved bool) error
}

// Shutdown is called when the controller shuts down.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
