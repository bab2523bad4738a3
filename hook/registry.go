package hook

import (
	"context"
	"log/slog"

	"github.com/xraph/caplock/capability"
)

// Named entry types pair a hook with the hook name for logging.

type authorizedEntry struct {
	name string
	hook Authorized
}
type permissionsGrantedEntry struct {
	name string
	hook PermissionsGranted
}
type permissionsRemovedEntry struct {
	name string
	hook PermissionsRemoved
}
type requestQueuedEntry struct {
	name string
	hook RequestQueued
}
type requestResolvedEntry struct {
	name string
	hook RequestResolved
}
type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered hooks and dispatches lifecycle events. It
// type-caches hooks at registration time so emit calls iterate only over
// hooks implementing the relevant event. Hook failures are logged and
// never fail the request.
type Registry struct {
	hooks  []Hook
	logger *slog.Logger

	authorized         []authorizedEntry
	permissionsGranted []permissionsGrantedEntry
	permissionsRemoved []permissionsRemovedEntry
	requestQueued      []requestQueuedEntry
	requestResolved    []requestResolvedEntry
	shutdown           []shutdownEntry
}

// NewRegistry creates a hook registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds a hook and caches the events it implements.
func (r *Registry) Register(h Hook) {
	r.hooks = append(r.hooks, h)
	name := h.Name()
	if v, ok := h.(Authorized); ok {
		r.authorized = append(r.authorized, authorizedEntry{name, v})
	}
	if v, ok := h.(PermissionsGranted); ok {
		r.permissionsGranted = append(r.permissionsGranted, permissionsGrantedEntry{name, v})
	}
	if v, ok := h.(PermissionsRemoved); ok {
		r.permissionsRemoved = append(r.permissionsRemoved, permissionsRemovedEntry{name, v})
	}
	if v, ok := h.(RequestQueued); ok {
		r.requestQueued = append(r.requestQueued, requestQueuedEntry{name, v})
	}
	if v, ok := h.(RequestResolved); ok {
		r.requestResolved = append(r.requestResolved, requestResolvedEntry{name, v})
	}
	if v, ok := h.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, v})
	}
}

// Hooks returns the registered hooks.
func (r *Registry) Hooks() []Hook { return r.hooks }

// EmitAuthorized notifies Authorized hooks.
func (r *Registry) EmitAuthorized(ctx context.Context, origin, methodKey string, granted bool, req any) {
	for _, e := range r.authorized {
		if err := e.hook.OnAuthorized(ctx, origin, methodKey, granted, req); err != nil {
			r.logHookError(e.name, "authorized", err)
		}
	}
}

// EmitPermissionsGranted notifies PermissionsGranted hooks.
func (r *Registry) EmitPermissionsGranted(ctx context.Context, origin string, granted []capability.Capability) {
	for _, e := range r.permissionsGranted {
		if err := e.hook.OnPermissionsGranted(ctx, origin, granted); err != nil {
			r.logHookError(e.name, "permissions_granted", err)
		}
	}
}

// EmitPermissionsRemoved notifies PermissionsRemoved hooks.
func (r *Registry) EmitPermissionsRemoved(ctx context.Context, origin string, methods []string) {
	for _, e := range r.permissionsRemoved {
		if err := e.hook.OnPermissionsRemoved(ctx, origin, methods); err != nil {
			r.logHookError(e.name, "permissions_removed", err)
		}
	}
}

// EmitRequestQueued notifies RequestQueued hooks.
func (r *Registry) EmitRequestQueued(ctx context.Context, req *capability.PermissionRequest) {
	for _, e := range r.requestQueued {
		if err := e.hook.OnRequestQueued(ctx, req); err != nil {
			r.logHookError(e.name, "request_queued", err)
		}
	}
}

// EmitRequestResolved notifies RequestResolved hooks.
func (r *Registry) EmitRequestResolved(ctx context.Context, requestID string, approved bool) {
	for _, e := range r.requestResolved {
		if err := e.hook.OnRequestResolved(ctx, requestID, approved); err != nil {
			r.logHookError(e.name, "request_resolved", err)
		}
	}
}

// EmitShutdown notifies Shutdown hooks.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError(e.name, "shutdown", err)
		}
	}
}

func (r *Registry) logHookError(name, event string, err error) {
	r.logger.Warn("caplock hook failed",
		slog.String("hook", name),
		slog.String("event", event),
		slog.Any("error", err),
	)
}
