package caplock

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/xraph/caplock/capability"
	"github.com/xraph/caplock/hook"
	"github.com/xraph/caplock/state"
	"github.com/xraph/caplock/store"
)

// Controller wires the permission store, caveat registry, method router,
// and permission-request workflow behind a single middleware entry point.
type Controller struct {
	config       Config
	logger       *slog.Logger
	registry     *CaveatRegistry
	container    state.Container
	perms        *store.Store
	hooks        *hook.Registry
	safeMethods  map[string]struct{}
	restored     *state.State
	pendingHooks []hook.Hook
}

// New creates a Controller from the given configuration. It publishes the
// initial state (empty request queue, method descriptions from the
// restricted-method registry, any restored domains) and wires the two
// internal handlers under the configured prefix.
func New(cfg Config, opts ...Option) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Controller{
		config:   cfg,
		logger:   slog.Default(),
		registry: DefaultCaveatRegistry(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.container == nil {
		c.container = state.NewMemory()
	}

	c.hooks = hook.NewRegistry(c.logger)
	for _, h := range c.pendingHooks {
		c.hooks.Register(h)
	}
	c.pendingHooks = nil

	c.safeMethods = make(map[string]struct{}, len(cfg.SafeMethods))
	for _, m := range cfg.SafeMethods {
		c.safeMethods[m] = struct{}{}
	}

	c.perms = store.New(c.container)
	if c.restored != nil {
		for origin, entry := range c.restored.Domains {
			c.perms.SetDomain(origin, entry)
		}
		c.restored = nil
	}
	c.perms.ResetRequests()

	descriptions := make(map[string]string, len(cfg.RestrictedMethods))
	for name, entry := range cfg.RestrictedMethods {
		descriptions[name] = entry.Description
	}
	c.perms.SetDescriptions(descriptions)

	return c, nil
}

// ProviderMiddleware curries the middleware entry point for one origin.
// The returned middleware classifies each request as safe, internal, or
// restricted and routes it accordingly.
func (c *Controller) ProviderMiddleware(origin capability.OriginMetadata) MiddlewareFunc {
	return func(req *RequestObject, res *ResponseObject, next NextFunc, end EndFunc) {
		c.handle(origin, req, res, next, end)
	}
}

func (c *Controller) handle(origin capability.OriginMetadata, req *RequestObject, res *ResponseObject, next NextFunc, end EndFunc) {
	// Safe-method pass-through wins over everything, internal dispatch
	// over restricted authorization.
	if _, safe := c.safeMethods[req.Method]; safe {
		next()
		return
	}
	switch req.Method {
	case c.config.getPermissionsName():
		c.handleGetPermissions(origin, req, res, end)
	case c.config.requestPermissionsName():
		c.handleRequestPermissions(origin, req, res, end)
	default:
		c.handleRestricted(origin, req, res, next, end)
	}
}

func (c *Controller) handleRestricted(origin capability.OriginMetadata, req *RequestObject, res *ResponseObject, next NextFunc, end EndFunc) {
	ctx := context.Background()
	methodKey := c.methodKeyFor(req.Method)
	permission, err := c.perms.GetPermission(origin.Origin, methodKey)
	if err != nil {
		c.hooks.EmitAuthorized(ctx, origin.Origin, methodKey, false, req)
		res.Error = InternalError(err)
		end(res.Error)
		return
	}
	if permission == nil {
		c.hooks.EmitAuthorized(ctx, origin.Origin, methodKey, false, req)
		res.Error = Unauthorized(req)
		end(res.Error)
		return
	}
	c.hooks.EmitAuthorized(ctx, origin.Origin, methodKey, true, req)
	c.executeMethod(methodKey, permission, req, res, next, end)
}

// methodKeyFor resolves a method name against the restricted-method
// registry. Exact matches win; otherwise "_"-separated segments are
// accumulated with their trailing underscore and the shortest accumulated
// prefix registered as a restricted method is returned. The empty string
// signals no such restricted method.
func (c *Controller) methodKeyFor(method string) string {
	if _, ok := c.config.RestrictedMethods[method]; ok {
		return method
	}
	if idx := strings.Index(method, "_"); idx <= 0 {
		return ""
	}
	prefix := ""
	for _, segment := range strings.Split(method, "_") {
		prefix += segment + "_"
		if _, ok := c.config.RestrictedMethods[prefix]; ok {
			return prefix
		}
	}
	return ""
}

// ──────────────────────────────────────────────────
// Admin surface (host-callable, not over the wire)
// ──────────────────────────────────────────────────

// GetPermissionsForDomain returns the capabilities held by origin.
func (c *Controller) GetPermissionsForDomain(origin string) []capability.Capability {
	return c.perms.PermissionsForDomain(origin)
}

// GetPermission returns origin's capability for method, or nil.
func (c *Controller) GetPermission(origin, method string) (*capability.Capability, error) {
	return c.perms.GetPermission(origin, method)
}

// HasPermissions reports whether origin holds capabilities matching every
// requested method with multiset-equal caveats. The input is canonicalized
// before comparison.
func (c *Controller) HasPermissions(origin string, requested capability.RequestedPermissions) bool {
	return c.perms.HasPermissions(origin, canonicalize(requested))
}

// GetDomains returns a copy of the full domain registry.
func (c *Controller) GetDomains() map[string]capability.DomainEntry {
	return c.perms.Domains()
}

// SetDomain stores entry under origin; an empty entry deletes the domain.
func (c *Controller) SetDomain(origin string, entry capability.DomainEntry) {
	c.perms.SetDomain(origin, entry)
}

// AddPermissionsFor grants origin a fresh capability per requested method,
// replacing grants for the same methods.
func (c *Controller) AddPermissionsFor(origin string, newPermissions capability.RequestedPermissions) {
	normalized := canonicalize(newPermissions)
	c.perms.AddPermissionsFor(origin, normalized)
	c.hooks.EmitPermissionsGranted(context.Background(), origin, c.grantedCapabilities(origin, normalized))
}

// RemovePermissionsFor removes origin's capabilities for the given methods.
func (c *Controller) RemovePermissionsFor(origin string, methods []string) {
	c.perms.RemovePermissionsFor(origin, methods)
	c.hooks.EmitPermissionsRemoved(context.Background(), origin, methods)
}

// ClearDomains removes all domains.
func (c *Controller) ClearDomains() {
	c.perms.ClearDomains()
}

// GetPermissionsRequests returns the pending permission-request queue.
func (c *Controller) GetPermissionsRequests() []capability.PermissionRequest {
	return c.perms.Requests()
}

// RemovePermissionsRequest drops the pending request with the given id.
// The in-flight approval future is not aborted; its eventual cleanup is a
// no-op.
func (c *Controller) RemovePermissionsRequest(requestID string) {
	c.perms.RemoveRequest(requestID)
}

// GrantNewPermissions grants origin every approved permission after
// validating each method against the restricted-method registry. Returns
// the origin's full capability list, or a protocol error when an approved
// method is unknown.
func (c *Controller) GrantNewPermissions(origin string, approved capability.RequestedPermissions) ([]capability.Capability, *ErrorObject) {
	for method := range approved {
		if c.methodKeyFor(method) == "" {
			return nil, MethodNotFound()
		}
	}
	normalized := canonicalize(approved)
	c.perms.AddPermissionsFor(origin, normalized)
	c.hooks.EmitPermissionsGranted(context.Background(), origin, c.grantedCapabilities(origin, normalized))
	return c.perms.PermissionsForDomain(origin), nil
}

// State returns a deep copy of the full persisted state.
func (c *Controller) State() state.State {
	return c.perms.State()
}

// Ping verifies the state container's backing resource is reachable.
func (c *Controller) Ping(ctx context.Context) error {
	return c.container.Ping(ctx)
}

// Shutdown notifies shutdown hooks and closes the state container.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.hooks.EmitShutdown(ctx)
	return c.container.Close()
}

// HandleRequest runs one request through the middleware to completion and
// returns the finished response. It exists for hosts without their own
// middleware stack (the HTTP surface uses it); safe methods have no
// downstream handler here and end with a method-not-found error. When ctx
// expires before the request ends, a context error response is returned
// and the in-flight dispatch is abandoned.
func (c *Controller) HandleRequest(ctx context.Context, origin capability.OriginMetadata, req *RequestObject) *ResponseObject {
	res := &ResponseObject{}
	done := make(chan struct{})
	var once sync.Once
	finish := func() { once.Do(func() { close(done) }) }

	go c.handle(origin, req, res,
		func(handlers ...ReturnHandler) {
			for i := len(handlers) - 1; i >= 0; i-- {
				handlers[i]()
			}
			if res.Error == nil && res.Result == nil {
				res.Error = MethodNotFound()
			}
			finish()
		},
		func(_ *ErrorObject) { finish() },
	)

	select {
	case <-done:
		return res
	case <-ctx.Done():
		return &ResponseObject{Error: InternalError(ctx.Err())}
	}
}

// canonicalize deep-copies requested permissions and sorts every caveat
// list into canonical order.
func canonicalize(requested capability.RequestedPermissions) capability.RequestedPermissions {
	normalized := requested.Clone()
	for method, perm := range normalized {
		capability.SortCaveats(perm.Caveats)
		normalized[method] = perm
	}
	return normalized
}

// grantedCapabilities returns origin's stored capabilities for exactly the
// methods just granted.
func (c *Controller) grantedCapabilities(origin string, granted capability.RequestedPermissions) []capability.Capability {
	out := make([]capability.Capability, 0, len(granted))
	for _, stored := range c.perms.PermissionsForDomain(origin) {
		if _, ok := granted[stored.ParentCapability]; ok {
			out = append(out, stored)
		}
	}
	return out
}
