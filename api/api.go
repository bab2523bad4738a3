// Package api provides HTTP handlers for the caplock permissions
// controller: an RPC endpoint that runs requests through the middleware,
// and admin routes over domains and the pending request queue.
package api

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/caplock"
	"github.com/xraph/caplock/capability"
)

// API wires all caplock HTTP handlers together.
type API struct {
	ctrl   *caplock.Controller
	router forge.Router
}

// New creates an API from a Controller and a Forge router.
func New(ctrl *caplock.Controller, router forge.Router) *API {
	return &API{ctrl: ctrl, router: router}
}

// Handler returns the fully assembled http.Handler with all routes.
func (a *API) Handler() http.Handler {
	if a.router == nil {
		a.router = forge.NewRouter()
	}
	if err := a.RegisterRoutes(a.router); err != nil {
		panic("caplock: register routes: " + err.Error())
	}
	return a.router.Handler()
}

// RegisterRoutes registers all API routes into the given Forge router.
func (a *API) RegisterRoutes(router forge.Router) error {
	registerers := []func(forge.Router) error{
		a.registerRPCRoutes,
		a.registerDomainRoutes,
		a.registerRequestRoutes,
	}
	for _, fn := range registerers {
		if err := fn(router); err != nil {
			return err
		}
	}
	return nil
}

func (a *API) registerRPCRoutes(router forge.Router) error {
	g := router.Group("/v1/caplock", forge.WithGroupTags("caplock"))

	return g.POST("/rpc/:origin", a.rpc,
		forge.WithSummary("Dispatch a request through the permissions middleware"),
		forge.WithDescription("Classifies the request as safe, internal, or restricted and runs it through the capability checks for the origin."),
		forge.WithOperationID("caplockRPC"),
		forge.WithRequestSchema(RPCRequest{}),
		forge.WithResponseSchema(http.StatusOK, "RPC response", RPCResponse{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) registerDomainRoutes(router forge.Router) error {
	g := router.Group("/v1/caplock", forge.WithGroupTags("caplock"))

	if err := g.GET("/domains", a.listDomains,
		forge.WithSummary("List domains"),
		forge.WithDescription("Returns every origin holding capabilities, with its capability list."),
		forge.WithOperationID("caplockListDomains"),
		forge.WithResponseSchema(http.StatusOK, "Domain registry", map[string]capability.DomainEntry{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/domains/:origin", a.getDomain,
		forge.WithSummary("Get domain permissions"),
		forge.WithDescription("Returns the capabilities held by one origin."),
		forge.WithOperationID("caplockGetDomain"),
		forge.WithResponseSchema(http.StatusOK, "Capabilities", []capability.Capability{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.DELETE("/domains/:origin", a.deleteDomain,
		forge.WithSummary("Delete domain"),
		forge.WithDescription("Removes every capability held by the origin."),
		forge.WithOperationID("caplockDeleteDomain"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	)
}

func (a *API) registerRequestRoutes(router forge.Router) error {
	g := router.Group("/v1/caplock", forge.WithGroupTags("caplock"))

	if err := g.GET("/requests", a.listRequests,
		forge.WithSummary("List pending permission requests"),
		forge.WithOperationID("caplockListRequests"),
		forge.WithResponseSchema(http.StatusOK, "Pending requests", []capability.PermissionRequest{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.DELETE("/requests/:id", a.deleteRequest,
		forge.WithSummary("Drop a pending permission request"),
		forge.WithDescription("Removes the queue entry; the in-flight approval is not aborted."),
		forge.WithOperationID("caplockDeleteRequest"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	)
}

func (a *API) rpc(ctx forge.Context, req *RPCRequest) (*RPCResponse, error) {
	origin := ctx.Param("origin")
	if origin == "" || req.Method == "" {
		return nil, forge.BadRequest("origin and method are required")
	}

	res := a.ctrl.HandleRequest(ctx.Context(),
		capability.OriginMetadata{Origin: origin},
		&caplock.RequestObject{ID: req.ID, Method: req.Method, Params: req.Params},
	)

	resp := &RPCResponse{Result: res.Result, Error: res.Error}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) listDomains(ctx forge.Context, _ *struct{}) (map[string]capability.DomainEntry, error) {
	domains := a.ctrl.GetDomains()
	return domains, ctx.JSON(http.StatusOK, domains)
}

func (a *API) getDomain(ctx forge.Context, _ *struct{}) ([]capability.Capability, error) {
	origin := ctx.Param("origin")
	if origin == "" {
		return nil, forge.BadRequest("origin is required")
	}
	perms := a.ctrl.GetPermissionsForDomain(origin)
	return perms, ctx.JSON(http.StatusOK, perms)
}

func (a *API) deleteDomain(ctx forge.Context, _ *struct{}) (*struct{}, error) {
	origin := ctx.Param("origin")
	if origin == "" {
		return nil, forge.BadRequest("origin is required")
	}
	a.ctrl.SetDomain(origin, capability.DomainEntry{})
	return nil, ctx.NoContent(http.StatusNoContent)
}

func (a *API) listRequests(ctx forge.Context, _ *struct{}) ([]capability.PermissionRequest, error) {
	requests := a.ctrl.GetPermissionsRequests()
	return requests, ctx.JSON(http.StatusOK, requests)
}

func (a *API) deleteRequest(ctx forge.Context, _ *struct{}) (*struct{}, error) {
	requestID := ctx.Param("id")
	if requestID == "" {
		return nil, forge.BadRequest("request id is required")
	}
	a.ctrl.RemovePermissionsRequest(requestID)
	return nil, ctx.NoContent(http.StatusNoContent)
}

// RPCRequest is the request body for the RPC dispatch endpoint.
type RPCRequest struct {
	ID     any    `json:"id,omitempty" description:"Transport correlation id, echoed back"`
	Method string `json:"method" description:"Method name"`
	Params []any  `json:"params,omitempty" description:"Positional params"`
}

// RPCResponse carries the dispatch outcome.
type RPCResponse struct {
	Result any                  `json:"result,omitempty" description:"Method result"`
	Error  *caplock.ErrorObject `json:"error,omitempty" description:"Protocol error"`
}
