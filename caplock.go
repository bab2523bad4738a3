// Package caplock provides capability-based permissions middleware for
// request/response protocols in which each call carries a method name and
// positional params and produces either a result or an error.
//
// The middleware sits between an identified origin (a "domain") and a set
// of restricted methods exposed by a host. For each incoming request it
// decides whether the domain holds a capability authorizing the method,
// runs caveat filters that constrain the request and response, and
// dispatches to the underlying implementation. Two internal methods let a
// domain enumerate its permissions and request new ones, the latter through
// an interactive user-approval handshake.
//
//	ctrl, err := caplock.New(caplock.Config{
//	    RestrictedMethods: map[string]caplock.RestrictedMethod{
//	        "readAccounts": {
//	            Description: "Read the accounts list",
//	            Method: func(req *caplock.RequestObject, res *caplock.ResponseObject, next caplock.NextFunc, end caplock.EndFunc) {
//	                res.Result = []string{"0xA", "0xB"}
//	                end(nil)
//	            },
//	        },
//	    },
//	    RequestUserApproval: approval.NewTerminal(nil).Func(),
//	})
//	mw := ctrl.ProviderMiddleware(capability.OriginMetadata{Origin: "site.example"})
package caplock

// RequestObject is one incoming call: a method name, positional params,
// and an optional correlation id supplied by the transport.
type RequestObject struct {
	ID     any    `json:"id,omitempty"`
	Method string `json:"method"`
	Params []any  `json:"params,omitempty"`
}

// ResponseObject accumulates the outcome of a call. Exactly one of Result
// or Error is set by the time the request ends.
type ResponseObject struct {
	Result any          `json:"result,omitempty"`
	Error  *ErrorObject `json:"error,omitempty"`
}

// ReturnHandler runs during the response phase of a pipeline, after the
// terminal method has produced a result. Handlers registered via next run
// in reverse registration order, unwinding the stack upstream.
type ReturnHandler func()

// NextFunc yields control to the next middleware in the stack. Handlers
// passed here run in the response phase.
type NextFunc func(handlers ...ReturnHandler)

// EndFunc finishes the request. The error, if any, is already recorded on
// the response object when the callback fires.
type EndFunc func(err *ErrorObject)

// MiddlewareFunc is one stage of a request pipeline. A stage either calls
// next to pass the request downstream or end to finish it; restricted
// method implementations are terminal stages and normally call end.
// Terminal stages may complete asynchronously.
type MiddlewareFunc func(req *RequestObject, res *ResponseObject, next NextFunc, end EndFunc)

// RestrictedMethod is one entry of the restricted-method registry: the
// middleware implementing the method and the human-readable description
// published in permissionsDescriptions.
type RestrictedMethod struct {
	Description string
	Method      MiddlewareFunc
}
