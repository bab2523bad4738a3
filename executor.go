package caplock

import (
	"log/slog"
	"sync"

	"github.com/xraph/caplock/capability"
)

// executeMethod dispatches one authorized call to its restricted method.
// With caveats present it builds a one-shot pipeline: one stage per caveat
// in stored order, the target method as the terminal stage. Without
// caveats the target is invoked directly with the transport's next/end.
func (c *Controller) executeMethod(methodKey string, permission *capability.Capability, req *RequestObject, res *ResponseObject, next NextFunc, end EndFunc) {
	entry, ok := c.config.RestrictedMethods[methodKey]
	if methodKey == "" || !ok || entry.Method == nil {
		res.Error = MethodNotFound()
		end(res.Error)
		return
	}

	if len(permission.Caveats) == 0 {
		entry.Method(req, res, next, end)
		return
	}

	stack := make([]MiddlewareFunc, 0, len(permission.Caveats)+1)
	for _, cv := range permission.Caveats {
		mw, err := c.registry.Generate(cv)
		if err != nil {
			c.logger.Warn("caveat rejected",
				slog.String("method_key", methodKey),
				slog.String("caveat_type", cv.Type),
				slog.Any("error", err),
			)
			res.Error = InvalidParams(req)
			end(res.Error)
			return
		}
		stack = append(stack, mw)
	}
	stack = append(stack, entry.Method)

	runPipeline(stack, req, res, end)
}

// runPipeline drives a one-shot middleware stack. A stage calling end
// short-circuits; a stage calling next registers optional response-phase
// handlers and passes control downstream. After the terminal stage ends
// (or the last stage yields), response-phase handlers run in reverse
// registration order, then the outer end fires with the final error.
// Terminal stages may call end asynchronously.
func runPipeline(stack []MiddlewareFunc, req *RequestObject, res *ResponseObject, end EndFunc) {
	var handlers []ReturnHandler
	var once sync.Once

	finish := func(errObj *ErrorObject) {
		once.Do(func() {
			if errObj != nil {
				res.Error = errObj
			}
			for i := len(handlers) - 1; i >= 0; i-- {
				handlers[i]()
			}
			end(res.Error)
		})
	}

	var run func(i int)
	run = func(i int) {
		if i >= len(stack) {
			finish(res.Error)
			return
		}
		stack[i](req, res,
			func(h ...ReturnHandler) {
				handlers = append(handlers, h...)
				run(i + 1)
			},
			finish,
		)
	}
	run(0)
}
