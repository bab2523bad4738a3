package caplock

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/xraph/caplock/capability"
)

// Built-in caveat types.
const (
	// CaveatFilterParams constrains the params a request may carry.
	CaveatFilterParams = "filterParams"

	// CaveatFilterResponse constrains the result a request may observe.
	CaveatFilterResponse = "filterResponse"
)

// ErrUnknownCaveatType is returned when a stored caveat names a type with
// no registered generator. Unknown caveats fail closed: the dispatch is
// rejected rather than the caveat silently skipped.
var ErrUnknownCaveatType = errors.New("caplock: unknown caveat type")

// CaveatGenerator turns a stored caveat into a pipeline stage that sits
// inline in the request pipeline around the restricted method.
type CaveatGenerator func(cv capability.Caveat) MiddlewareFunc

// CaveatRegistry maps caveat types to their generators. The registry is an
// extension point: hosts register additional caveat types at construction.
type CaveatRegistry struct {
	generators map[string]CaveatGenerator
}

// NewCaveatRegistry creates an empty registry.
func NewCaveatRegistry() *CaveatRegistry {
	return &CaveatRegistry{generators: map[string]CaveatGenerator{}}
}

// DefaultCaveatRegistry creates a registry holding the built-in
// filterParams and filterResponse generators.
func DefaultCaveatRegistry() *CaveatRegistry {
	r := NewCaveatRegistry()
	r.Register(CaveatFilterParams, filterParamsGenerator)
	r.Register(CaveatFilterResponse, filterResponseGenerator)
	return r
}

// Register installs a generator for the given caveat type, replacing any
// previous registration.
func (r *CaveatRegistry) Register(caveatType string, gen CaveatGenerator) {
	r.generators[caveatType] = gen
}

// Generate resolves the caveat's generator and produces its pipeline
// stage. A caveat type with no registration is an error.
func (r *CaveatRegistry) Generate(cv capability.Caveat) (MiddlewareFunc, error) {
	gen, ok := r.generators[cv.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCaveatType, cv.Type)
	}
	return gen(cv), nil
}

// filterParamsGenerator admits a request iff its params are structurally
// included in the caveat value: arrays element-wise, objects key-wise,
// primitives strictly equal.
func filterParamsGenerator(cv capability.Caveat) MiddlewareFunc {
	allowed := capability.Normalize(cv.Value)
	return func(req *RequestObject, res *ResponseObject, next NextFunc, end EndFunc) {
		if !isStructuralSubset(allowed, capability.Normalize(req.Params)) {
			res.Error = InvalidParams(req)
			end(res.Error)
			return
		}
		next()
	}
}

// filterResponseGenerator replaces the result set by the terminal method
// with its structural intersection with the caveat value, mutating the
// response in place during the response phase.
func filterResponseGenerator(cv capability.Caveat) MiddlewareFunc {
	allowed := capability.Normalize(cv.Value)
	return func(req *RequestObject, res *ResponseObject, next NextFunc, end EndFunc) {
		next(func() {
			if res.Error != nil || res.Result == nil {
				return
			}
			res.Result = structuralIntersect(allowed, capability.Normalize(res.Result))
		})
	}
}

// isStructuralSubset reports whether actual is structurally included in
// allowed. Both values must be normalized JSON shapes.
func isStructuralSubset(allowed, actual any) bool {
	switch part := actual.(type) {
	case []any:
		permitted, ok := allowed.([]any)
		if !ok || len(part) > len(permitted) {
			return false
		}
		for i := range part {
			if !isStructuralSubset(permitted[i], part[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		permitted, ok := allowed.(map[string]any)
		if !ok {
			return false
		}
		for key, sub := range part {
			permittedSub, present := permitted[key]
			if !present || !isStructuralSubset(permittedSub, sub) {
				return false
			}
		}
		return true
	default:
		return allowed == actual
	}
}

// structuralIntersect retains only the entries of result present in
// allowed: array members that appear in allowed, object keys present in
// allowed. A result wholly outside allowed collapses to the empty
// container of its own type; a primitive result survives only when equal.
func structuralIntersect(allowed, result any) any {
	switch r := result.(type) {
	case []any:
		permitted, ok := allowed.([]any)
		if !ok {
			return []any{}
		}
		kept := []any{}
		for _, member := range r {
			for _, candidate := range permitted {
				if reflect.DeepEqual(member, candidate) {
					kept = append(kept, member)
					break
				}
			}
		}
		return kept
	case map[string]any:
		permitted, ok := allowed.(map[string]any)
		if !ok {
			return map[string]any{}
		}
		kept := map[string]any{}
		for key, v := range r {
			if _, present := permitted[key]; present {
				kept[key] = v
			}
		}
		return kept
	default:
		if reflect.DeepEqual(allowed, r) {
			return r
		}
		return nil
	}
}
