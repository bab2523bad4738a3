package caplock

import (
	"reflect"
	"testing"

	"github.com/xraph/caplock/capability"
)

// grantWithCaveats wires a controller with one restricted method and a
// capability carrying the given caveats.
func grantWithCaveats(t *testing.T, method MiddlewareFunc, caveats []capability.Caveat) *Controller {
	t.Helper()
	ctrl := newTestController(t, Config{
		RestrictedMethods: map[string]RestrictedMethod{
			"readAccounts": {Method: method},
		},
	})
	ctrl.AddPermissionsFor("o1", capability.RequestedPermissions{
		"readAccounts": {Caveats: caveats},
	})
	return ctrl
}

func TestFilterResponseIntersectsArrays(t *testing.T) {
	ctrl := grantWithCaveats(t,
		echoMethod([]any{"0xA", "0xB", "0xC"}),
		[]capability.Caveat{{Type: CaveatFilterResponse, Value: []any{"0xA", "0xB"}}},
	)

	res, _ := dispatch(t, ctrl, "o1", &RequestObject{Method: "readAccounts"})
	if res.Error != nil {
		t.Fatalf("unexpected error: %+v", res.Error)
	}
	want := []any{"0xA", "0xB"}
	if !reflect.DeepEqual(res.Result, want) {
		t.Fatalf("expected %v, got %v", want, res.Result)
	}
}

func TestFilterResponseIntersectsObjects(t *testing.T) {
	ctrl := grantWithCaveats(t,
		echoMethod(map[string]any{"a": 1, "b": 2, "c": 3}),
		[]capability.Caveat{{Type: CaveatFilterResponse, Value: map[string]any{"a": true, "c": true}}},
	)

	res, _ := dispatch(t, ctrl, "o1", &RequestObject{Method: "readAccounts"})
	got, ok := res.Result.(map[string]any)
	if !ok {
		t.Fatalf("expected object result, got %T", res.Result)
	}
	if len(got) != 2 || got["a"] != float64(1) || got["c"] != float64(3) {
		t.Fatalf("expected keys a and c retained, got %v", got)
	}
}

func TestFilterResponseDisjointResultCollapses(t *testing.T) {
	ctrl := grantWithCaveats(t,
		echoMethod([]any{"0xD"}),
		[]capability.Caveat{{Type: CaveatFilterResponse, Value: []any{"0xA"}}},
	)

	res, _ := dispatch(t, ctrl, "o1", &RequestObject{Method: "readAccounts"})
	got, ok := res.Result.([]any)
	if !ok || len(got) != 0 {
		t.Fatalf("expected empty array, got %v", res.Result)
	}
}

func TestFilterParamsAdmitsIncludedRequests(t *testing.T) {
	invoked := false
	ctrl := grantWithCaveats(t,
		func(_ *RequestObject, res *ResponseObject, _ NextFunc, end EndFunc) {
			invoked = true
			res.Result = true
			end(nil)
		},
		[]capability.Caveat{{Type: CaveatFilterParams, Value: []any{
			"allowed",
			map[string]any{"key": "value", "extra": true},
		}}},
	)

	res, _ := dispatch(t, ctrl, "o1", &RequestObject{
		Method: "readAccounts",
		Params: []any{"allowed", map[string]any{"key": "value"}},
	})
	if res.Error != nil || !invoked {
		t.Fatalf("expected admitted request to reach the method, got %+v", res.Error)
	}
}

func TestFilterParamsRejectsExcludedRequests(t *testing.T) {
	invoked := false
	ctrl := grantWithCaveats(t,
		func(_ *RequestObject, res *ResponseObject, _ NextFunc, end EndFunc) {
			invoked = true
			end(nil)
		},
		[]capability.Caveat{{Type: CaveatFilterParams, Value: []any{"allowed"}}},
	)

	tests := []struct {
		name   string
		params []any
	}{
		{"wrong primitive", []any{"forbidden"}},
		{"longer than allowed", []any{"allowed", "extra"}},
		{"object where primitive allowed", []any{map[string]any{"k": "v"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, _ := dispatch(t, ctrl, "o1", &RequestObject{Method: "readAccounts", Params: tt.params})
			if res.Error == nil || res.Error.Code != CodeInvalidParams {
				t.Fatalf("expected invalid-params, got %+v", res.Error)
			}
			if invoked {
				t.Fatal("rejected request must not reach the method")
			}
		})
	}
}

func TestUnknownCaveatTypeFailsClosed(t *testing.T) {
	invoked := false
	ctrl := grantWithCaveats(t,
		func(_ *RequestObject, res *ResponseObject, _ NextFunc, end EndFunc) {
			invoked = true
			end(nil)
		},
		[]capability.Caveat{{Type: "notRegistered", Value: 1}},
	)

	res, _ := dispatch(t, ctrl, "o1", &RequestObject{Method: "readAccounts"})
	if res.Error == nil || res.Error.Code != CodeInvalidParams {
		t.Fatalf("expected invalid-params for unknown caveat type, got %+v", res.Error)
	}
	if invoked {
		t.Fatal("unknown caveat must short-circuit before the method")
	}
}

func TestCaveatPipelineOrder(t *testing.T) {
	var order []string
	registry := DefaultCaveatRegistry()
	registry.Register("probeA", func(_ capability.Caveat) MiddlewareFunc {
		return func(_ *RequestObject, _ *ResponseObject, next NextFunc, _ EndFunc) {
			order = append(order, "reqA")
			next(func() { order = append(order, "resA") })
		}
	})
	registry.Register("probeB", func(_ capability.Caveat) MiddlewareFunc {
		return func(_ *RequestObject, _ *ResponseObject, next NextFunc, _ EndFunc) {
			order = append(order, "reqB")
			next(func() { order = append(order, "resB") })
		}
	})

	ctrl := newTestController(t, Config{
		RestrictedMethods: map[string]RestrictedMethod{
			"readAccounts": {Method: func(_ *RequestObject, res *ResponseObject, _ NextFunc, end EndFunc) {
				order = append(order, "method")
				res.Result = "ok"
				end(nil)
			}},
		},
	}, WithCaveatRegistry(registry))
	ctrl.AddPermissionsFor("o1", capability.RequestedPermissions{
		"readAccounts": {Caveats: []capability.Caveat{
			{Type: "probeA", Value: 1},
			{Type: "probeB", Value: 2},
		}},
	})

	res, _ := dispatch(t, ctrl, "o1", &RequestObject{Method: "readAccounts"})
	if res.Error != nil {
		t.Fatalf("unexpected error: %+v", res.Error)
	}

	// Request phase runs in stored order; response handlers unwind.
	want := []string{"reqA", "reqB", "method", "resB", "resA"}
	if !reflect.DeepEqual(order, want) {
		t.Fatalf("pipeline order %v, want %v", order, want)
	}
}

func TestCaveatShortCircuitSkipsDownstream(t *testing.T) {
	invoked := false
	ctrl := grantWithCaveats(t,
		func(_ *RequestObject, res *ResponseObject, _ NextFunc, end EndFunc) {
			invoked = true
			end(nil)
		},
		[]capability.Caveat{
			{Type: CaveatFilterParams, Value: []any{"only"}},
			{Type: CaveatFilterResponse, Value: []any{"x"}},
		},
	)

	res, _ := dispatch(t, ctrl, "o1", &RequestObject{Method: "readAccounts", Params: []any{"other"}})
	if res.Error == nil || res.Error.Code != CodeInvalidParams {
		t.Fatalf("expected invalid-params, got %+v", res.Error)
	}
	if invoked {
		t.Fatal("short-circuited pipeline must not reach the method")
	}
	if res.Result != nil {
		t.Fatalf("expected no result, got %v", res.Result)
	}
}

func TestRequestPhaseSeesOriginalParams(t *testing.T) {
	var seen []any
	registry := DefaultCaveatRegistry()
	registry.Register("probe", func(_ capability.Caveat) MiddlewareFunc {
		return func(req *RequestObject, _ *ResponseObject, next NextFunc, _ EndFunc) {
			seen = append([]any(nil), req.Params...)
			next()
		}
	})

	ctrl := newTestController(t, Config{
		RestrictedMethods: map[string]RestrictedMethod{
			"readAccounts": {Method: echoMethod(nil)},
		},
	}, WithCaveatRegistry(registry))
	ctrl.AddPermissionsFor("o1", capability.RequestedPermissions{
		"readAccounts": {Caveats: []capability.Caveat{{Type: "probe", Value: nil}}},
	})

	params := []any{"a", float64(2)}
	dispatch(t, ctrl, "o1", &RequestObject{Method: "readAccounts", Params: params})
	if !reflect.DeepEqual(seen, params) {
		t.Fatalf("request phase saw %v, want unmodified %v", seen, params)
	}
}

func TestStructuralSubset(t *testing.T) {
	tests := []struct {
		name    string
		allowed any
		actual  any
		want    bool
	}{
		{"equal primitives", "a", "a", true},
		{"unequal primitives", "a", "b", false},
		{"nested object subset", map[string]any{"a": map[string]any{"b": 1.0, "c": 2.0}}, map[string]any{"a": map[string]any{"b": 1.0}}, true},
		{"missing key", map[string]any{"a": 1.0}, map[string]any{"b": 1.0}, false},
		{"array prefix", []any{"x", "y"}, []any{"x"}, true},
		{"array too long", []any{"x"}, []any{"x", "y"}, false},
		{"array element mismatch", []any{"x", "y"}, []any{"y"}, false},
		{"type mismatch", []any{"x"}, map[string]any{}, false},
		{"empty object under any object", map[string]any{"a": 1.0}, map[string]any{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isStructuralSubset(tt.allowed, tt.actual); got != tt.want {
				t.Errorf("isStructuralSubset = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStructuralIntersect(t *testing.T) {
	tests := []struct {
		name    string
		allowed any
		result  any
		want    any
	}{
		{"array overlap", []any{"a", "b"}, []any{"b", "c"}, []any{"b"}},
		{"object overlap", map[string]any{"a": true}, map[string]any{"a": 1.0, "b": 2.0}, map[string]any{"a": 1.0}},
		{"disjoint array", []any{"a"}, []any{"z"}, []any{}},
		{"type mismatch collapses to result type", map[string]any{"a": true}, []any{"a"}, []any{}},
		{"equal primitive survives", "v", "v", "v"},
		{"unequal primitive nulled", "v", "w", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := structuralIntersect(tt.allowed, tt.result)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("structuralIntersect = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRegistryGenerateUnknown(t *testing.T) {
	r := DefaultCaveatRegistry()
	if _, err := r.Generate(capability.Caveat{Type: "mystery"}); err == nil {
		t.Fatal("expected error for unregistered caveat type")
	}
}
