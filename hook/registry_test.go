package hook

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/caplock/capability"
)

// recorder implements a subset of the hook interfaces.
type recorder struct {
	authorized []string
	granted    []string
	resolved   []string
	fail       bool
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) OnAuthorized(_ context.Context, origin, methodKey string, granted bool, _ any) error {
	if r.fail {
		return errors.New("boom")
	}
	r.authorized = append(r.authorized, origin+":"+methodKey)
	return nil
}

func (r *recorder) OnPermissionsGranted(_ context.Context, origin string, granted []capability.Capability) error {
	for _, c := range granted {
		r.granted = append(r.granted, origin+":"+c.ParentCapability)
	}
	return nil
}

func (r *recorder) OnRequestResolved(_ context.Context, requestID string, approved bool) error {
	r.resolved = append(r.resolved, requestID)
	return nil
}

func TestRegistryDispatchesImplementedEvents(t *testing.T) {
	rec := &recorder{}
	reg := NewRegistry(nil)
	reg.Register(rec)

	ctx := context.Background()
	reg.EmitAuthorized(ctx, "o1", "readContacts", true, nil)
	reg.EmitPermissionsGranted(ctx, "o1", []capability.Capability{capability.New("m", "o1", nil)})
	reg.EmitRequestResolved(ctx, "r1", false)
	// recorder does not implement these; must be a no-op.
	reg.EmitPermissionsRemoved(ctx, "o1", []string{"m"})
	reg.EmitRequestQueued(ctx, &capability.PermissionRequest{})
	reg.EmitShutdown(ctx)

	if len(rec.authorized) != 1 || rec.authorized[0] != "o1:readContacts" {
		t.Errorf("authorized events: %v", rec.authorized)
	}
	if len(rec.granted) != 1 || rec.granted[0] != "o1:m" {
		t.Errorf("granted events: %v", rec.granted)
	}
	if len(rec.resolved) != 1 || rec.resolved[0] != "r1" {
		t.Errorf("resolved events: %v", rec.resolved)
	}
}

func TestRegistrySwallowsHookErrors(t *testing.T) {
	failing := &recorder{fail: true}
	healthy := &recorder{}
	reg := NewRegistry(nil)
	reg.Register(failing)
	reg.Register(healthy)

	// A failing hook must not prevent later hooks from running.
	reg.EmitAuthorized(context.Background(), "o1", "m", true, nil)
	if len(healthy.authorized) != 1 {
		t.Fatal("failing hook blocked later hooks")
	}
}

func TestRegistryTracksHooks(t *testing.T) {
	reg := NewRegistry(nil)
	reg.Register(&recorder{})
	reg.Register(NewAudit(nil))

	if len(reg.Hooks()) != 2 {
		t.Fatalf("expected 2 hooks, got %d", len(reg.Hooks()))
	}
}
