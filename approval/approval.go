// Package approval provides ready-made user-approval functions for the
// caplock controller: canned approvers for hosts and tests, and an
// interactive terminal prompter.
package approval

import (
	"context"

	"github.com/xraph/caplock"
	"github.com/xraph/caplock/capability"
)

// AllowAll approves every requested permission as asked. Development and
// test use only.
func AllowAll() caplock.ApprovalFunc {
	return func(_ context.Context, req *capability.PermissionRequest) (capability.RequestedPermissions, error) {
		return req.Permissions.Clone(), nil
	}
}

// DenyAll rejects every permission request.
func DenyAll() caplock.ApprovalFunc {
	return func(_ context.Context, _ *capability.PermissionRequest) (capability.RequestedPermissions, error) {
		return capability.RequestedPermissions{}, nil
	}
}

// Static approves the same fixed set for every request, regardless of what
// was asked.
func Static(granted capability.RequestedPermissions) caplock.ApprovalFunc {
	return func(_ context.Context, _ *capability.PermissionRequest) (capability.RequestedPermissions, error) {
		return granted.Clone(), nil
	}
}
