package caplock

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/xraph/caplock/capability"
)

// handleGetPermissions answers the internal getPermissions method: the
// origin's current capability list. No side effects.
func (c *Controller) handleGetPermissions(origin capability.OriginMetadata, _ *RequestObject, res *ResponseObject, end EndFunc) {
	res.Result = c.perms.PermissionsForDomain(origin.Origin)
	end(nil)
}

// handleRequestPermissions runs the permission-request handshake:
// validate, canonicalize, dedup against current grants, queue, await user
// approval, grant or reject. The pending request is removed from the
// queue on every exit path.
func (c *Controller) handleRequestPermissions(origin capability.OriginMetadata, req *RequestObject, res *ResponseObject, end EndFunc) {
	requested, ok := coerceRequestedPermissions(req.Params)
	if !ok || len(requested) == 0 {
		res.Error = InvalidRequest(req)
		end(res.Error)
		return
	}
	requested = canonicalize(requested)

	metadata := mergeMetadata(origin, req.Params)
	if metadata.ID == "" {
		metadata.ID = uuid.NewString()
	}

	// Fast-path: the domain already holds exactly this set. No prompt.
	if c.perms.HasPermissions(origin.Origin, requested) {
		res.Result = c.perms.PermissionsForDomain(origin.Origin)
		end(nil)
		return
	}

	ctx := context.Background()
	pending := capability.PermissionRequest{
		Origin:      origin.Origin,
		Metadata:    metadata,
		Permissions: requested,
	}
	c.perms.AddRequest(pending)
	c.hooks.EmitRequestQueued(ctx, &pending)

	approved := false
	defer func() {
		c.perms.RemoveRequest(metadata.ID)
		c.hooks.EmitRequestResolved(ctx, metadata.ID, approved)
	}()

	granted, err := c.config.RequestUserApproval(ctx, &pending)
	if err != nil {
		res.Error = InternalError(err)
		end(res.Error)
		return
	}
	if len(granted) == 0 {
		res.Error = UserRejected(req)
		end(res.Error)
		return
	}

	caps, errObj := c.GrantNewPermissions(origin.Origin, granted)
	if errObj != nil {
		res.Error = errObj
		end(res.Error)
		return
	}
	approved = true
	res.Result = caps
	end(nil)
}

// coerceRequestedPermissions extracts the requested permissions from the
// first positional param. The param must be a non-array, non-empty object
// mapping method names to permission descriptors; anything else fails.
func coerceRequestedPermissions(params []any) (capability.RequestedPermissions, bool) {
	if len(params) == 0 {
		return nil, false
	}
	switch p := params[0].(type) {
	case capability.RequestedPermissions:
		return p.Clone(), true
	case map[string]capability.RequestedPermission:
		return capability.RequestedPermissions(p).Clone(), true
	case map[string]any:
		raw, err := json.Marshal(p)
		if err != nil {
			return nil, false
		}
		var out capability.RequestedPermissions
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, false
		}
		return out, true
	default:
		return nil, false
	}
}

// mergeMetadata enriches the host-supplied origin metadata with requester
// metadata from the second positional param. Requester fields merge under
// the host's extras; the host-supplied origin always wins. A requester-
// supplied id seeds the correlation id only when the host left it empty.
func mergeMetadata(origin capability.OriginMetadata, params []any) capability.OriginMetadata {
	metadata := origin.Clone()
	if len(params) < 2 {
		return metadata
	}
	second, ok := capability.Normalize(params[1]).(map[string]any)
	if !ok {
		return metadata
	}
	extra, ok := second["metadata"].(map[string]any)
	if !ok {
		return metadata
	}

	merged := make(map[string]any, len(extra)+len(metadata.Extra))
	for k, v := range extra {
		merged[k] = v
	}
	for k, v := range metadata.Extra {
		merged[k] = v
	}
	delete(merged, "origin")
	if requesterID, ok := merged["id"].(string); ok {
		if metadata.ID == "" {
			metadata.ID = requesterID
		}
		delete(merged, "id")
	}
	if len(merged) > 0 {
		metadata.Extra = merged
	}
	return metadata
}
