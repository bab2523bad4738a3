package hook

import (
	"context"
	"log/slog"

	"github.com/xraph/caplock/capability"
)

// Compile-time interface checks.
var (
	_ Hook               = (*Audit)(nil)
	_ Authorized         = (*Audit)(nil)
	_ PermissionsGranted = (*Audit)(nil)
	_ PermissionsRemoved = (*Audit)(nil)
	_ RequestResolved    = (*Audit)(nil)
)

// Audit logs every authorization decision and permission change through a
// structured logger.
type Audit struct {
	logger *slog.Logger
}

// NewAudit creates an audit hook. A nil logger uses slog.Default.
func NewAudit(logger *slog.Logger) *Audit {
	if logger == nil {
		logger = slog.Default()
	}
	return &Audit{logger: logger}
}

// Name implements Hook.
func (a *Audit) Name() string { return "audit" }

// OnAuthorized implements Authorized.
func (a *Audit) OnAuthorized(_ context.Context, origin, methodKey string, granted bool, _ any) error {
	a.logger.Info("authorization decided",
		slog.String("origin", origin),
		slog.String("method_key", methodKey),
		slog.Bool("granted", granted),
	)
	return nil
}

// OnPermissionsGranted implements PermissionsGranted.
func (a *Audit) OnPermissionsGranted(_ context.Context, origin string, granted []capability.Capability) error {
	methods := make([]string, len(granted))
	for i, c := range granted {
		methods[i] = c.ParentCapability
	}
	a.logger.Info("permissions granted",
		slog.String("origin", origin),
		slog.Any("methods", methods),
	)
	return nil
}

// OnPermissionsRemoved implements PermissionsRemoved.
func (a *Audit) OnPermissionsRemoved(_ context.Context, origin string, methods []string) error {
	a.logger.Info("permissions removed",
		slog.String("origin", origin),
		slog.Any("methods", methods),
	)
	return nil
}

// OnRequestResolved implements RequestResolved.
func (a *Audit) OnRequestResolved(_ context.Context, requestID string, approved bool) error {
	a.logger.Info("permission request resolved",
		slog.String("request_id", requestID),
		slog.Bool("approved", approved),
	)
	return nil
}
