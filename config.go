package caplock

import (
	"context"
	"fmt"

	"github.com/jellydator/validation"

	"github.com/xraph/caplock/capability"
)

// ApprovalFunc presents a pending permission request to the user and
// returns the permissions the user approved. An empty result means the
// user rejected the request. The function may block; the middleware calls
// it on the request's goroutine and offers no cancellation of its own.
type ApprovalFunc func(ctx context.Context, req *capability.PermissionRequest) (capability.RequestedPermissions, error)

// Config holds the recognized controller options.
type Config struct {
	// SafeMethods are method names always passed through to the next
	// middleware, with no authorization.
	SafeMethods []string

	// RestrictedMethods maps method names to their implementations and
	// the descriptions published in permissionsDescriptions. A name
	// ending in "_" exposes a whole family of virtual methods behind a
	// single capability.
	RestrictedMethods map[string]RestrictedMethod

	// MethodPrefix is prepended to the getPermissions and
	// requestPermissions internal method names.
	MethodPrefix string

	// RequestUserApproval resolves pending permission requests.
	// Required; construction fails without it.
	RequestUserApproval ApprovalFunc
}

// Validate checks the configuration. The missing approval function is the
// only fatal condition.
func (c Config) Validate() error {
	if c.RequestUserApproval == nil {
		return ErrApprovalRequired
	}
	return validation.ValidateStruct(&c,
		validation.Field(&c.RestrictedMethods,
			validation.By(validateRestrictedMethods),
		),
	)
}

func validateRestrictedMethods(value any) error {
	methods, _ := value.(map[string]RestrictedMethod)
	for name, entry := range methods {
		if entry.Method == nil {
			return fmt.Errorf("restricted method %q has no implementation", name)
		}
	}
	return nil
}

// Prefixed names of the two internal methods.
func (c Config) getPermissionsName() string {
	return c.MethodPrefix + "getPermissions"
}

func (c Config) requestPermissionsName() string {
	return c.MethodPrefix + "requestPermissions"
}
