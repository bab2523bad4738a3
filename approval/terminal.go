package approval

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"

	"github.com/xraph/caplock"
	"github.com/xraph/caplock/capability"
)

// Terminal prompts the operator interactively for each requested method.
type Terminal struct {
	// Descriptions maps method names to the human-readable text shown in
	// the prompt, typically the controller's permissionsDescriptions.
	Descriptions map[string]string
}

// NewTerminal creates a terminal prompter.
func NewTerminal(descriptions map[string]string) *Terminal {
	return &Terminal{Descriptions: descriptions}
}

// IsInteractive checks whether stdin is attached to a terminal.
func (t *Terminal) IsInteractive() bool {
	fileInfo, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

// Func returns the ApprovalFunc backed by this prompter. In a
// non-interactive session every request is rejected.
func (t *Terminal) Func() caplock.ApprovalFunc {
	return func(_ context.Context, req *capability.PermissionRequest) (capability.RequestedPermissions, error) {
		if !t.IsInteractive() {
			return capability.RequestedPermissions{}, nil
		}
		granted := capability.RequestedPermissions{}
		for method, perm := range req.Permissions {
			ok, err := t.promptForMethod(req.Origin, method)
			if err != nil {
				return nil, err
			}
			if ok {
				granted[method] = capability.RequestedPermission{
					Caveats: capability.CloneCaveats(perm.Caveats),
				}
			}
		}
		return granted, nil
	}
}

// promptForMethod asks the operator whether to grant one method.
func (t *Terminal) promptForMethod(origin, method string) (bool, error) {
	const (
		optionGrant = "Grant"
		optionDeny  = "Deny"
	)

	desc := t.Descriptions[method]
	if desc == "" {
		desc = method
	}

	var selection string
	err := huh.NewSelect[string]().
		Title(fmt.Sprintf("%s is requesting permission", origin)).
		Description(fmt.Sprintf("%s (%s)", desc, method)).
		Options(
			huh.NewOption(optionGrant, optionGrant),
			huh.NewOption(optionDeny, optionDeny),
		).
		Value(&selection).
		Run()
	if err != nil {
		return false, err
	}

	return selection == optionGrant, nil
}
