// Package extension provides a Forge extension entry point for caplock.
package extension

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/caplock"
	"github.com/xraph/caplock/api"
	"github.com/xraph/caplock/hook"
	"github.com/xraph/caplock/state"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "caplock"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Capability-based permissions middleware for RPC method dispatch"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts caplock as a Forge extension.
type Extension struct {
	config     Config
	ctrlConfig caplock.Config
	ctrl       *caplock.Controller
	apiHandler *api.API
	logger     *slog.Logger
	ctrlOpts   []caplock.Option
	hooks      []hook.Hook
}

// New creates a caplock Forge extension with the given options.
func New(opts ...ExtOption) *Extension {
	e := &Extension{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the extension name.
func (e *Extension) Name() string { return ExtensionName }

// Description returns the extension description.
func (e *Extension) Description() string { return ExtensionDescription }

// Version returns the semantic version.
func (e *Extension) Version() string { return ExtensionVersion }

// Dependencies returns the list of extension names this extension depends on.
func (e *Extension) Dependencies() []string { return []string{} }

// Controller returns the underlying caplock controller.
func (e *Extension) Controller() *caplock.Controller { return e.ctrl }

// API returns the API handler.
func (e *Extension) API() *api.API { return e.apiHandler }

// Register implements [forge.Extension]. It initializes the controller,
// registers it in the DI container, and optionally registers HTTP routes.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.init(fapp); err != nil {
		return err
	}

	// Register the controller in the DI container.
	if err := vessel.Provide(fapp.Container(), func() (*caplock.Controller, error) {
		return e.ctrl, nil
	}); err != nil {
		return fmt.Errorf("caplock: register controller in container: %w", err)
	}

	return nil
}

func (e *Extension) init(fapp forge.App) error {
	logger := e.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Build controller options.
	opts := make([]caplock.Option, 0, len(e.ctrlOpts)+len(e.hooks)+2)
	opts = append(opts, caplock.WithLogger(logger))

	// Use a state container from the DI container when one is registered.
	// A container passed through the options (appended below) takes
	// precedence; with neither, the controller uses its in-memory default.
	if sc, err := forge.Inject[state.Container](fapp.Container()); err == nil {
		opts = append(opts, caplock.WithStateContainer(sc))
	}

	// Append user-provided options (may override the container).
	opts = append(opts, e.ctrlOpts...)

	// Register lifecycle hooks.
	for _, h := range e.hooks {
		opts = append(opts, caplock.WithHook(h))
	}

	ctrl, err := caplock.New(e.ctrlConfig, opts...)
	if err != nil {
		return fmt.Errorf("caplock: create controller: %w", err)
	}
	e.ctrl = ctrl

	// Create the API handler.
	e.apiHandler = api.New(ctrl, fapp.Router())

	// Register HTTP routes unless disabled.
	if !e.config.DisableRoutes {
		if err := e.apiHandler.RegisterRoutes(fapp.Router()); err != nil {
			return fmt.Errorf("caplock: register routes: %w", err)
		}
	}

	return nil
}

// Start performs startup initialization.
func (e *Extension) Start(_ context.Context) error {
	if e.ctrl == nil {
		return errors.New("caplock: extension not initialized")
	}
	return nil
}

// Stop gracefully shuts down the controller.
func (e *Extension) Stop(ctx context.Context) error {
	if e.ctrl == nil {
		return nil
	}
	return e.ctrl.Shutdown(ctx)
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.ctrl == nil {
		return errors.New("caplock: extension not initialized")
	}
	return e.ctrl.Ping(ctx)
}

// Handler returns the HTTP handler for all API routes.
func (e *Extension) Handler() http.Handler {
	if e.apiHandler == nil {
		return http.NotFoundHandler()
	}
	return e.apiHandler.Handler()
}

// RegisterRoutes registers all caplock API routes into a Forge router.
func (e *Extension) RegisterRoutes(router forge.Router) error {
	if e.apiHandler != nil {
		return e.apiHandler.RegisterRoutes(router)
	}
	return nil
}
