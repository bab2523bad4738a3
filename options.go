package caplock

import (
	"log/slog"

	"github.com/xraph/caplock/hook"
	"github.com/xraph/caplock/state"
)

// Option is a functional option for the Controller.
type Option func(*Controller)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option { return func(c *Controller) { c.logger = l } }

// WithStateContainer sets the state container. Defaults to an in-memory
// container.
func WithStateContainer(sc state.Container) Option {
	return func(c *Controller) { c.container = sc }
}

// WithRestoredState seeds the controller with previously persisted state.
// Only domains survive a restart; pending requests are dropped because
// their approval futures are gone.
func WithRestoredState(st state.State) Option {
	return func(c *Controller) { restored := st.Clone(); c.restored = &restored }
}

// WithCaveatRegistry replaces the default caveat registry.
func WithCaveatRegistry(r *CaveatRegistry) Option {
	return func(c *Controller) { c.registry = r }
}

// WithHook registers a lifecycle hook with the controller.
func WithHook(h hook.Hook) Option {
	return func(c *Controller) { c.pendingHooks = append(c.pendingHooks, h) }
}
