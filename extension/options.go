package extension

import (
	"log/slog"

	"github.com/xraph/caplock"
	"github.com/xraph/caplock/hook"
	"github.com/xraph/caplock/state"
)

// ExtOption configures the caplock Forge extension.
type ExtOption func(*Extension)

// WithControllerConfig sets the controller configuration (safe methods,
// restricted methods, method prefix, approval function).
func WithControllerConfig(cfg caplock.Config) ExtOption {
	return func(e *Extension) {
		e.ctrlConfig = cfg
	}
}

// WithStateContainer sets the persistence backend.
func WithStateContainer(sc state.Container) ExtOption {
	return func(e *Extension) {
		e.ctrlOpts = append(e.ctrlOpts, caplock.WithStateContainer(sc))
	}
}

// WithConfig sets the extension configuration.
func WithConfig(cfg Config) ExtOption {
	return func(e *Extension) {
		e.config = cfg
	}
}

// WithControllerOptions adds controller-level options.
func WithControllerOptions(opts ...caplock.Option) ExtOption {
	return func(e *Extension) {
		e.ctrlOpts = append(e.ctrlOpts, opts...)
	}
}

// WithHook registers a lifecycle hook.
func WithHook(h hook.Hook) ExtOption {
	return func(e *Extension) {
		e.hooks = append(e.hooks, h)
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ExtOption {
	return func(e *Extension) {
		e.logger = l
	}
}

// WithDisableRoutes disables the registration of HTTP routes.
func WithDisableRoutes() ExtOption {
	return func(e *Extension) {
		e.config.DisableRoutes = true
	}
}
