package kernel

import (
	"context"
	"log/slog"
	"time"
)

const (
	defaultModuleHookTimeout = 5 * time.Second
	defaultHandlerTimeout    = 2 * time.Minute
	defaultShutdownTimeout   = 10 * time.Second
)

// config stores resolved kernel runtime settings after option application.
type config struct {
	moduleHookTimeout time.Duration
	handlerTimeout    time.Duration
	shutdownTimeout   time.Duration
	logger            *slog.Logger
	onAsyncError      func(context.Context, string, error)
}

// Option mutates kernel construction configuration.
type Option func(*config)

// defaultConfig returns production-safe defaults for kernel runtime controls.
func defaultConfig() config {
	logger := slog.Default()

	return config{
		moduleHookTimeout: defaultModuleHookTimeout,
		handlerTimeout:    defaultHandlerTimeout,
		shutdownTimeout:   defaultShutdownTimeout,
		logger:            logger,
		onAsyncError: func(ctx context.Context, scope string, err error) {
			logger.ErrorContext(ctx, "tika async error", "scope", scope, "error", err)
		},
	}
}

// WithModuleHookTimeout configures OnRegister/OnStart/OnShutdown timeout boundaries.
func WithModuleHookTimeout(timeout time.Duration) Option {
	return func(cfg *config) {
		if timeout > 0 {
			cfg.moduleHookTimeout = timeout
		}
	}
}

// WithHandlerTimeout configures the per-interaction handler timeout.
func WithHandlerTimeout(timeout time.Duration) Option {
	return func(cfg *config) {
		if timeout > 0 {
			cfg.handlerTimeout = timeout
		}
	}
}

// WithShutdownTimeout configures overall kernel shutdown timeout.
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(cfg *config) {
		if timeout > 0 {
			cfg.shutdownTimeout = timeout
		}
	}
}

// WithLogger configures the logger used by the kernel and the default async
// error sink.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		if logger == nil {
			return
		}

		cfg.logger = logger
		cfg.onAsyncError = func(ctx context.Context, scope string, err error) {
			logger.ErrorContext(ctx, "tika async error", "scope", scope, "error", err)
		}
	}
}

// WithAsyncErrorHandler configures asynchronous dispatch error reporting.
func WithAsyncErrorHandler(handler func(context.Context, string, error)) Option {
	return func(cfg *config) {
		if handler != nil {
			cfg.onAsyncError = handler
		}
	}
}
