package tika

import "context"

// InteractionHandler processes one neutral interaction.
type InteractionHandler func(ctx context.Context, interaction *Interaction) error

// ModuleHandler binds one declared command to its handler.
type ModuleHandler struct {
	// Command declares the command this handler serves.
	Command CommandSpec
	// Handler processes matching interactions.
	Handler InteractionHandler
}

// ModuleSpec declares a module's commands and handlers.
type ModuleSpec struct {
	// Handlers binds declared commands to handler functions.
	Handlers []ModuleHandler
}

// ModuleRuntime provides kernel facilities to modules during registration.
type ModuleRuntime interface {
	// Services exposes the service registry for dependency lookup.
	Services() ServiceRegistry
}

// Module is a lifecycle-aware command plugin contract.
//
// Handlers must be concurrency-safe: interactions from different guilds can
// be dispatched at the same time.
type Module interface {
	// Name returns a stable module identifier.
	Name() string
	// Spec returns declarative command and handler metadata.
	Spec() ModuleSpec
}

// ModuleRegistrar is implemented by modules that resolve dependencies during
// registration.
type ModuleRegistrar interface {
	// OnRegister is called once when the module is registered.
	OnRegister(ctx context.Context, runtime ModuleRuntime) error
}

// ModuleLifecycle is implemented by modules that own runtime resources.
type ModuleLifecycle interface {
	// OnStart is called when the kernel begins runtime execution.
	OnStart(ctx context.Context) error
	// OnShutdown is called during orderly shutdown.
	OnShutdown(ctx context.Context) error
}

// InteractionSink accepts neutral interactions for dispatch into the kernel.
type InteractionSink interface {
	// Dispatch routes one interaction to its registered handler.
	Dispatch(ctx context.Context, interaction *Interaction) error
}

// Driver adapts one external chat platform into neutral interactions.
//
// Drivers own transport/session concerns and must publish only
// tika.Interaction values.
type Driver interface {
	// Name returns a stable driver identifier.
	Name() string
	// Start begins consuming platform updates and publishing interactions.
	// It returns only after context cancellation or fatal transport error.
	Start(ctx context.Context, sink InteractionSink) error
	// Shutdown stops platform resources not tied to the Start context alone.
	Shutdown(ctx context.Context) error
}
