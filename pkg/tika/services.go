package tika

import "fmt"

// Canonical service registry keys shared across modules.
const (
	// ServiceLogger is the shared *slog.Logger.
	ServiceLogger = "tika.logger"
	// ServiceGuildStore is the guild-scoped document store.
	ServiceGuildStore = "tika.guild_store"
	// ServiceAdmins is the delegated-admin service.
	ServiceAdmins = "tika.admins"
	// ServiceFeatures is the feature flag service.
	ServiceFeatures = "tika.features"
	// ServicePersonality is the personality line store.
	ServicePersonality = "tika.personality"
	// ServiceChat is the persona chat service.
	ServiceChat = "tika.chat"
	// ServiceKnowledge is the knowledge base service.
	ServiceKnowledge = "tika.knowledge"
	// ServiceBackups is the data backup service.
	ServiceBackups = "tika.backups"
	// ServiceMonitor is the process resource monitor.
	ServiceMonitor = "tika.monitor"
	// ServiceCommandCatalog lists registered commands for help rendering.
	ServiceCommandCatalog = "tika.command_catalog"
	// ServicePresence reports live platform presence counts.
	ServicePresence = "tika.presence"
)

// ServiceRegistry provides runtime dependency injection to modules and drivers.
type ServiceRegistry interface {
	// Register binds a singleton service value to a stable name.
	Register(name string, service any) error
	// Resolve returns a registered service by name.
	Resolve(name string) (any, error)
}

// ResolveAs resolves a service and casts it to the requested type.
func ResolveAs[T any](registry ServiceRegistry, name string) (T, error) {
	var zero T

	service, err := registry.Resolve(name)
	if err != nil {
		return zero, fmt.Errorf("resolve service %s: %w", name, err)
	}

	typed, ok := service.(T)
	if !ok {
		return zero, fmt.Errorf("resolve service %s: type assertion failed", name)
	}

	return typed, nil
}

// RegisteredCommand pairs one command spec with its owning module.
type RegisteredCommand struct {
	// ModuleName identifies the module that registered the command.
	ModuleName string
	// Command is the registered command spec.
	Command CommandSpec
}

// CommandCatalog lists commands registered with the kernel.
type CommandCatalog interface {
	// ListCommands returns all registered commands in unspecified order.
	ListCommands() []RegisteredCommand
}
