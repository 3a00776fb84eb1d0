// Package help implements the !help command rendering registered commands.
package help

import (
	"context"
	"fmt"
	"strings"

	"tika/pkg/tika"
)

const commandName = "help"

// Module replies with command reference text for !help.
type Module struct {
	commandCatalog tika.CommandCatalog
}

// New creates a help module with default configuration.
func New() *Module {
	return &Module{}
}

// Name returns the stable module identifier.
func (m *Module) Name() string {
	return "help"
}

// Spec declares the !help command.
func (m *Module) Spec() tika.ModuleSpec {
	return tika.ModuleSpec{
		Handlers: []tika.ModuleHandler{
			{
				Command: tika.CommandSpec{
					Name:        commandName,
					Description: "show all available commands",
				},
				Handler: m.handleCommand,
			},
		},
	}
}

// OnRegister resolves dependencies required by this module.
func (m *Module) OnRegister(_ context.Context, runtime tika.ModuleRuntime) error {
	commandCatalog, err := tika.ResolveAs[tika.CommandCatalog](
		runtime.Services(),
		tika.ServiceCommandCatalog,
	)
	if err != nil {
		return fmt.Errorf("help resolve command catalog: %w", err)
	}

	m.commandCatalog = commandCatalog

	return nil
}

func (m *Module) handleCommand(ctx context.Context, interaction *tika.Interaction) error {
	listed := m.commandCatalog.ListCommands()

	builder := &strings.Builder{}
	builder.WriteString("**Commands**")
	for _, registered := range listed {
		spec := registered.Command
		builder.WriteString("\n`")
		builder.WriteString(spec.Label())
		if spec.Usage != "" {
			builder.WriteString(" ")
			builder.WriteString(spec.Usage)
		}
		builder.WriteString("`")
		if spec.Description != "" {
			builder.WriteString(": ")
			builder.WriteString(spec.Description)
		}
		if spec.AdminOnly {
			builder.WriteString(" (admin)")
		}
	}

	if err := interaction.Responder.Reply(ctx, builder.String()); err != nil {
		return fmt.Errorf("help reply: %w", err)
	}

	return nil
}

var (
	_ tika.Module          = (*Module)(nil)
	_ tika.ModuleRegistrar = (*Module)(nil)
)
