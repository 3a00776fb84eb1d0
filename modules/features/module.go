// Package features implements the !feature command toggling per-guild
// feature flags.
package features

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tika/internal/feature"
	"tika/pkg/tika"
)

const commandName = "feature"

// FlagStore toggles and lists feature flags per guild.
type FlagStore interface {
	Known() []feature.Feature
	Enabled(guildID int64, name string) bool
	Enable(guildID int64, name string) (bool, error)
	Disable(guildID int64, name string) (bool, error)
}

// Module handles the !feature command.
type Module struct {
	flags       FlagStore
	personality tika.Personality
}

// New creates a features module with default configuration.
func New() *Module {
	return &Module{}
}

// Name returns the stable module identifier.
func (m *Module) Name() string {
	return "features"
}

// Spec declares the !feature command.
func (m *Module) Spec() tika.ModuleSpec {
	return tika.ModuleSpec{
		Handlers: []tika.ModuleHandler{
			{
				Command: tika.CommandSpec{
					Name:        commandName,
					Description: "toggle guild feature flags",
					Usage:       "enable <name> | disable <name> | list",
					AdminOnly:   true,
					MinArgs:     1,
				},
				Handler: m.handleCommand,
			},
		},
	}
}

// OnRegister resolves dependencies required by this module.
func (m *Module) OnRegister(_ context.Context, runtime tika.ModuleRuntime) error {
	flags, err := tika.ResolveAs[FlagStore](runtime.Services(), tika.ServiceFeatures)
	if err != nil {
		return fmt.Errorf("features resolve flag store: %w", err)
	}
	personality, err := tika.ResolveAs[tika.Personality](runtime.Services(), tika.ServicePersonality)
	if err != nil {
		return fmt.Errorf("features resolve personality: %w", err)
	}

	m.flags = flags
	m.personality = personality

	return nil
}

func (m *Module) handleCommand(ctx context.Context, interaction *tika.Interaction) error {
	subcommand := strings.ToLower(interaction.Args[0])
	switch subcommand {
	case "enable", "disable":
		return m.handleToggle(ctx, interaction, subcommand)
	case "list":
		return m.handleList(ctx, interaction)
	default:
		return m.reply(ctx, interaction, "general", "usage", map[string]string{
			"usage": "!feature enable <name> | disable <name> | list",
		})
	}
}

func (m *Module) handleToggle(ctx context.Context, interaction *tika.Interaction, subcommand string) error {
	if len(interaction.Args) < 2 {
		return m.reply(ctx, interaction, "general", "usage", map[string]string{
			"usage": "!feature " + subcommand + " <name>",
		})
	}
	name := strings.ToLower(strings.TrimSpace(interaction.Args[1]))
	vars := map[string]string{"feature": name}

	var changed bool
	var err error
	if subcommand == "enable" {
		changed, err = m.flags.Enable(interaction.GuildID, name)
	} else {
		changed, err = m.flags.Disable(interaction.GuildID, name)
	}
	if errors.Is(err, tika.ErrUnknownFeature) {
		return m.reply(ctx, interaction, "feature", "unknown", vars)
	}
	if err != nil {
		return fmt.Errorf("features %s %s: %w", subcommand, name, err)
	}

	switch {
	case subcommand == "enable" && changed:
		return m.reply(ctx, interaction, "feature", "enabled", vars)
	case subcommand == "enable":
		return m.reply(ctx, interaction, "feature", "already_enabled", vars)
	case changed:
		return m.reply(ctx, interaction, "feature", "disabled", vars)
	default:
		return m.reply(ctx, interaction, "feature", "already_disabled", vars)
	}
}

func (m *Module) handleList(ctx context.Context, interaction *tika.Interaction) error {
	builder := &strings.Builder{}
	builder.WriteString(m.personality.Line("feature", "list_header", nil))
	for _, known := range m.flags.Known() {
		state := "enabled"
		if !m.flags.Enabled(interaction.GuildID, known.Name) {
			state = "disabled"
		}
		builder.WriteString(fmt.Sprintf("\n- `%s` (%s): %s", known.Name, state, known.Description))
	}

	if err := interaction.Responder.Reply(ctx, builder.String()); err != nil {
		return fmt.Errorf("features list reply: %w", err)
	}

	return nil
}

func (m *Module) reply(ctx context.Context, interaction *tika.Interaction, category, key string, vars map[string]string) error {
	if err := interaction.Responder.Reply(ctx, m.personality.Line(category, key, vars)); err != nil {
		return fmt.Errorf("features reply %s.%s: %w", category, key, err)
	}

	return nil
}

var (
	_ tika.Module          = (*Module)(nil)
	_ tika.ModuleRegistrar = (*Module)(nil)
)
