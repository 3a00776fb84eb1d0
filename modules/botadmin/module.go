// Package botadmin implements the !admin command managing delegated bot
// administrators.
package botadmin

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"tika/internal/driver/discord"
	"tika/pkg/tika"
)

const commandName = "admin"

// AdminStore mutates and lists delegated admins per guild.
type AdminStore interface {
	Add(guildID, userID int64) (bool, error)
	Remove(guildID, userID int64) (bool, error)
	GuildAdmins(guildID int64) []int64
}

// Module handles the !admin command.
type Module struct {
	admins      AdminStore
	personality tika.Personality
}

// New creates a bot admin module with default configuration.
func New() *Module {
	return &Module{}
}

// Name returns the stable module identifier.
func (m *Module) Name() string {
	return "botadmin"
}

// Spec declares the !admin command.
func (m *Module) Spec() tika.ModuleSpec {
	return tika.ModuleSpec{
		Handlers: []tika.ModuleHandler{
			{
				Command: tika.CommandSpec{
					Name:        commandName,
					Description: "manage delegated bot admins",
					Usage:       "add <@user> | remove <@user> | list",
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
	admins, err := tika.ResolveAs[AdminStore](runtime.Services(), tika.ServiceAdmins)
	if err != nil {
		return fmt.Errorf("botadmin resolve admin store: %w", err)
	}
	personality, err := tika.ResolveAs[tika.Personality](runtime.Services(), tika.ServicePersonality)
	if err != nil {
		return fmt.Errorf("botadmin resolve personality: %w", err)
	}

	m.admins = admins
	m.personality = personality

	return nil
}

func (m *Module) handleCommand(ctx context.Context, interaction *tika.Interaction) error {
	subcommand := strings.ToLower(interaction.Args[0])
	switch subcommand {
	case "add", "remove":
		return m.handleMutation(ctx, interaction, subcommand)
	case "list":
		return m.handleList(ctx, interaction)
	default:
		return m.reply(ctx, interaction, "general", "usage", map[string]string{
			"usage": "!admin add <@user> | remove <@user> | list",
		})
	}
}

func (m *Module) handleMutation(ctx context.Context, interaction *tika.Interaction, subcommand string) error {
	if len(interaction.Args) < 2 {
		return m.reply(ctx, interaction, "admin", "invalid_target", nil)
	}
	targetID, err := discord.ParseUserMention(interaction.Args[1])
	if err != nil {
		return m.reply(ctx, interaction, "admin", "invalid_target", nil)
	}
	target := map[string]string{"user": mentionFor(targetID)}

	switch subcommand {
	case "add":
		added, err := m.admins.Add(interaction.GuildID, targetID)
		if err != nil {
			return fmt.Errorf("botadmin add: %w", err)
		}
		if !added {
			return m.reply(ctx, interaction, "admin", "already_admin", target)
		}

		return m.reply(ctx, interaction, "admin", "added", target)
	default:
		removed, err := m.admins.Remove(interaction.GuildID, targetID)
		if err != nil {
			return fmt.Errorf("botadmin remove: %w", err)
		}
		if !removed {
			return m.reply(ctx, interaction, "admin", "not_admin", target)
		}

		return m.reply(ctx, interaction, "admin", "removed", target)
	}
}

func (m *Module) handleList(ctx context.Context, interaction *tika.Interaction) error {
	adminIDs := m.admins.GuildAdmins(interaction.GuildID)
	if len(adminIDs) == 0 {
		return m.reply(ctx, interaction, "admin", "list_empty", nil)
	}

	builder := &strings.Builder{}
	builder.WriteString(m.personality.Line("admin", "list_header", nil))
	for _, adminID := range adminIDs {
		builder.WriteString("\n- ")
		builder.WriteString(mentionFor(adminID))
	}

	if err := interaction.Responder.Reply(ctx, builder.String()); err != nil {
		return fmt.Errorf("botadmin list reply: %w", err)
	}

	return nil
}

func (m *Module) reply(ctx context.Context, interaction *tika.Interaction, category, key string, vars map[string]string) error {
	if err := interaction.Responder.Reply(ctx, m.personality.Line(category, key, vars)); err != nil {
		return fmt.Errorf("botadmin reply %s.%s: %w", category, key, err)
	}

	return nil
}

func mentionFor(userID int64) string {
	return "<@" + strconv.FormatInt(userID, 10) + ">"
}

var (
	_ tika.Module          = (*Module)(nil)
	_ tika.ModuleRegistrar = (*Module)(nil)
)
