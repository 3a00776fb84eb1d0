// Package backup implements the !backup command archiving the bot data
// directory.
package backup

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"tika/internal/backup"
	"tika/internal/feature"
	"tika/internal/monitor"
	"tika/pkg/tika"
)

const commandName = "backup"

// defaultKeep is how many archives a bare "!backup clean" retains.
const defaultKeep = 5

// Archiver creates and manages data backups.
type Archiver interface {
	Create() (backup.Archive, error)
	List() ([]backup.Archive, error)
	Clean(keep int) (int, error)
}

// Module handles the !backup command.
type Module struct {
	archiver    Archiver
	personality tika.Personality
}

// New creates a backup module with default configuration.
func New() *Module {
	return &Module{}
}

// Name returns the stable module identifier.
func (m *Module) Name() string {
	return "backup"
}

// Spec declares the !backup command.
func (m *Module) Spec() tika.ModuleSpec {
	return tika.ModuleSpec{
		Handlers: []tika.ModuleHandler{
			{
				Command: tika.CommandSpec{
					Name:        commandName,
					Description: "create, list, and clean data backups",
					Usage:       "create | list | clean [keep]",
					AdminOnly:   true,
					MinArgs:     1,
					Feature:     feature.FeatureBackups,
				},
				Handler: m.handleCommand,
			},
		},
	}
}

// OnRegister resolves dependencies required by this module.
func (m *Module) OnRegister(_ context.Context, runtime tika.ModuleRuntime) error {
	archiver, err := tika.ResolveAs[Archiver](runtime.Services(), tika.ServiceBackups)
	if err != nil {
		return fmt.Errorf("backup resolve archiver: %w", err)
	}
	personality, err := tika.ResolveAs[tika.Personality](runtime.Services(), tika.ServicePersonality)
	if err != nil {
		return fmt.Errorf("backup resolve personality: %w", err)
	}

	m.archiver = archiver
	m.personality = personality

	return nil
}

func (m *Module) handleCommand(ctx context.Context, interaction *tika.Interaction) error {
	switch strings.ToLower(interaction.Args[0]) {
	case "create":
		return m.handleCreate(ctx, interaction)
	case "list":
		return m.handleList(ctx, interaction)
	case "clean":
		return m.handleClean(ctx, interaction)
	default:
		return m.reply(ctx, interaction, "general", "usage", map[string]string{
			"usage": "!backup create | list | clean [keep]",
		})
	}
}

func (m *Module) handleCreate(ctx context.Context, interaction *tika.Interaction) error {
	archive, err := m.archiver.Create()
	if err != nil {
		if replyErr := m.reply(ctx, interaction, "backup", "failed", nil); replyErr != nil {
			return replyErr
		}

		return fmt.Errorf("backup create: %w", err)
	}

	return m.reply(ctx, interaction, "backup", "created", map[string]string{
		"name": archive.Name,
		"size": monitor.FormatBytes(uint64(archive.Size)),
	})
}

func (m *Module) handleList(ctx context.Context, interaction *tika.Interaction) error {
	archives, err := m.archiver.List()
	if err != nil {
		return fmt.Errorf("backup list: %w", err)
	}
	if len(archives) == 0 {
		return m.reply(ctx, interaction, "backup", "list_empty", nil)
	}

	builder := &strings.Builder{}
	builder.WriteString(m.personality.Line("backup", "list_header", nil))
	for _, archive := range archives {
		builder.WriteString(fmt.Sprintf(
			"\n- `%s` (%s, %s)",
			archive.Name,
			monitor.FormatBytes(uint64(archive.Size)),
			archive.CreatedAt.UTC().Format("2006-01-02 15:04 UTC"),
		))
	}

	if err := interaction.Responder.Reply(ctx, builder.String()); err != nil {
		return fmt.Errorf("backup list reply: %w", err)
	}

	return nil
}

func (m *Module) handleClean(ctx context.Context, interaction *tika.Interaction) error {
	keep := defaultKeep
	if len(interaction.Args) > 1 {
		parsed, err := strconv.Atoi(interaction.Args[1])
		if err != nil || parsed < 0 {
			return m.reply(ctx, interaction, "general", "usage", map[string]string{
				"usage": "!backup clean [keep]",
			})
		}
		keep = parsed
	}

	removed, err := m.archiver.Clean(keep)
	if err != nil {
		return fmt.Errorf("backup clean: %w", err)
	}

	message := fmt.Sprintf("Removed %d backup(s), keeping the newest %d.", removed, keep)
	if err := interaction.Responder.Reply(ctx, message); err != nil {
		return fmt.Errorf("backup clean reply: %w", err)
	}

	return nil
}

func (m *Module) reply(ctx context.Context, interaction *tika.Interaction, category, key string, vars map[string]string) error {
	if err := interaction.Responder.Reply(ctx, m.personality.Line(category, key, vars)); err != nil {
		return fmt.Errorf("backup reply %s.%s: %w", category, key, err)
	}

	return nil
}

var (
	_ tika.Module          = (*Module)(nil)
	_ tika.ModuleRegistrar = (*Module)(nil)
)
