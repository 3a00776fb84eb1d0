// Package chat implements the !chat and !reset commands backed by the
// persona chat service.
package chat

import (
	"context"
	"fmt"

	"tika/internal/feature"
	"tika/pkg/tika"
)

const (
	chatCommandName  = "chat"
	resetCommandName = "reset"
)

// Conversationalist generates persona replies and manages channel memory.
type Conversationalist interface {
	ChatReply(ctx context.Context, guildID int64, channelID, userName, message string) (string, error)
	ResetHistory(channelID string)
}

// Module handles persona conversation commands.
type Module struct {
	chat        Conversationalist
	personality tika.Personality
}

// New creates a chat module with default configuration.
func New() *Module {
	return &Module{}
}

// Name returns the stable module identifier.
func (m *Module) Name() string {
	return "chat"
}

// Spec declares the !chat and !reset commands, both gated by the chat
// feature flag. The Discord driver also routes bare bot mentions here.
func (m *Module) Spec() tika.ModuleSpec {
	return tika.ModuleSpec{
		Handlers: []tika.ModuleHandler{
			{
				Command: tika.CommandSpec{
					Name:        chatCommandName,
					Description: "talk with the bot persona",
					Usage:       "<message>",
					MinArgs:     1,
					Feature:     feature.FeatureChat,
				},
				Handler: m.handleChat,
			},
			{
				Command: tika.CommandSpec{
					Name:        resetCommandName,
					Description: "forget this channel's conversation",
					Feature:     feature.FeatureChat,
				},
				Handler: m.handleReset,
			},
		},
	}
}

// OnRegister resolves dependencies required by this module.
func (m *Module) OnRegister(_ context.Context, runtime tika.ModuleRuntime) error {
	conversationalist, err := tika.ResolveAs[Conversationalist](runtime.Services(), tika.ServiceChat)
	if err != nil {
		return fmt.Errorf("chat resolve chat service: %w", err)
	}
	personality, err := tika.ResolveAs[tika.Personality](runtime.Services(), tika.ServicePersonality)
	if err != nil {
		return fmt.Errorf("chat resolve personality: %w", err)
	}

	m.chat = conversationalist
	m.personality = personality

	return nil
}

func (m *Module) handleChat(ctx context.Context, interaction *tika.Interaction) error {
	reply, err := m.chat.ChatReply(
		ctx,
		interaction.GuildID,
		interaction.ChannelID,
		interaction.UserName,
		interaction.ArgText(),
	)
	if err != nil {
		if replyErr := interaction.Responder.Reply(ctx, m.personality.Line("chat", "unavailable", nil)); replyErr != nil {
			return fmt.Errorf("chat unavailable reply: %w", replyErr)
		}

		return fmt.Errorf("chat generate reply: %w", err)
	}

	if err := interaction.Responder.Reply(ctx, reply); err != nil {
		return fmt.Errorf("chat reply: %w", err)
	}

	return nil
}

func (m *Module) handleReset(ctx context.Context, interaction *tika.Interaction) error {
	m.chat.ResetHistory(interaction.ChannelID)

	if err := interaction.Responder.Reply(ctx, m.personality.Line("chat", "reset", nil)); err != nil {
		return fmt.Errorf("chat reset reply: %w", err)
	}

	return nil
}

var (
	_ tika.Module          = (*Module)(nil)
	_ tika.ModuleRegistrar = (*Module)(nil)
)
