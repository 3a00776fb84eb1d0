// Package knowledgebase implements the !learn, !facts, and !forget commands
// backed by the knowledge service.
package knowledgebase

import (
	"context"
	"fmt"
	"strings"

	"tika/internal/feature"
	"tika/pkg/tika"
)

const (
	learnCommandName  = "learn"
	factsCommandName  = "facts"
	forgetCommandName = "forget"
)

// KnowledgeStore learns, lists, and forgets guild knowledge.
type KnowledgeStore interface {
	LearnFromURL(ctx context.Context, guildID int64, rawURL string) (bool, string, error)
	Facts(guildID int64) ([]string, error)
	Forget(guildID int64) error
}

// Module handles knowledge base commands.
type Module struct {
	knowledge   KnowledgeStore
	personality tika.Personality
}

// New creates a knowledge base module with default configuration.
func New() *Module {
	return &Module{}
}

// Name returns the stable module identifier.
func (m *Module) Name() string {
	return "knowledgebase"
}

// Spec declares the knowledge commands, all gated by the knowledge feature.
// Forgetting everything is admin only.
func (m *Module) Spec() tika.ModuleSpec {
	return tika.ModuleSpec{
		Handlers: []tika.ModuleHandler{
			{
				Command: tika.CommandSpec{
					Name:        learnCommandName,
					Description: "read a web page and remember one fact from it",
					Usage:       "<url>",
					MinArgs:     1,
					Feature:     feature.FeatureKnowledge,
				},
				Handler: m.handleLearn,
			},
			{
				Command: tika.CommandSpec{
					Name:        factsCommandName,
					Description: "list everything learned in this server",
					Feature:     feature.FeatureKnowledge,
				},
				Handler: m.handleFacts,
			},
			{
				Command: tika.CommandSpec{
					Name:        forgetCommandName,
					Description: "forget everything learned in this server",
					AdminOnly:   true,
					Feature:     feature.FeatureKnowledge,
				},
				Handler: m.handleForget,
			},
		},
	}
}

// OnRegister resolves dependencies required by this module.
func (m *Module) OnRegister(_ context.Context, runtime tika.ModuleRuntime) error {
	knowledge, err := tika.ResolveAs[KnowledgeStore](runtime.Services(), tika.ServiceKnowledge)
	if err != nil {
		return fmt.Errorf("knowledgebase resolve knowledge store: %w", err)
	}
	personality, err := tika.ResolveAs[tika.Personality](runtime.Services(), tika.ServicePersonality)
	if err != nil {
		return fmt.Errorf("knowledgebase resolve personality: %w", err)
	}

	m.knowledge = knowledge
	m.personality = personality

	return nil
}

func (m *Module) handleLearn(ctx context.Context, interaction *tika.Interaction) error {
	rawURL := strings.TrimSpace(interaction.Args[0])
	vars := map[string]string{"url": rawURL}

	_, fact, err := m.knowledge.LearnFromURL(ctx, interaction.GuildID, rawURL)
	if err != nil {
		if replyErr := m.reply(ctx, interaction, "knowledge", "fetch_failed", vars); replyErr != nil {
			return replyErr
		}

		return fmt.Errorf("knowledgebase learn: %w", err)
	}
	if fact == "" {
		return m.reply(ctx, interaction, "knowledge", "already_read", vars)
	}

	return m.reply(ctx, interaction, "knowledge", "learned", vars)
}

func (m *Module) handleFacts(ctx context.Context, interaction *tika.Interaction) error {
	facts, err := m.knowledge.Facts(interaction.GuildID)
	if err != nil {
		return fmt.Errorf("knowledgebase list facts: %w", err)
	}
	if len(facts) == 0 {
		return m.reply(ctx, interaction, "knowledge", "empty", nil)
	}

	builder := &strings.Builder{}
	for index, fact := range facts {
		if index > 0 {
			builder.WriteByte('\n')
		}
		builder.WriteString(fmt.Sprintf("%d. %s", index+1, fact))
	}

	if err := interaction.Responder.Reply(ctx, builder.String()); err != nil {
		return fmt.Errorf("knowledgebase facts reply: %w", err)
	}

	return nil
}

func (m *Module) handleForget(ctx context.Context, interaction *tika.Interaction) error {
	if err := m.knowledge.Forget(interaction.GuildID); err != nil {
		return fmt.Errorf("knowledgebase forget: %w", err)
	}

	return m.reply(ctx, interaction, "knowledge", "forgotten", nil)
}

func (m *Module) reply(ctx context.Context, interaction *tika.Interaction, category, key string, vars map[string]string) error {
	if err := interaction.Responder.Reply(ctx, m.personality.Line(category, key, vars)); err != nil {
		return fmt.Errorf("knowledgebase reply %s.%s: %w", category, key, err)
	}

	return nil
}

var (
	_ tika.Module          = (*Module)(nil)
	_ tika.ModuleRegistrar = (*Module)(nil)
)
