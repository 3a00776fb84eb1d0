// Package ai drives Tika's persona chat on top of a configured text
// generator, with per-channel conversation memory and guild knowledge
// grounding.
package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"tika/pkg/tika"
)

const (
	defaultHistoryLimit   = 20
	defaultRequestTimeout = 60 * time.Second

	// distillPromptLimit bounds page text sent for fact distillation.
	distillPromptLimit = 12 * 1024
)

// FactSource supplies remembered guild facts for prompt grounding.
type FactSource interface {
	Facts(guildID int64) ([]string, error)
}

// Config configures one chat service instance.
type Config struct {
	// Model is the generator model name.
	Model string
	// SystemPrompt is the persona behavior prompt.
	SystemPrompt string
	// Temperature optionally controls output randomness.
	Temperature float64
	// MaxOutputTokens optionally limits generated token count.
	MaxOutputTokens int
	// HistoryLimit bounds remembered turns per channel. Zero defaults to 20.
	HistoryLimit int
	// RequestTimeout bounds one generation request. Zero defaults to 60s.
	RequestTimeout time.Duration
}

// Service generates persona chat replies, conversation summaries, and
// distilled knowledge facts.
type Service struct {
	generator tika.Generator
	facts     FactSource
	logger    *slog.Logger
	cfg       Config

	mu      sync.Mutex
	history map[string][]tika.GeneratorMessage
}

// NewService creates a chat service. facts may be nil; replies are then
// generated without a knowledge block.
func NewService(generator tika.Generator, facts FactSource, logger *slog.Logger, cfg Config) (*Service, error) {
	if generator == nil {
		return nil, fmt.Errorf("new ai service: nil generator")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("new ai service: missing model")
	}
	if strings.TrimSpace(cfg.SystemPrompt) == "" {
		return nil, fmt.Errorf("new ai service: missing system prompt")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}

	return &Service{
		generator: generator,
		facts:     facts,
		logger:    logger,
		cfg:       cfg,
		history:   make(map[string][]tika.GeneratorMessage),
	}, nil
}

// ChatReply generates one in-character reply to a user message, remembering
// the exchange in the channel's conversation history.
func (s *Service) ChatReply(ctx context.Context, guildID int64, channelID, userName, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", fmt.Errorf("chat reply: empty message")
	}
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return "", fmt.Errorf("chat reply: empty channel id")
	}

	userTurn := tika.GeneratorMessage{
		Role:    tika.GeneratorRoleUser,
		Content: formatUserTurn(userName, message),
	}

	messages := make([]tika.GeneratorMessage, 0, s.cfg.HistoryLimit+3)
	messages = append(messages, tika.GeneratorMessage{
		Role:    tika.GeneratorRoleSystem,
		Content: s.cfg.SystemPrompt,
	})
	if factsBlock := s.factsBlock(guildID); factsBlock != "" {
		messages = append(messages, tika.GeneratorMessage{
			Role:    tika.GeneratorRoleSystem,
			Content: factsBlock,
		})
	}
	messages = append(messages, s.channelHistory(channelID)...)
	messages = append(messages, userTurn)

	requestCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	reply, err := s.generator.Generate(requestCtx, tika.GenerateRequest{
		Model:           s.cfg.Model,
		Messages:        messages,
		Temperature:     s.cfg.Temperature,
		MaxOutputTokens: s.cfg.MaxOutputTokens,
	})
	if err != nil {
		return "", fmt.Errorf("chat reply: %w", err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", fmt.Errorf("chat reply: empty completion")
	}

	s.rememberExchange(channelID, userTurn, tika.GeneratorMessage{
		Role:    tika.GeneratorRoleAssistant,
		Content: reply,
	})

	return reply, nil
}

// ResetHistory forgets the conversation memory for one channel.
func (s *Service) ResetHistory(channelID string) {
	s.mu.Lock()
	delete(s.history, strings.TrimSpace(channelID))
	s.mu.Unlock()
}

// Summarize condenses a conversation transcript into a short third-person
// summary, keeping names and decisions.
func (s *Service) Summarize(ctx context.Context, messages []tika.GeneratorMessage) (string, error) {
	transcript := &strings.Builder{}
	for _, message := range messages {
		content := strings.TrimSpace(message.Content)
		if content == "" {
			continue
		}
		transcript.WriteString(string(message.Role))
		transcript.WriteString(": ")
		transcript.WriteString(content)
		transcript.WriteByte('\n')
	}
	if transcript.Len() == 0 {
		return "", fmt.Errorf("summarize: empty conversation")
	}

	requestCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	summary, err := s.generator.Generate(requestCtx, tika.GenerateRequest{
		Model: s.cfg.Model,
		Messages: []tika.GeneratorMessage{
			{
				Role: tika.GeneratorRoleSystem,
				Content: "Summarize the conversation below in at most three " +
					"sentences, third person, keeping speaker names and any " +
					"decisions made. Reply with only the summary.",
			},
			{
				Role:    tika.GeneratorRoleUser,
				Content: transcript.String(),
			},
		},
		MaxOutputTokens: s.cfg.MaxOutputTokens,
	})
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return "", fmt.Errorf("summarize: empty completion")
	}

	return summary, nil
}

// DistillFact reduces scraped page text to one short remembered fact.
func (s *Service) DistillFact(ctx context.Context, sourceURL, pageText string) (string, error) {
	pageText = strings.TrimSpace(pageText)
	if pageText == "" {
		return "", fmt.Errorf("distill fact: empty page text")
	}
	if len(pageText) > distillPromptLimit {
		pageText = pageText[:distillPromptLimit]
	}

	requestCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	fact, err := s.generator.Generate(requestCtx, tika.GenerateRequest{
		Model: s.cfg.Model,
		Messages: []tika.GeneratorMessage{
			{
				Role: tika.GeneratorRoleSystem,
				Content: "Summarize the page content into one or two factual sentences " +
					"worth remembering. Reply with only the fact, no preamble.",
			},
			{
				Role:    tika.GeneratorRoleUser,
				Content: fmt.Sprintf("Source: %s\n\n%s", sourceURL, pageText),
			},
		},
		MaxOutputTokens: s.cfg.MaxOutputTokens,
	})
	if err != nil {
		return "", fmt.Errorf("distill fact: %w", err)
	}
	fact = strings.TrimSpace(fact)
	if fact == "" {
		return "", fmt.Errorf("distill fact: empty completion")
	}

	return fact, nil
}

// factsBlock renders the guild's remembered facts as one system message.
// Fact lookup failures degrade to an ungrounded reply.
func (s *Service) factsBlock(guildID int64) string {
	if s.facts == nil {
		return ""
	}

	facts, err := s.facts.Facts(guildID)
	if err != nil {
		s.logger.Warn("fact lookup failed, replying without knowledge block",
			"guild_id", guildID,
			"error", err,
		)

		return ""
	}
	if len(facts) == 0 {
		return ""
	}

	builder := &strings.Builder{}
	builder.WriteString("Things you have learned in this server:\n")
	for _, fact := range facts {
		builder.WriteString("- ")
		builder.WriteString(fact)
		builder.WriteByte('\n')
	}

	return strings.TrimSpace(builder.String())
}

func (s *Service) channelHistory(channelID string) []tika.GeneratorMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]tika.GeneratorMessage(nil), s.history[channelID]...)
}

// rememberExchange appends one user/assistant turn pair and trims the
// channel history to the configured limit.
func (s *Service) rememberExchange(channelID string, turns ...tika.GeneratorMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := append(s.history[channelID], turns...)
	if overflow := len(history) - s.cfg.HistoryLimit; overflow > 0 {
		history = append([]tika.GeneratorMessage(nil), history[overflow:]...)
	}
	s.history[channelID] = history
}

func formatUserTurn(userName, message string) string {
	userName = strings.TrimSpace(userName)
	if userName == "" {
		return message
	}

	return userName + ": " + message
}
