package tika

import (
	"context"
	"fmt"
	"strings"
)

// GeneratorRole tags one conversation message with its speaker role.
type GeneratorRole string

const (
	// GeneratorRoleSystem carries behavioral instructions.
	GeneratorRoleSystem GeneratorRole = "system"
	// GeneratorRoleUser carries end-user input.
	GeneratorRoleUser GeneratorRole = "user"
	// GeneratorRoleAssistant carries prior model output.
	GeneratorRoleAssistant GeneratorRole = "assistant"
)

// GeneratorMessage is one role-tagged conversation message.
type GeneratorMessage struct {
	// Role identifies the message speaker.
	Role GeneratorRole
	// Content is the message text.
	Content string
}

// GenerateRequest is one provider-neutral text generation request.
type GenerateRequest struct {
	// Model identifies the provider model name to call.
	Model string
	// Messages is the ordered conversation including system messages.
	Messages []GeneratorMessage
	// Temperature controls output randomness when > 0.
	Temperature float64
	// MaxOutputTokens limits generated token count when > 0.
	MaxOutputTokens int
}

// Validate checks generation request coherence.
func (r GenerateRequest) Validate() error {
	if strings.TrimSpace(r.Model) == "" {
		return fmt.Errorf("validate generate request: missing model")
	}
	if len(r.Messages) == 0 {
		return fmt.Errorf("validate generate request: missing messages")
	}
	for index, message := range r.Messages {
		switch message.Role {
		case GeneratorRoleSystem, GeneratorRoleUser, GeneratorRoleAssistant:
		default:
			return fmt.Errorf("validate generate request: messages[%d] unsupported role %q", index, message.Role)
		}
		if strings.TrimSpace(message.Content) == "" {
			return fmt.Errorf("validate generate request: messages[%d] empty content", index)
		}
	}
	if r.Temperature < 0 {
		return fmt.Errorf("validate generate request: temperature must be >= 0")
	}
	if r.MaxOutputTokens < 0 {
		return fmt.Errorf("validate generate request: max_output_tokens must be >= 0")
	}

	return nil
}

// Generator produces one text completion per request.
//
// Implementations must be concurrency-safe because handlers can generate
// from multiple guilds at the same time.
type Generator interface {
	// Generate returns the full completion text for one request.
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// GeneratorRegistry resolves configured generators by stable profile key.
type GeneratorRegistry interface {
	// Resolve returns one configured generator by profile key.
	Resolve(profile string) (Generator, error)
}
