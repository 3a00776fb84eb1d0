package tika

import (
	"context"
	"fmt"
	"time"
)

// Responder delivers reply text back to the conversation that produced an
// interaction. Implementations are owned by the platform driver.
type Responder interface {
	// Reply posts text to the interaction's channel.
	Reply(ctx context.Context, text string) error
	// ReplyPrivate posts text visible only to the interaction author when the
	// platform supports it, falling back to a channel reply otherwise.
	ReplyPrivate(ctx context.Context, text string) error
}

// Interaction is the neutral command envelope that drivers publish and
// modules consume. The driver supplies primitive identifiers and permission
// flags; modules never see platform session types.
type Interaction struct {
	// ID is a stable identifier for this interaction instance.
	ID string
	// GuildID identifies the server the command was issued in.
	GuildID int64
	// ChannelID identifies the conversation channel.
	ChannelID string
	// UserID identifies the invoking user.
	UserID int64
	// UserName is the invoking user's display name.
	UserName string
	// HasAdminPermission reports the platform administrator permission
	// override for the invoking user in this guild.
	HasAdminPermission bool
	// Command is the normalized command name without prefix.
	Command string
	// Args holds whitespace-split tokens after the command name.
	Args []string
	// RawText is the original message text including the command header.
	RawText string
	// OccurredAt is the platform timestamp for the triggering message.
	OccurredAt time.Time
	// Responder delivers replies for this interaction.
	Responder Responder
}

// ArgText joins the interaction argument tokens back into free text.
func (i *Interaction) ArgText() string {
	if i == nil || len(i.Args) == 0 {
		return ""
	}

	joined := i.Args[0]
	for _, token := range i.Args[1:] {
		joined += " " + token
	}

	return joined
}

// Validate checks interaction envelope coherence.
func (i *Interaction) Validate() error {
	if i == nil {
		return fmt.Errorf("%w: nil interaction", ErrInvalidInteraction)
	}
	if i.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidInteraction)
	}
	if i.GuildID == 0 {
		return fmt.Errorf("%w: missing guild id", ErrInvalidInteraction)
	}
	if i.ChannelID == "" {
		return fmt.Errorf("%w: missing channel id", ErrInvalidInteraction)
	}
	if i.UserID == 0 {
		return fmt.Errorf("%w: missing user id", ErrInvalidInteraction)
	}
	if i.Command == "" {
		return fmt.Errorf("%w: missing command", ErrInvalidInteraction)
	}
	if i.Responder == nil {
		return fmt.Errorf("%w: missing responder", ErrInvalidInteraction)
	}

	return nil
}
