// Package discord adapts the Discord gateway into neutral tika interactions.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"

	"tika/pkg/tika"
)

// Config configures one Discord driver instance.
type Config struct {
	// Token is the Discord bot token without the "Bot " prefix.
	Token string
}

// Driver connects one Discord bot session and publishes guild message
// commands into the kernel.
type Driver struct {
	logger  *slog.Logger
	session *discordgo.Session

	mu   sync.RWMutex
	sink tika.InteractionSink
}

// New creates a Discord driver. The gateway connection is opened in Start.
func New(cfg Config, logger *slog.Logger) (*Driver, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, fmt.Errorf("new discord driver: missing token")
	}
	if logger == nil {
		logger = slog.Default()
	}

	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("new discord driver: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent

	driver := &Driver{
		logger:  logger,
		session: session,
	}
	session.AddHandler(driver.handleMessageCreate)

	return driver, nil
}

// Name returns the stable driver identifier.
func (d *Driver) Name() string {
	return "discord"
}

// Start opens the gateway connection and blocks until ctx is cancelled.
func (d *Driver) Start(ctx context.Context, sink tika.InteractionSink) error {
	if sink == nil {
		return fmt.Errorf("discord driver start: nil sink")
	}

	d.mu.Lock()
	d.sink = sink
	d.mu.Unlock()

	if err := d.session.Open(); err != nil {
		return fmt.Errorf("discord driver start: open gateway: %w", err)
	}
	d.logger.Info("discord gateway connected")

	<-ctx.Done()

	return ctx.Err()
}

// Shutdown closes the gateway session.
func (d *Driver) Shutdown(context.Context) error {
	if err := d.session.Close(); err != nil {
		return fmt.Errorf("discord driver shutdown: %w", err)
	}
	d.logger.Info("discord gateway disconnected")

	return nil
}

// GuildCount reports how many guilds the connected session sees.
func (d *Driver) GuildCount() int {
	if d.session.State == nil {
		return 0
	}
	d.session.State.RLock()
	defer d.session.State.RUnlock()

	return len(d.session.State.Guilds)
}

// handleMessageCreate maps one gateway message into an interaction and
// dispatches it. Non-command chatter and other bots are ignored.
func (d *Driver) handleMessageCreate(session *discordgo.Session, message *discordgo.MessageCreate) {
	d.mu.RLock()
	sink := d.sink
	d.mu.RUnlock()
	if sink == nil {
		return
	}

	botUserID := ""
	if session.State != nil && session.State.User != nil {
		botUserID = session.State.User.ID
	}

	hasAdmin := d.memberHasAdminPermission(session, message)
	interaction, matched, err := mapMessageCreate(botUserID, hasAdmin, message)
	if err != nil {
		d.logger.Warn("dropping unmappable message",
			"channel_id", message.ChannelID,
			"error", err,
		)

		return
	}
	if !matched {
		return
	}
	interaction.Responder = &channelResponder{
		session:   session,
		channelID: message.ChannelID,
		reference: message.Reference(),
	}

	if err := sink.Dispatch(context.Background(), interaction); err != nil {
		d.logger.Error("interaction dispatch failed",
			"command", interaction.Command,
			"guild_id", interaction.GuildID,
			"error", err,
		)
	}
}

// memberHasAdminPermission resolves the author's administrator permission in
// the message channel. Resolution failures count as no permission.
func (d *Driver) memberHasAdminPermission(session *discordgo.Session, message *discordgo.MessageCreate) bool {
	if message.Author == nil || message.GuildID == "" {
		return false
	}

	permissions, err := session.UserChannelPermissions(message.Author.ID, message.ChannelID)
	if err != nil {
		return false
	}

	return permissions&discordgo.PermissionAdministrator != 0
}

// channelResponder posts replies back to the originating channel. Discord
// has no private reply in guild channels, so ReplyPrivate posts a visible
// reply referencing the triggering message.
type channelResponder struct {
	session   *discordgo.Session
	channelID string
	reference *discordgo.MessageReference
}

func (r *channelResponder) Reply(_ context.Context, text string) error {
	if _, err := r.session.ChannelMessageSend(r.channelID, text); err != nil {
		return fmt.Errorf("discord reply: %w", err)
	}

	return nil
}

func (r *channelResponder) ReplyPrivate(_ context.Context, text string) error {
	if _, err := r.session.ChannelMessageSendReply(r.channelID, text, r.reference); err != nil {
		return fmt.Errorf("discord reply private: %w", err)
	}

	return nil
}

var (
	_ tika.Driver    = (*Driver)(nil)
	_ tika.Responder = (*channelResponder)(nil)
)
