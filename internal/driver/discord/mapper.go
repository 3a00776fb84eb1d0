package discord

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"tika/pkg/tika"
)

// chatCommandName is the implicit command used when the bot is mentioned
// without an explicit prefix command.
const chatCommandName = "chat"

// mapMessageCreate converts one gateway message into a neutral interaction.
//
// matched is false for messages the bot should silently ignore: other bots,
// direct messages, plain chatter, and malformed command headers. The caller
// must attach a Responder before dispatching.
func mapMessageCreate(
	botUserID string,
	hasAdminPermission bool,
	message *discordgo.MessageCreate,
) (*tika.Interaction, bool, error) {
	if message == nil || message.Message == nil || message.Author == nil {
		return nil, false, nil
	}
	if message.Author.Bot {
		return nil, false, nil
	}
	if message.GuildID == "" {
		return nil, false, nil
	}
	if botUserID != "" && message.Author.ID == botUserID {
		return nil, false, nil
	}

	command, args, matched := parseCommandText(botUserID, message.Content)
	if !matched {
		return nil, false, nil
	}

	guildID, err := parseSnowflake(message.GuildID)
	if err != nil {
		return nil, false, fmt.Errorf("map message: guild id: %w", err)
	}
	userID, err := parseSnowflake(message.Author.ID)
	if err != nil {
		return nil, false, fmt.Errorf("map message: user id: %w", err)
	}

	occurredAt := message.Timestamp
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	return &tika.Interaction{
		ID:                 message.ID,
		GuildID:            guildID,
		ChannelID:          message.ChannelID,
		UserID:             userID,
		UserName:           displayName(message),
		HasAdminPermission: hasAdminPermission,
		Command:            command,
		Args:               args,
		RawText:            message.Content,
		OccurredAt:         occurredAt,
	}, true, nil
}

// parseCommandText extracts a command invocation from message content.
// Prefixed commands win; a leading bot mention becomes an implicit chat
// command carrying the remaining text.
func parseCommandText(botUserID, content string) (command string, args []string, matched bool) {
	candidate, isCommand, err := tika.ParseCommandCandidate(content)
	if isCommand {
		if err != nil {
			return "", nil, false
		}

		return candidate.Name, candidate.Args, true
	}

	remainder, mentioned := stripLeadingMention(botUserID, content)
	if !mentioned || remainder == "" {
		return "", nil, false
	}

	return chatCommandName, strings.Fields(remainder), true
}

// stripLeadingMention removes a leading <@id> or <@!id> bot mention.
func stripLeadingMention(botUserID, content string) (string, bool) {
	if botUserID == "" {
		return "", false
	}

	trimmed := strings.TrimSpace(content)
	for _, mention := range []string{"<@" + botUserID + ">", "<@!" + botUserID + ">"} {
		if strings.HasPrefix(trimmed, mention) {
			return strings.TrimSpace(strings.TrimPrefix(trimmed, mention)), true
		}
	}

	return "", false
}

func displayName(message *discordgo.MessageCreate) string {
	if message.Member != nil && strings.TrimSpace(message.Member.Nick) != "" {
		return strings.TrimSpace(message.Member.Nick)
	}
	if strings.TrimSpace(message.Author.GlobalName) != "" {
		return strings.TrimSpace(message.Author.GlobalName)
	}

	return message.Author.Username
}

func parseSnowflake(raw string) (int64, error) {
	parsed, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse snowflake %q: %w", raw, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("parse snowflake %q: must be > 0", raw)
	}

	return parsed, nil
}

// ParseUserMention extracts the user ID from a <@id> or <@!id> mention token.
func ParseUserMention(token string) (int64, error) {
	token = strings.TrimSpace(token)
	if !strings.HasPrefix(token, "<@") || !strings.HasSuffix(token, ">") {
		return 0, fmt.Errorf("parse user mention %q: not a mention", token)
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(token, "<@"), ">")
	inner = strings.TrimPrefix(inner, "!")

	userID, err := parseSnowflake(inner)
	if err != nil {
		return 0, fmt.Errorf("parse user mention %q: %w", token, err)
	}

	return userID, nil
}
