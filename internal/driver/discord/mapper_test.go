package discord

import (
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
)

const testBotID = "111111111111111111"

func guildMessage(content string) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{
		Message: &discordgo.Message{
			ID:        "500",
			GuildID:   "42",
			ChannelID: "900",
			Content:   content,
			Timestamp: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
			Author: &discordgo.User{
				ID:       "7",
				Username: "alice",
			},
		},
	}
}

func TestMapMessageCreateCommand(t *testing.T) {
	t.Parallel()

	message := guildMessage("!admin add <@9>")
	interaction, matched, err := mapMessageCreate(testBotID, true, message)
	if err != nil {
		t.Fatalf("mapMessageCreate() error = %v", err)
	}
	if !matched {
		t.Fatal("mapMessageCreate() matched = false, want true")
	}

	if interaction.Command != "admin" {
		t.Fatalf("command = %q, want admin", interaction.Command)
	}
	if len(interaction.Args) != 2 || interaction.Args[0] != "add" || interaction.Args[1] != "<@9>" {
		t.Fatalf("args = %v", interaction.Args)
	}
	if interaction.GuildID != 42 || interaction.UserID != 7 {
		t.Fatalf("ids = (%d, %d), want (42, 7)", interaction.GuildID, interaction.UserID)
	}
	if !interaction.HasAdminPermission {
		t.Fatal("admin permission flag lost in mapping")
	}
	if interaction.UserName != "alice" {
		t.Fatalf("user name = %q", interaction.UserName)
	}
}

func TestMapMessageCreateMentionBecomesChat(t *testing.T) {
	t.Parallel()

	message := guildMessage("<@" + testBotID + "> how are you today")
	interaction, matched, err := mapMessageCreate(testBotID, false, message)
	if err != nil {
		t.Fatalf("mapMessageCreate() error = %v", err)
	}
	if !matched {
		t.Fatal("mapMessageCreate() matched = false, want true")
	}
	if interaction.Command != "chat" {
		t.Fatalf("command = %q, want chat", interaction.Command)
	}
	if got := len(interaction.Args); got != 4 {
		t.Fatalf("args = %v, want 4 tokens", interaction.Args)
	}

	nickMention := guildMessage("<@!" + testBotID + "> hello")
	if _, matched, _ := mapMessageCreate(testBotID, false, nickMention); !matched {
		t.Fatal("nickname-style mention not matched")
	}
}

func TestMapMessageCreateIgnores(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		message *discordgo.MessageCreate
	}{
		{name: "nil message", message: nil},
		{name: "plain chatter", message: guildMessage("just talking")},
		{name: "bare prefix", message: guildMessage("!")},
		{name: "mention mid-text", message: guildMessage("hey <@" + testBotID + "> hi")},
		{
			name: "bot author",
			message: func() *discordgo.MessageCreate {
				m := guildMessage("!status")
				m.Author.Bot = true
				return m
			}(),
		},
		{
			name: "direct message",
			message: func() *discordgo.MessageCreate {
				m := guildMessage("!status")
				m.GuildID = ""
				return m
			}(),
		},
		{
			name: "own message",
			message: func() *discordgo.MessageCreate {
				m := guildMessage("!status")
				m.Author.ID = testBotID
				return m
			}(),
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			_, matched, err := mapMessageCreate(testBotID, false, test.message)
			if err != nil {
				t.Fatalf("mapMessageCreate() error = %v", err)
			}
			if matched {
				t.Fatal("mapMessageCreate() matched = true, want ignored")
			}
		})
	}
}

func TestMapMessageCreateInvalidSnowflake(t *testing.T) {
	t.Parallel()

	message := guildMessage("!status")
	message.GuildID = "not-a-number"

	_, matched, err := mapMessageCreate(testBotID, false, message)
	if err == nil || matched {
		t.Fatalf("mapMessageCreate() = (%v, %v), want snowflake error", matched, err)
	}
}

func TestMapMessageCreatePrefersNickname(t *testing.T) {
	t.Parallel()

	message := guildMessage("!status")
	message.Member = &discordgo.Member{Nick: "Ali"}
	message.Author.GlobalName = "Alice Global"

	interaction, matched, err := mapMessageCreate(testBotID, false, message)
	if err != nil || !matched {
		t.Fatalf("mapMessageCreate() = (%v, %v)", matched, err)
	}
	if interaction.UserName != "Ali" {
		t.Fatalf("user name = %q, want guild nickname", interaction.UserName)
	}
}

func TestParseUserMention(t *testing.T) {
	t.Parallel()

	tests := []struct {
		token   string
		want    int64
		wantErr bool
	}{
		{token: "<@9>", want: 9},
		{token: "<@!12345>", want: 12345},
		{token: "9", wantErr: true},
		{token: "<@abc>", wantErr: true},
		{token: "<@>", wantErr: true},
		{token: "", wantErr: true},
	}

	for _, test := range tests {
		got, err := ParseUserMention(test.token)
		if (err != nil) != test.wantErr {
			t.Fatalf("ParseUserMention(%q) error = %v, wantErr %v", test.token, err, test.wantErr)
		}
		if err == nil && got != test.want {
			t.Fatalf("ParseUserMention(%q) = %d, want %d", test.token, got, test.want)
		}
	}
}
