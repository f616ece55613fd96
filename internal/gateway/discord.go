package gateway

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// DiscordAnnouncer posts announcements to one Discord channel. An
// outbound-only bot needs no gateway websocket; everything goes over
// the REST API.
type DiscordAnnouncer struct {
	session   *discordgo.Session
	channelID string
	logger    *zap.Logger
}

// NewDiscordAnnouncer creates the announcer. The token is the bot
// token; the channel must already exist and admit the bot.
func NewDiscordAnnouncer(token, channelID string, logger *zap.Logger) (*DiscordAnnouncer, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	return &DiscordAnnouncer{
		session:   session,
		channelID: channelID,
		logger:    logger,
	}, nil
}

func (a *DiscordAnnouncer) Platform() string { return "discord" }

// Announce posts one message to the configured channel.
func (a *DiscordAnnouncer) Announce(_ context.Context, text string) error {
	if _, err := a.session.ChannelMessageSend(a.channelID, text); err != nil {
		return fmt.Errorf("discord send: %w", err)
	}
	return nil
}

// Close shuts down the Discord session.
func (a *DiscordAnnouncer) Close() error {
	return a.session.Close()
}
