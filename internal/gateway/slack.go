package gateway

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
	"go.uber.org/zap"
)

// SlackAnnouncer posts announcements to one Slack channel. Outbound
// only, so a plain bot token suffices; no Socket Mode, no app token.
type SlackAnnouncer struct {
	client  *slack.Client
	channel string
	logger  *zap.Logger
}

// NewSlackAnnouncer creates the announcer. botToken is the Bot User
// OAuth Token (xoxb-...); channel takes a name or ID.
func NewSlackAnnouncer(botToken, channel string, logger *zap.Logger) *SlackAnnouncer {
	return &SlackAnnouncer{
		client:  slack.New(botToken),
		channel: channel,
		logger:  logger,
	}
}

func (a *SlackAnnouncer) Platform() string { return "slack" }

// Announce posts one message to the configured channel.
func (a *SlackAnnouncer) Announce(ctx context.Context, text string) error {
	_, _, err := a.client.PostMessageContext(ctx, a.channel,
		slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("slack send: %w", err)
	}
	return nil
}

// Close is a no-op; the Slack client holds no connection.
func (a *SlackAnnouncer) Close() error {
	return nil
}
