package effectors

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/vthunder/plantbud/internal/types"
)

// discordLimit is the maximum message length Discord accepts
const discordLimit = 2000

type channelSender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordNotifier posts notifications to one channel
type DiscordNotifier struct {
	session   channelSender
	channelID string
}

// NewDiscordNotifier creates a notifier with its own bot session
func NewDiscordNotifier(token, channelID string) (*DiscordNotifier, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	return &DiscordNotifier{session: session, channelID: channelID}, nil
}

// Notify sends text, split to Discord's length limit. High urgency
// messages mention everyone in the channel.
func (d *DiscordNotifier) Notify(ctx context.Context, text string, urgency types.Urgency) error {
	if urgency == types.UrgencyHigh {
		text = "@here " + text
	}
	for _, part := range chunk(text, discordLimit) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := d.session.ChannelMessageSend(d.channelID, part, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("discord send: %w", err)
		}
	}
	return nil
}
