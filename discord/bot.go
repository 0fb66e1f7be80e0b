package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
)

// Bot owns the Discord session and answers chat commands
type Bot struct {
	session  *discordgo.Session
	commands *Commands
}

// NewSession creates a session for a bot token with the intents needed to read commands
func NewSession(token string) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentsMessageContent
	return session, nil
}

func NewBot(session *discordgo.Session, commands *Commands) *Bot {
	bot := &Bot{session: session, commands: commands}
	session.AddHandler(bot.onReady)
	session.AddHandler(bot.onMessageCreate)
	return bot
}

// Open connects the gateway, retrying with exponential backoff for up to maxWait
func (b *Bot) Open(ctx context.Context, maxWait time.Duration) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = maxWait

	return backoff.RetryNotify(b.session.Open, backoff.WithContext(bo, ctx), func(err error, wait time.Duration) {
		log.Warnf("Could not connect to Discord, retrying in %s: %v", wait, err)
	})
}

func (b *Bot) Close() error {
	return b.session.Close()
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	log.WithFields(log.Fields{
		"user":   r.User.String(),
		"guilds": len(r.Guilds),
	}).Info("Connected to Discord")
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	// Commands only work inside guilds and never from bots
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger := log.WithFields(log.Fields{
		"destination": m.GuildID,
		"channel":     m.ChannelID,
	})

	reply, err := b.commands.Handle(ctx, m.GuildID, m.ChannelID, m.Content)
	if err != nil {
		logger.Errorf("Error handling command %q: %v", m.Content, err)
		reply = "Something went wrong, please try again later."
	}
	if reply == "" {
		return
	}

	if _, err := s.ChannelMessageSendReply(m.ChannelID, reply, m.Reference(), discordgo.WithContext(ctx)); err != nil {
		logger.Errorf("Error replying to command: %v", err)
	}
}
