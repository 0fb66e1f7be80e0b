package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"feedrelay/dispatch"
	"feedrelay/models"

	"github.com/bwmarrin/discordgo"
)

// Sender delivers story messages as Discord embeds
type Sender struct {
	session *discordgo.Session
}

func NewSender(session *discordgo.Session) *Sender {
	return &Sender{session: session}
}

func (s *Sender) Send(ctx context.Context, channelID string, message models.Message) error {
	_, err := s.session.ChannelMessageSendEmbed(channelID, Embed(message), discordgo.WithContext(ctx))
	if err != nil {
		if isChannelNotFound(err) {
			return fmt.Errorf("send to %s: %w", channelID, dispatch.ErrChannelNotFound)
		}
		return fmt.Errorf("send to %s: %w", channelID, err)
	}
	return nil
}

// Embed renders a story message as a Discord embed
func Embed(message models.Message) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Type:        discordgo.EmbedTypeRich,
		Title:       message.Title,
		URL:         message.URL,
		Description: message.Summary,
		Color:       message.Color,
	}
	if message.Timestamp != nil {
		embed.Timestamp = message.Timestamp.UTC().Format(time.RFC3339)
	}
	if message.ImageURL != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: message.ImageURL}
	}
	if message.AuthorLine != "" {
		embed.Author = &discordgo.MessageEmbedAuthor{Name: message.AuthorLine}
	}
	if message.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: message.Footer}
	}
	return embed
}

func isChannelNotFound(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	if restErr.Message != nil && restErr.Message.Code == discordgo.ErrCodeUnknownChannel {
		return true
	}
	return restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound
}
