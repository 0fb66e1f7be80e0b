package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"feedrelay/db"
	"feedrelay/filters"
)

const commandPrefix = "!"

// Store is the part of the destination registry that chat commands change
type Store interface {
	RegisterDestination(ctx context.Context, id, channelID string, defaults []string) (bool, error)
	UnregisterDestination(ctx context.Context, id string) (bool, error)
	GetKeywords(ctx context.Context, id string) ([]string, error)
	AddKeywords(ctx context.Context, id string, keywords ...string) error
	RemoveKeywords(ctx context.Context, id string, keywords ...string) (int64, error)
	ClearKeywords(ctx context.Context, id string) error
	RestoreDefaultKeywords(ctx context.Context, id string, defaults []string) error
}

// Commands handles the chat commands guilds use to manage their subscription. A guild is a
// destination, identified by its guild id.
type Commands struct {
	store    Store
	defaults []string
}

func NewCommands(store Store, defaults []string) *Commands {
	return &Commands{store: store, defaults: filters.Normalize(defaults)}
}

type commandFunc func(c *Commands, ctx context.Context, guildID, channelID, arg string) (string, error)

var commands = map[string]commandFunc{
	"startGameUpdates": (*Commands).start,
	"stopGameUpdates":  (*Commands).stop,
	"keywords":         (*Commands).list,
	"addKeyword":       (*Commands).add,
	"removeKeyword":    (*Commands).remove,
	"clearKeywords":    (*Commands).clear,
	"restoreKeywords":  (*Commands).restore,
}

// Handle runs the command in content, if any, and returns the reply. An empty reply with a nil
// error means the message was not a command.
func (c *Commands) Handle(ctx context.Context, guildID, channelID, content string) (string, error) {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, commandPrefix) {
		return "", nil
	}

	name, arg, _ := strings.Cut(strings.TrimPrefix(content, commandPrefix), " ")
	command, ok := commands[name]
	if !ok {
		return "", nil
	}

	reply, err := command(c, ctx, guildID, channelID, strings.TrimSpace(arg))
	if errors.Is(err, db.ErrDestinationNotFound) {
		return "Updates are not enabled here. Use `!startGameUpdates` first.", nil
	}
	return reply, err
}

func (c *Commands) start(ctx context.Context, guildID, channelID, _ string) (string, error) {
	if _, err := c.store.RegisterDestination(ctx, guildID, channelID, c.defaults); err != nil {
		return "", err
	}
	return "Updates will be sent to this channel.", nil
}

func (c *Commands) stop(ctx context.Context, guildID, _, _ string) (string, error) {
	if _, err := c.store.UnregisterDestination(ctx, guildID); err != nil {
		return "", err
	}
	return "Updates will be stopped for this channel.", nil
}

func (c *Commands) list(ctx context.Context, guildID, _, _ string) (string, error) {
	keywords, err := c.store.GetKeywords(ctx, guildID)
	if err != nil {
		return "", err
	}
	if len(keywords) == 0 {
		return "No keywords set. Nothing will be posted until you add one with `!addKeyword <keyword>`.", nil
	}
	return fmt.Sprintf("Current keywords: %s", strings.Join(keywords, ", ")), nil
}

func (c *Commands) add(ctx context.Context, guildID, _, arg string) (string, error) {
	keywords := filters.Normalize([]string{arg})
	if len(keywords) == 0 {
		return "Usage: `!addKeyword <keyword>`", nil
	}
	if err := c.store.AddKeywords(ctx, guildID, keywords...); err != nil {
		return "", err
	}
	return fmt.Sprintf("Added keyword: %s", keywords[0]), nil
}

func (c *Commands) remove(ctx context.Context, guildID, _, arg string) (string, error) {
	keywords := filters.Normalize([]string{arg})
	if len(keywords) == 0 {
		return "Usage: `!removeKeyword <keyword>`", nil
	}
	removed, err := c.store.RemoveKeywords(ctx, guildID, keywords...)
	if err != nil {
		return "", err
	}
	if removed == 0 {
		return fmt.Sprintf("Keyword not found: %s", keywords[0]), nil
	}
	return fmt.Sprintf("Removed keyword: %s", keywords[0]), nil
}

func (c *Commands) clear(ctx context.Context, guildID, _, _ string) (string, error) {
	if err := c.store.ClearKeywords(ctx, guildID); err != nil {
		return "", err
	}
	return "All keywords cleared.", nil
}

func (c *Commands) restore(ctx context.Context, guildID, _, _ string) (string, error) {
	if err := c.store.RestoreDefaultKeywords(ctx, guildID, c.defaults); err != nil {
		return "", err
	}
	return "Default keywords restored.", nil
}
