/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func RootApp() *cli.App {
	return &cli.App{
		Name:  "feedrelay",
		Usage: "Relay keyword matched news stories from RSS feeds to Discord channels",
		Description: `Polls a fixed list of RSS/Atom feeds and posts every story that
		matches a guild's keywords to the guild's registered Discord channel,
		exactly once per guild.

		Guilds manage their subscription with chat commands (!startGameUpdates,
		!addKeyword, ...) or through the destinations and keywords commands.

		Flags can generally be set via environment variables, e.g.:

		--database => FEEDRELAY_DATABASE=feedrelay.db
		--discord-token => FEEDRELAY_DISCORD_TOKEN=...
		`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (trace, debug, info, warn, error)",
				EnvVars: []string{"FEEDRELAY_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Value:   "text",
				Usage:   "Log format (text or json)",
				EnvVars: []string{"FEEDRELAY_LOG_FORMAT"},
			},
		},
		Before: setupLogging,
		Commands: []*cli.Command{
			serveCmd(),
			migrateCmd(),
			rollbackCmd(),
			shardsCmd(),
			destinationsCmd(),
			keywordsCmd(),
		},
		Action: func(ctx *cli.Context) error {
			// Show help if no command is specified
			return ctx.App.Run([]string{"", "help"})
		},
	}
}

func setupLogging(ctx *cli.Context) error {
	level, err := log.ParseLevel(ctx.String("log-level"))
	if err != nil {
		return err
	}
	log.SetLevel(level)

	switch ctx.String("log-format") {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("unknown log format %q", ctx.String("log-format"))
	}
	return nil
}

// Execute loads an optional .env file and runs the CLI
func Execute() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warnf("Could not load .env file: %v", err)
	}

	if err := RootApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
