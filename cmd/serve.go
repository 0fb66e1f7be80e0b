/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"feedrelay/db"
	"feedrelay/discord"
	"feedrelay/dispatch"
	"feedrelay/feeds"
	"feedrelay/filters"
	"feedrelay/server"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the feed relay",
		Description: `Connects to Discord, starts one feed worker per shard of the configured
feeds and a dispatcher that posts matching stories to every registered
channel. A small HTTP server exposes /healthz, /metrics and /status.

Guilds subscribe with !startGameUpdates in the channel that should receive
stories.`,
		Flags: append(append([]cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:     "discord-token",
				Usage:    "Discord bot token",
				EnvVars:  []string{"FEEDRELAY_DISCORD_TOKEN", "DISCORD_TOKEN"},
				Required: true,
			},
			&cli.StringFlag{
				Name:    "host",
				Value:   "0.0.0.0",
				Usage:   "Status server host",
				EnvVars: []string{"FEEDRELAY_HOST"},
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   3000,
				Usage:   "Status server port",
				EnvVars: []string{"FEEDRELAY_PORT"},
			},
			&cli.DurationFlag{
				Name:    "connect-timeout",
				Value:   time.Minute,
				Usage:   "How long to keep retrying the database and Discord at startup",
				EnvVars: []string{"FEEDRELAY_CONNECT_TIMEOUT"},
			},
		}, dbFlags()...), pollingFlags()...),
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, err := db.Connect(runCtx, dbConfig(ctx), ctx.Duration("connect-timeout"))
			if err != nil {
				return err
			}
			defer store.Close()

			session, err := discord.NewSession(ctx.String("discord-token"))
			if err != nil {
				return err
			}
			bot := discord.NewBot(session, discord.NewCommands(store, cfg.DefaultKeywords))
			if err := bot.Open(runCtx, ctx.Duration("connect-timeout")); err != nil {
				return fmt.Errorf("could not connect to Discord: %w", err)
			}
			defer bot.Close()

			client := feeds.NewHTTPClient(30 * time.Second)
			fetcher := feeds.NewHTTPFetcher(client, feeds.NewHostRateLimiter(cfg.Polling.HostSpacing.Duration), cfg.Preview.UserAgent)

			coordinator := feeds.NewCoordinator(feeds.CoordinatorConfig{
				Feeds:    cfg.Feeds,
				Shards:   cfg.Polling.Shards,
				Interval: cfg.Polling.Interval.Duration,
				Buffer:   cfg.Polling.Buffer,
			}, fetcher, store)

			dispatcher := dispatch.NewDispatcher(
				store,
				store,
				discord.NewSender(session),
				dispatch.NewHTMLPreviewFinder(client, cfg.Preview.Timeout.Duration, cfg.Preview.UserAgent),
				dispatch.Config{
					Concurrency: cfg.Dispatch.Concurrency,
					Footer:      cfg.Dispatch.Footer,
				},
			)

			app := server.Server(&server.ServerConfig{
				Store:   store,
				Workers: coordinator,
				Feeds:   len(cfg.Feeds),
			})

			log.WithFields(log.Fields{
				"feeds":            len(cfg.Feeds),
				"default_keywords": len(filters.Normalize(cfg.DefaultKeywords)),
			}).Info("Starting feedrelay")

			if err := coordinator.Start(runCtx); err != nil {
				return err
			}

			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				dispatcher.Run(runCtx, coordinator.Stories())
			}()

			serverErr := make(chan error, 1)
			go func() {
				address := fmt.Sprintf("%s:%d", ctx.String("host"), ctx.Int("port"))
				log.Infof("Starting status server on %s", address)
				serverErr <- app.Listen(address)
			}()

			select {
			case <-runCtx.Done():
				log.Info("Gracefully shutting down...")
			case err = <-serverErr:
				log.Errorf("Status server stopped: %v", err)
				stop()
			}

			if shutdownErr := app.ShutdownWithTimeout(10 * time.Second); shutdownErr != nil {
				log.Errorf("Error shutting down status server: %v", shutdownErr)
			}
			coordinator.Wait()
			wg.Wait()

			log.Info("Done!")
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}
