/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"feedrelay/db"

	"github.com/urfave/cli/v2"
)

func openStore(ctx *cli.Context) (*db.Store, error) {
	return db.Connect(ctx.Context, dbConfig(ctx), 10*time.Second)
}

func destinationsCmd() *cli.Command {
	return &cli.Command{
		Name:  "destinations",
		Usage: "Manage the guilds stories are delivered to",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List registered destinations and their keywords",
				Flags: dbFlags(),
				Action: func(ctx *cli.Context) error {
					store, err := openStore(ctx)
					if err != nil {
						return err
					}
					defer store.Close()

					destinations, err := store.ListDestinationsWithChannel(ctx.Context)
					if err != nil {
						return err
					}
					for _, d := range destinations {
						fmt.Fprintf(ctx.App.Writer, "%s -> %s [%s]\n", d.ID, d.ChannelID, strings.Join(d.Keywords, ", "))
					}
					return nil
				},
			},
			{
				Name:      "register",
				Usage:     "Register a guild to receive stories in a channel",
				ArgsUsage: "<guild-id> <channel-id>",
				Flags: append(dbFlags(), configFlag(), &cli.BoolFlag{
					Name:  "no-defaults",
					Usage: "Do not seed the default keywords for a new destination",
				}),
				Action: func(ctx *cli.Context) error {
					if ctx.NArg() != 2 {
						return errors.New("expected a guild id and a channel id")
					}
					id, channelID := ctx.Args().Get(0), ctx.Args().Get(1)

					var defaults []string
					if !ctx.Bool("no-defaults") {
						cfg, err := loadConfig(ctx)
						if err != nil {
							return err
						}
						defaults = cfg.DefaultKeywords
					}

					store, err := openStore(ctx)
					if err != nil {
						return err
					}
					defer store.Close()

					created, err := store.RegisterDestination(ctx.Context, id, channelID, defaults)
					if err != nil {
						return err
					}

					if created {
						fmt.Fprintf(ctx.App.Writer, "Registered %s -> %s\n", id, channelID)
					} else {
						fmt.Fprintf(ctx.App.Writer, "Moved %s -> %s\n", id, channelID)
					}
					return nil
				},
			},
			{
				Name:      "unregister",
				Usage:     "Stop delivering stories to a guild",
				ArgsUsage: "<guild-id>",
				Flags:     dbFlags(),
				Action: func(ctx *cli.Context) error {
					if ctx.NArg() != 1 {
						return errors.New("expected a guild id")
					}
					id := ctx.Args().First()

					store, err := openStore(ctx)
					if err != nil {
						return err
					}
					defer store.Close()

					removed, err := store.UnregisterDestination(ctx.Context, id)
					if err != nil {
						return err
					}
					if !removed {
						return fmt.Errorf("%w: %s", db.ErrDestinationNotFound, id)
					}

					fmt.Fprintf(ctx.App.Writer, "Unregistered %s\n", id)
					return nil
				},
			},
		},
	}
}
