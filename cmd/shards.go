/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"feedrelay/feeds"

	"github.com/urfave/cli/v2"
)

func shardsCmd() *cli.Command {
	return &cli.Command{
		Name:        "shards",
		Usage:       "Print how the configured feeds are split between workers",
		Description: `Prints the feeds each worker polls, using the same partitioning as serve.`,
		Flags:       append([]cli.Flag{configFlag()}, pollingFlags()...),
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			for i, shard := range feeds.Partition(cfg.Feeds, cfg.Polling.Shards) {
				fmt.Fprintf(ctx.App.Writer, "shard %d (%d feeds)\n", i, len(shard))
				for _, feed := range shard {
					fmt.Fprintf(ctx.App.Writer, "  %s\n", feed)
				}
			}
			return nil
		},
	}
}
