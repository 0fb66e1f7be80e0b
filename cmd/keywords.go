/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"strings"

	"feedrelay/filters"

	"github.com/cqroot/prompt"
	"github.com/urfave/cli/v2"
)

func keywordsCmd() *cli.Command {
	return &cli.Command{
		Name:  "keywords",
		Usage: "Manage the keywords of a destination",
		Subcommands: []*cli.Command{
			{
				Name:      "list",
				Usage:     "List the keywords of a destination",
				ArgsUsage: "<guild-id>",
				Flags:     dbFlags(),
				Action: func(ctx *cli.Context) error {
					id, _, err := keywordArgs(ctx, false)
					if err != nil {
						return err
					}
					store, err := openStore(ctx)
					if err != nil {
						return err
					}
					defer store.Close()

					keywords, err := store.GetKeywords(ctx.Context, id)
					if err != nil {
						return err
					}
					for _, k := range keywords {
						fmt.Fprintln(ctx.App.Writer, k)
					}
					return nil
				},
			},
			{
				Name:      "add",
				Usage:     "Add keywords to a destination",
				ArgsUsage: "<guild-id> <keyword>...",
				Flags:     dbFlags(),
				Action: func(ctx *cli.Context) error {
					id, keywords, err := keywordArgs(ctx, true)
					if err != nil {
						return err
					}
					store, err := openStore(ctx)
					if err != nil {
						return err
					}
					defer store.Close()

					if err := store.AddKeywords(ctx.Context, id, keywords...); err != nil {
						return err
					}
					fmt.Fprintf(ctx.App.Writer, "Added %s\n", strings.Join(keywords, ", "))
					return nil
				},
			},
			{
				Name:      "remove",
				Usage:     "Remove keywords from a destination",
				ArgsUsage: "<guild-id> <keyword>...",
				Flags:     dbFlags(),
				Action: func(ctx *cli.Context) error {
					id, keywords, err := keywordArgs(ctx, true)
					if err != nil {
						return err
					}
					store, err := openStore(ctx)
					if err != nil {
						return err
					}
					defer store.Close()

					removed, err := store.RemoveKeywords(ctx.Context, id, keywords...)
					if err != nil {
						return err
					}
					fmt.Fprintf(ctx.App.Writer, "Removed %d keywords\n", removed)
					return nil
				},
			},
			{
				Name:      "clear",
				Usage:     "Remove every keyword from a destination",
				ArgsUsage: "<guild-id>",
				Flags: append(dbFlags(), &cli.BoolFlag{
					Name:    "yes",
					Aliases: []string{"y"},
					Usage:   "Skip the confirmation prompt",
				}),
				Action: func(ctx *cli.Context) error {
					id, _, err := keywordArgs(ctx, false)
					if err != nil {
						return err
					}

					if !ctx.Bool("yes") {
						answer, err := prompt.New().Ask(fmt.Sprintf("Type %s to clear all of its keywords:", id)).Input("")
						if err != nil {
							return err
						}
						if strings.TrimSpace(answer) != id {
							return errors.New("aborted")
						}
					}

					store, err := openStore(ctx)
					if err != nil {
						return err
					}
					defer store.Close()

					if err := store.ClearKeywords(ctx.Context, id); err != nil {
						return err
					}
					fmt.Fprintf(ctx.App.Writer, "Cleared keywords of %s\n", id)
					return nil
				},
			},
			{
				Name:      "restore",
				Usage:     "Replace the keywords of a destination with the defaults",
				ArgsUsage: "<guild-id>",
				Flags:     append(dbFlags(), configFlag()),
				Action: func(ctx *cli.Context) error {
					id, _, err := keywordArgs(ctx, false)
					if err != nil {
						return err
					}
					cfg, err := loadConfig(ctx)
					if err != nil {
						return err
					}
					store, err := openStore(ctx)
					if err != nil {
						return err
					}
					defer store.Close()

					if err := store.RestoreDefaultKeywords(ctx.Context, id, cfg.DefaultKeywords); err != nil {
						return err
					}
					fmt.Fprintf(ctx.App.Writer, "Restored default keywords of %s\n", id)
					return nil
				},
			},
		},
	}
}

// keywordArgs reads the guild id and, when wanted, at least one normalized keyword
func keywordArgs(ctx *cli.Context, withKeywords bool) (string, []string, error) {
	id := strings.TrimSpace(ctx.Args().First())
	if id == "" {
		return "", nil, errors.New("expected a guild id")
	}
	if !withKeywords {
		return id, nil, nil
	}

	keywords := filters.Normalize(ctx.Args().Tail())
	if len(keywords) == 0 {
		return "", nil, errors.New("expected at least one keyword")
	}
	return id, keywords, nil
}
