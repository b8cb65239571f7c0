package cli

import (
	"context"

	"github.com/m-mizutani/agentmem/pkg/usecase/memory"
	"github.com/urfave/cli/v3"
)

func listCommand() *cli.Command {
	var (
		cfg     config
		project string
		limit   int64
		asJSON  bool
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "project",
			Aliases:     []string{"p"},
			Usage:       "Glob pattern matched against the project name",
			Destination: &project,
		},
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"n"},
			Usage:       "Maximum number of memories to list (0 for all)",
			Value:       0,
			Destination: &limit,
		},
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "Print the inventory as JSON",
			Destination: &asJSON,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "list",
		Usage: "List saved memories, newest first",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			p := newPrinter(c)

			ctx, err := cfg.setup(ctx, c)
			if err != nil {
				return p.failure("Failed to list memories", err, nil)
			}

			repo, err := cfg.newRepository()
			if err != nil {
				return p.failure("Failed to list memories", err, nil)
			}

			summaries, err := memory.New(repo).List(ctx, memory.ListOptions{
				Project: project,
				Limit:   int(limit),
			})
			if err != nil {
				return p.failure("Failed to list memories", err, nil)
			}

			if asJSON {
				return p.json(summaries)
			}
			p.summaries(summaries)
			return nil
		},
	}
}
