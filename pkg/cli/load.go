package cli

import (
	"context"

	"github.com/m-mizutani/agentmem/pkg/usecase/memory"
	"github.com/urfave/cli/v3"
)

var loadTips = []string{
	"Use `agentmem load` (no arguments) to load the latest memory",
	"Use `agentmem load --id <uuid>` to load a specific memory",
	"Use `agentmem load --list` to see all available memories",
}

func loadCommand() *cli.Command {
	var (
		cfg  config
		id   string
		list bool
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "id",
			Usage:       "Memory ID to load, or latest",
			Value:       "latest",
			Destination: &id,
		},
		&cli.BoolFlag{
			Name:        "list",
			Aliases:     []string{"l"},
			Usage:       "List available memories instead of loading one",
			Destination: &list,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "load",
		Usage: "Load a memory snapshot by ID or the latest one",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			p := newPrinter(c)

			ctx, err := cfg.setup(ctx, c)
			if err != nil {
				return p.failure("Failed to load memory", err, nil)
			}

			repo, err := cfg.newRepository()
			if err != nil {
				return p.failure("Failed to load memory", err, nil)
			}
			uc := memory.New(repo)

			if list {
				summaries, err := uc.List(ctx, memory.ListOptions{})
				if err != nil {
					return p.failure("Failed to list memories", err, nil)
				}
				p.summaries(summaries)
				return nil
			}

			m, err := uc.Load(ctx, id)
			if err != nil {
				return p.failure("Failed to load memory", err, loadTips)
			}

			p.println("```json")
			if err := p.json(m); err != nil {
				return err
			}
			p.println("```")
			p.println("")
			p.println("---")
			p.println("")
			p.println("**Memory Loaded:** %s", m.Meta.ID)
			p.println("**Created:** %s", localTime(m.Meta.CreatedAt))
			p.println("**Project:** %s", m.Meta.Project)

			return nil
		},
	}
}
