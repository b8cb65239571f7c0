package cli

import (
	"context"

	"github.com/m-mizutani/agentmem/pkg/usecase/memory"
	"github.com/urfave/cli/v3"
)

func regenerateCommand() *cli.Command {
	var (
		cfg config
		id  string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "id",
			Usage:       "Memory ID whose Markdown file is rebuilt, or latest",
			Value:       "latest",
			Destination: &id,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "regenerate",
		Usage: "Rebuild the Markdown file of a memory from its JSON record",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			p := newPrinter(c)

			ctx, err := cfg.setup(ctx, c)
			if err != nil {
				return p.failure("Failed to regenerate markdown", err, nil)
			}

			repo, err := cfg.newRepository()
			if err != nil {
				return p.failure("Failed to regenerate markdown", err, nil)
			}

			uc := memory.New(repo)
			m, err := uc.Load(ctx, id)
			if err != nil {
				return p.failure("Failed to regenerate markdown", err, loadTips)
			}
			if err := uc.RegenerateMarkdown(ctx, m.Meta.ID.String()); err != nil {
				return p.failure("Failed to regenerate markdown", err, nil)
			}

			p.success("Markdown regenerated: %s", repo.MarkdownPath(m.Meta.ID))
			return nil
		},
	}
}
