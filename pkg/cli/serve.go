package cli

import (
	"context"

	"github.com/m-mizutani/agentmem/pkg/service/mcp"
	"github.com/m-mizutani/agentmem/pkg/usecase/memory"
	"github.com/m-mizutani/agentmem/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func serveCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the memory store as MCP tools over stdio",
		Flags: globalFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			p := newPrinter(c)

			ctx, err := cfg.setup(ctx, c)
			if err != nil {
				return p.failure("Failed to start MCP server", err, nil)
			}

			repo, err := cfg.newRepository()
			if err != nil {
				return p.failure("Failed to start MCP server", err, nil)
			}

			logging.From(ctx).Info("starting MCP server", "dir", repo.Dir())
			if err := mcp.Serve(ctx, memory.New(repo), version); err != nil {
				return p.failure("MCP server stopped", err, nil)
			}
			return nil
		},
	}
}
