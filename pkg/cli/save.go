package cli

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/m-mizutani/agentmem/pkg/model"
	"github.com/m-mizutani/agentmem/pkg/usecase/memory"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func saveCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:      "save",
		Usage:     "Save a memory snapshot from a JSON object",
		ArgsUsage: "[<json> | -]",
		Description: "The JSON object is taken from the arguments (joined with spaces). " +
			"With no arguments, or a single -, it is read from stdin.",
		Flags: globalFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			p := newPrinter(c)
			tips := []string{"Run `agentmem schema` to see the expected input"}

			ctx, err := cfg.setup(ctx, c)
			if err != nil {
				return p.failure("Failed to save memory", err, nil)
			}

			input, err := readInput(c.Args().Slice(), c.Root().Reader)
			if err != nil {
				return p.failure("Failed to save memory", err, tips)
			}

			repo, err := cfg.newRepository()
			if err != nil {
				return p.failure("Failed to save memory", err, nil)
			}

			m, err := memory.New(repo).Save(ctx, input)
			if err != nil {
				return p.failure("Failed to save memory", err, nil)
			}

			p.success("Memory saved successfully!")
			p.println("")
			p.heading("Details:")
			p.println("   ID: %s", m.Meta.ID)
			p.println("   Project: %s", m.Meta.Project)
			p.println("   Created: %s", localTime(m.Meta.CreatedAt))
			p.println("")
			p.heading("Files created:")
			p.println("   %s", repo.JSONPath(m.Meta.ID))
			p.println("   %s", repo.MarkdownPath(m.Meta.ID))
			p.println("")
			p.heading("To resume from this memory later, use:")
			p.println("   agentmem load --id %s", m.Meta.ID)
			p.println("   or simply: agentmem load (loads latest)")

			return nil
		},
	}
}

// readInput parses the JSON document given as arguments, or from r when args are absent or "-"
func readInput(args []string, r io.Reader) (any, error) {
	text := strings.TrimSpace(strings.Join(args, " "))

	if len(args) == 0 || text == "-" {
		if r == nil {
			return nil, model.NewError(model.CodeNoInput, "no input provided", nil)
		}
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read stdin")
		}
		text = strings.TrimSpace(string(data))
	}

	if text == "" {
		return nil, model.NewError(model.CodeNoInput, "no input provided", nil)
	}

	var input any
	if err := json.Unmarshal([]byte(text), &input); err != nil {
		return nil, model.NewError(model.CodeInvalidJSON, "input must be valid JSON", err)
	}

	return input, nil
}
