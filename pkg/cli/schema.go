package cli

import (
	"context"
	"strings"

	"github.com/m-mizutani/agentmem/pkg/model"
	"github.com/m-mizutani/agentmem/pkg/schema"
	"github.com/urfave/cli/v3"
)

func schemaCommand() *cli.Command {
	var schemaVersion string

	return &cli.Command{
		Name:  "schema",
		Usage: "Print the JSON Schema of a memory record",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "version",
				Usage:       "Schema version",
				Value:       model.SchemaVersion,
				Destination: &schemaVersion,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			p := newPrinter(c)

			s, err := schema.JSONSchema(schemaVersion)
			if err != nil {
				return p.failure("Unknown schema version", err, []string{
					"Available versions: " + strings.Join(schema.Versions(), ", "),
				})
			}
			return p.json(s)
		},
	}
}
