package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/m-mizutani/agentmem/pkg/model"
	"github.com/m-mizutani/agentmem/pkg/schema"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

const displayTimeFormat = "2006-01-02 15:04:05 MST"

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
)

// printer writes human readable output. Results go to out, failures to errOut.
type printer struct {
	out    io.Writer
	errOut io.Writer
}

func newPrinter(c *cli.Command) *printer {
	return &printer{
		out:    c.Root().Writer,
		errOut: c.Root().ErrWriter,
	}
}

func (p *printer) success(format string, a ...any) {
	green.Fprintf(p.out, "✓ %s\n", fmt.Sprintf(format, a...))
}

func (p *printer) warning(format string, a ...any) {
	yellow.Fprintf(p.out, "⚠️  %s\n", fmt.Sprintf(format, a...))
}

func (p *printer) heading(format string, a ...any) {
	cyan.Fprintf(p.out, "%s\n", fmt.Sprintf(format, a...))
}

func (p *printer) println(format string, a ...any) {
	fmt.Fprintf(p.out, format+"\n", a...)
}

func (p *printer) json(v any) error {
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return goerr.Wrap(err, "failed to encode output")
	}
	return nil
}

// failure prints title, the error with its code, schema issues and tips to errOut, then returns err
func (p *printer) failure(title string, err error, tips []string) error {
	red.Fprintf(p.errOut, "✗ %s\n\n", title)
	fmt.Fprintf(p.errOut, "%s\n", err.Error())

	var ve *schema.ValidationError
	if errors.As(err, &ve) {
		fmt.Fprintf(p.errOut, "\nIssues:\n")
		for _, issue := range ve.Issues {
			fmt.Fprintf(p.errOut, "  - %s\n", issue.String())
		}
	}

	tips = append(hintsFor(model.CodeOf(err)), tips...)
	if len(tips) > 0 {
		fmt.Fprintf(p.errOut, "\nTips:\n")
		for _, tip := range tips {
			fmt.Fprintf(p.errOut, "  - %s\n", tip)
		}
	}

	return err
}

func hintsFor(code model.Code) []string {
	switch code {
	case model.CodeInvalidInputMeta:
		return []string{"Remove the meta field. id, createdAt, agent and version are generated on save"}
	case model.CodeSchemaValidation:
		return []string{"Run `agentmem schema` to see the expected record layout"}
	case model.CodeInvalidID:
		return []string{"IDs are canonical UUIDs such as 0b6e8c2a-3f43-4b9e-9d2f-8a1c5e7d9f10, or latest"}
	case model.CodeNoMemoriesFound:
		return []string{"Use `agentmem save` to create your first memory snapshot"}
	case model.CodeNoInput:
		return []string{"Pass the JSON object as an argument, or pipe it through stdin"}
	case model.CodeInvalidJSON:
		return []string{"Check for missing quotes, trailing commas and unescaped characters"}
	case model.CodeDirCreateFailed:
		return []string{"Check that --dir points to a writable location"}
	default:
		return nil
	}
}

func (p *printer) summaries(summaries []*model.Summary) {
	if len(summaries) == 0 {
		p.warning("No memories found")
		return
	}

	suffix := ""
	if len(summaries) > 1 {
		suffix = "s"
	}
	p.heading("Found %d memory snapshot%s:", len(summaries), suffix)
	p.println("")

	for i, s := range summaries {
		marker := "  "
		if i == 0 {
			marker = "* "
		}
		p.println("%s%s", marker, s.ID)
		p.println("   Project: %s", s.Project)
		p.println("   Created: %s", localTime(s.CreatedAt))
		if i == 0 {
			p.println("   (latest)")
		}
		p.println("")
	}
}

func localTime(t time.Time) string {
	return t.Local().Format(displayTimeFormat)
}
