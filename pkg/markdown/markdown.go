package markdown

import (
	"fmt"
	"strings"
	"time"

	"github.com/m-mizutani/agentmem/pkg/model"
)

// Section headings. A heading appears in the output only when its backing
// list is non-empty, and callers may rely on that.
const (
	HeadingGoal         = "## Goal"
	HeadingTechStack    = "## Tech Stack"
	HeadingConstraints  = "## Constraints"
	HeadingImplemented  = "## ✅ Implemented"
	HeadingPending      = "## ⏳ Pending"
	HeadingFilesTouched = "## 📁 Files Modified"
	HeadingDecisions    = "## 🔀 Key Decisions"
	HeadingNextActions  = "## 🎯 Next Actions"
)

const timeFormat = "2006-01-02 15:04:05 MST"

type renderer struct {
	loc *time.Location
}

// Option configures Render
type Option func(*renderer)

// WithLocation sets the time zone used for the created timestamp. Default is time.Local.
func WithLocation(loc *time.Location) Option {
	return func(r *renderer) {
		r.loc = loc
	}
}

// Render projects a validated memory into a Markdown document. It performs no I/O.
func Render(m *model.Memory, opts ...Option) string {
	r := &renderer{loc: time.Local}
	for _, opt := range opts {
		opt(r)
	}

	var b strings.Builder

	fmt.Fprintf(&b, "# Agent Memory – %s\n\n", m.Meta.ID)
	fmt.Fprintf(&b, "**Created:** %s\n", m.Meta.CreatedAt.In(r.loc).Format(timeFormat))
	fmt.Fprintf(&b, "**Project:** %s\n", m.Meta.Project)
	fmt.Fprintf(&b, "**Version:** %s\n\n", m.Meta.Version)

	b.WriteString(HeadingGoal + "\n")
	b.WriteString(m.Context.Goal + "\n\n")

	bullets(&b, HeadingTechStack, m.Context.TechStack)
	bullets(&b, HeadingConstraints, m.Context.Constraints)
	bullets(&b, HeadingImplemented, m.State.Implemented)
	bullets(&b, HeadingPending, m.State.Pending)
	bullets(&b, HeadingFilesTouched, m.State.FilesTouched)

	if len(m.Decisions) > 0 {
		b.WriteString(HeadingDecisions + "\n")
		for i, d := range m.Decisions {
			fmt.Fprintf(&b, "%d. **%s**\n", i+1, d.Decision)
			fmt.Fprintf(&b, "   - Rationale: %s\n", d.Rationale)
		}
		b.WriteString("\n")
	}

	if len(m.NextActions) > 0 {
		b.WriteString(HeadingNextActions + "\n")
		for _, action := range m.NextActions {
			fmt.Fprintf(&b, "- [ ] %s\n", action)
		}
		b.WriteString("\n")
	}

	return b.String()
}

func bullets(b *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString(heading + "\n")
	for _, item := range items {
		b.WriteString("- " + item + "\n")
	}
	b.WriteString("\n")
}
