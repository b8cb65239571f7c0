package memory

import (
	"context"

	"github.com/gobwas/glob"
	"github.com/m-mizutani/agentmem/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// ListOptions contains options for listing memories
type ListOptions struct {
	// Project is a glob pattern matched against meta.project. Empty matches all.
	Project string
	// Limit caps the number of entries. Zero or negative means no limit.
	Limit int
}

// List retrieves the memory inventory, newest first
func (u *UseCase) List(ctx context.Context, opts ListOptions) ([]*model.Summary, error) {
	var pattern glob.Glob
	if opts.Project != "" {
		g, err := glob.Compile(opts.Project)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid project pattern", goerr.V("pattern", opts.Project))
		}
		pattern = g
	}

	summaries, err := u.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	if pattern != nil {
		filtered := make([]*model.Summary, 0, len(summaries))
		for _, s := range summaries {
			if pattern.Match(s.Project) {
				filtered = append(filtered, s)
			}
		}
		summaries = filtered
	}

	if opts.Limit > 0 && len(summaries) > opts.Limit {
		summaries = summaries[:opts.Limit]
	}

	return summaries, nil
}
