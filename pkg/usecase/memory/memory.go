package memory

import (
	"context"

	"github.com/m-mizutani/agentmem/pkg/model"
	"github.com/m-mizutani/agentmem/pkg/repository"
	"github.com/m-mizutani/agentmem/pkg/utils/logging"
)

// UseCase provides memory-related operations for the CLI and MCP layers
type UseCase struct {
	repo repository.Repository
}

// New creates a new memory UseCase instance
func New(repo repository.Repository) *UseCase {
	return &UseCase{
		repo: repo,
	}
}

// Save normalizes untrusted input and persists it as a new memory
func (u *UseCase) Save(ctx context.Context, input any) (*model.Memory, error) {
	m, err := Normalize(input)
	if err != nil {
		return nil, err
	}

	if err := u.repo.Save(ctx, m); err != nil {
		return nil, err
	}

	logging.From(ctx).Info("memory saved", "id", m.Meta.ID, "project", m.Meta.Project)
	return m, nil
}

// Load returns the memory with id. An empty id means the latest memory.
func (u *UseCase) Load(ctx context.Context, id string) (*model.Memory, error) {
	if id == "" {
		id = model.LatestMemoryID.String()
	}
	return u.repo.Load(ctx, model.MemoryID(id))
}

// RegenerateMarkdown rewrites the Markdown companion of a stored memory
func (u *UseCase) RegenerateMarkdown(ctx context.Context, id string) error {
	if id == "" {
		id = model.LatestMemoryID.String()
	}
	return u.repo.RegenerateMarkdown(ctx, model.MemoryID(id))
}
