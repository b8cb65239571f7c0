package repository

import (
	"context"

	"github.com/m-mizutani/agentmem/pkg/model"
)

// Repository defines the interface for memory persistence
type Repository interface {
	// Save persists a new memory. There is no update: every save is a new record.
	Save(ctx context.Context, memory *model.Memory) error

	// Load retrieves a memory by ID, or the most recently written one for model.LatestMemoryID.
	// Returned memories are always re-validated.
	Load(ctx context.Context, id model.MemoryID) (*model.Memory, error)

	// List returns a best-effort inventory sorted by creation time, newest first
	List(ctx context.Context) ([]*model.Summary, error)

	// RegenerateMarkdown rewrites the rendered companion of a stored memory
	RegenerateMarkdown(ctx context.Context, id model.MemoryID) error
}
