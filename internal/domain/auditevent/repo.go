package auditevent

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists audit entries. Insert-only; entries are never updated
// or deleted through this interface.
type Repository interface {
	Insert(ctx context.Context, e *Entry) error
	GetByID(ctx context.Context, id uuid.UUID) (*Entry, error)
	List(ctx context.Context, filters ListFilters, limit, offset int) ([]*Entry, int, error)
}

// ListFilters narrow an audit listing.
type ListFilters struct {
	Action       string
	ResourceType string
	ResourceID   string
	ActorID      string
	Severity     string
}
