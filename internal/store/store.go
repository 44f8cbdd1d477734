// Package store defines the persistence seams used by the HTTP layer and
// the scheduler. Implementations live in the memory and redis subpackages.
package store

import (
	"context"

	"github.com/MrSnakeDoc/relayscope/internal/domain"
)

// SuggestionCache holds recent aggregation results per subject. Get returns
// nil, nil on a miss.
type SuggestionCache interface {
	Get(ctx context.Context, subject string) (*domain.SuggestionSet, error)
	Put(ctx context.Context, set *domain.SuggestionSet) error
	Invalidate(ctx context.Context, subject string) error
	Flush(ctx context.Context) error
}

// StatusStore persists settled relay statuses across restarts.
type StatusStore interface {
	SaveStatuses(ctx context.Context, statuses []domain.RelayStatus) error
	GetAllStatuses(ctx context.Context) ([]domain.RelayStatus, error)
	DeleteStatus(ctx context.Context, identity string) error
	Ping(ctx context.Context) error
}
