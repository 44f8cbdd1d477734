package scheduler

import (
	"context"

	"github.com/MrSnakeDoc/relayscope/internal/domain"
	"github.com/MrSnakeDoc/relayscope/internal/index"
	"github.com/MrSnakeDoc/relayscope/internal/logger"
	"github.com/MrSnakeDoc/relayscope/internal/store"
)

// StatusSyncer restores persisted statuses into the index on startup.
type StatusSyncer struct {
	store  store.StatusStore
	index  *index.StatusIndex
	logger logger.Logger
}

func NewStatusSyncer(s store.StatusStore, idx *index.StatusIndex, log logger.Logger) *StatusSyncer {
	return &StatusSyncer{store: s, index: idx, logger: log}
}

// Sync loads statuses from the store. Entries already in the index win,
// since they are newer than anything persisted.
func (ss *StatusSyncer) Sync(ctx context.Context) error {
	ss.logger.Info("restoring relay statuses from redis")

	statuses, err := ss.store.GetAllStatuses(ctx)
	if err != nil {
		return err
	}
	if len(statuses) == 0 {
		ss.logger.Info("no relay statuses found in redis")
		return nil
	}

	restored := 0
	for _, s := range statuses {
		if existing, ok := ss.index.Get(s.URL); ok && existing.State != domain.StateUnknown {
			continue
		}
		ss.index.Upsert(s)
		restored++
	}

	ss.logger.Info("restored relay statuses",
		logger.Int("stored", len(statuses)),
		logger.Int("restored", restored))
	return nil
}
