package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/relayscope/internal/domain"
)

// DefaultStatusTTL keeps probe results around for a week without re-probing.
const DefaultStatusTTL = 7 * 24 * time.Hour

// Store persists relay statuses and caches suggestion sets.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore creates a store. ttl <= 0 uses DefaultStatusTTL.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultStatusTTL
	}
	return &Store{client: client, ttl: ttl}
}

// Ping reports whether Redis answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// SaveStatuses stores statuses in one pipeline. Entries still in the
// Testing state are skipped: they would restore as stuck probes.
func (s *Store) SaveStatuses(ctx context.Context, statuses []domain.RelayStatus) error {
	pipe := s.client.Pipeline()
	queued := 0

	for _, status := range statuses {
		if status.State == domain.StateTesting || status.Identity == "" {
			continue
		}
		data, err := json.Marshal(status)
		if err != nil {
			return fmt.Errorf("failed to marshal status %s: %w", status.Identity, err)
		}
		pipe.Set(ctx, StatusKey(status.Identity), data, s.ttl)
		pipe.SAdd(ctx, KeyAllStatuses, status.Identity)
		queued++
	}
	if queued == 0 {
		return nil
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save statuses: %w", err)
	}
	return nil
}

// GetAllStatuses loads every stored status. Identities whose key expired
// are dropped from the index set on the way.
func (s *Store) GetAllStatuses(ctx context.Context) ([]domain.RelayStatus, error) {
	ids, err := s.client.SMembers(ctx, KeyAllStatuses).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get status identities: %w", err)
	}
	if len(ids) == 0 {
		return []domain.RelayStatus{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = StatusKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get statuses: %w", err)
	}

	statuses := make([]domain.RelayStatus, 0, len(values))
	var expired []any
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			expired = append(expired, ids[i])
			continue
		}
		var status domain.RelayStatus
		if err := json.Unmarshal([]byte(raw), &status); err != nil {
			continue
		}
		statuses = append(statuses, status)
	}

	if len(expired) > 0 {
		_ = s.client.SRem(ctx, KeyAllStatuses, expired...).Err()
	}
	return statuses, nil
}

// DeleteStatus removes an identity.
func (s *Store) DeleteStatus(ctx context.Context, identity string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, StatusKey(identity))
	pipe.SRem(ctx, KeyAllStatuses, identity)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete status: %w", err)
	}
	return nil
}
