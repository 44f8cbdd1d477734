package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/relayscope/internal/domain"
)

// DefaultSuggestionTTL bounds how long an aggregation result is served.
const DefaultSuggestionTTL = 15 * time.Minute

// SuggestionCache stores aggregation results in Redis.
type SuggestionCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSuggestionCache(client *redis.Client, ttl time.Duration) *SuggestionCache {
	if ttl <= 0 {
		ttl = DefaultSuggestionTTL
	}
	return &SuggestionCache{client: client, ttl: ttl}
}

// Put caches a subject's suggestions.
func (c *SuggestionCache) Put(ctx context.Context, set *domain.SuggestionSet) error {
	data, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("failed to marshal suggestions: %w", err)
	}
	if err := c.client.Set(ctx, SuggestionsKey(set.Subject), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache suggestions: %w", err)
	}
	return nil
}

// Get returns the cached suggestions, or nil on a miss.
func (c *SuggestionCache) Get(ctx context.Context, subject string) (*domain.SuggestionSet, error) {
	data, err := c.client.Get(ctx, SuggestionsKey(subject)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // miss
		}
		return nil, fmt.Errorf("failed to get cached suggestions: %w", err)
	}

	var set domain.SuggestionSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to unmarshal suggestions: %w", err)
	}
	return &set, nil
}

// Invalidate drops one subject's entry.
func (c *SuggestionCache) Invalidate(ctx context.Context, subject string) error {
	if err := c.client.Del(ctx, SuggestionsKey(subject)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate suggestions: %w", err)
	}
	return nil
}

// Flush removes every cached suggestion set.
func (c *SuggestionCache) Flush(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, KeyPrefixSuggestions+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to delete suggestion key: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to flush suggestions: %w", err)
	}
	return nil
}
