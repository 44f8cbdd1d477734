package memory

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/MrSnakeDoc/relayscope/internal/domain"
)

const (
	DefaultCacheSize = 256
	DefaultCacheTTL  = 15 * time.Minute
)

// SuggestionCache is an in-process, size-bounded cache with per-entry expiry.
// It serves when no Redis is configured.
type SuggestionCache struct {
	lru *expirable.LRU[string, *domain.SuggestionSet]
}

func NewSuggestionCache(size int, ttl time.Duration) *SuggestionCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &SuggestionCache{
		lru: expirable.NewLRU[string, *domain.SuggestionSet](size, nil, ttl),
	}
}

func (c *SuggestionCache) Get(_ context.Context, subject string) (*domain.SuggestionSet, error) {
	set, ok := c.lru.Get(subject)
	if !ok {
		return nil, nil
	}
	return set, nil
}

func (c *SuggestionCache) Put(_ context.Context, set *domain.SuggestionSet) error {
	c.lru.Add(set.Subject, set)
	return nil
}

func (c *SuggestionCache) Invalidate(_ context.Context, subject string) error {
	c.lru.Remove(subject)
	return nil
}

func (c *SuggestionCache) Flush(_ context.Context) error {
	c.lru.Purge()
	return nil
}

// Len returns the number of live entries.
func (c *SuggestionCache) Len() int {
	return c.lru.Len()
}
