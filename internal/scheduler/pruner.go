package scheduler

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/MrSnakeDoc/relayscope/internal/domain"
	"github.com/MrSnakeDoc/relayscope/internal/index"
	"github.com/MrSnakeDoc/relayscope/internal/logger"
	"github.com/MrSnakeDoc/relayscope/internal/store"
)

const (
	// DefaultPruneThreshold is how long an unconfigured relay keeps its status
	DefaultPruneThreshold = 7 * 24 * time.Hour
)

// Pruner drops statuses of relays that are no longer configured and have
// not been probed within the threshold.
type Pruner struct {
	store      store.StatusStore
	index      *index.StatusIndex
	configured func() []string
	clock      clock.Clock
	logger     logger.Logger
	interval   time.Duration
	threshold  time.Duration
	stopCh     chan struct{}
}

// NewPruner creates a pruner. s and clk may be nil.
func NewPruner(
	s store.StatusStore,
	idx *index.StatusIndex,
	configured func() []string,
	clk clock.Clock,
	log logger.Logger,
	interval time.Duration,
	threshold time.Duration,
) *Pruner {
	if threshold == 0 {
		threshold = DefaultPruneThreshold
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Pruner{
		store:      s,
		index:      idx,
		configured: configured,
		clock:      clk,
		logger:     log,
		interval:   interval,
		threshold:  threshold,
		stopCh:     make(chan struct{}),
	}
}

// Start prunes once, then periodically.
func (p *Pruner) Start(ctx context.Context) error {
	if n := p.Prune(ctx); n > 0 {
		p.logger.Info("initial prune removed statuses", logger.Int("removed", n))
	}

	ticker := p.clock.Ticker(p.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.Prune(ctx)
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

func (p *Pruner) Stop() {
	close(p.stopCh)
}

// Prune removes eligible statuses and returns how many went.
func (p *Pruner) Prune(ctx context.Context) int {
	keep := make(map[string]bool)
	if p.configured != nil {
		for _, raw := range p.configured() {
			keep[domain.Canonicalize(raw)] = true
		}
	}

	now := p.clock.Now()
	removed := 0
	for _, s := range p.index.List() {
		if keep[s.Identity] || s.State == domain.StateTesting {
			continue
		}
		if !s.LastTestedAt.IsZero() && now.Sub(s.LastTestedAt) < p.threshold {
			continue
		}

		p.index.Delete(s.Identity)
		if p.store != nil {
			if err := p.store.DeleteStatus(ctx, s.Identity); err != nil {
				p.logger.Warn("failed to delete status from redis",
					logger.String("relay", s.Identity),
					logger.Error(err))
			}
		}
		p.logger.Debug("pruned relay status",
			logger.String("relay", s.Identity),
			logger.String("state", string(s.State)))
		removed++
	}

	if removed == 0 {
		p.logger.Debug("no relay statuses to prune")
	}
	return removed
}
