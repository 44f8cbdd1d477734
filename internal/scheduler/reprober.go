package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/MrSnakeDoc/relayscope/internal/domain"
	"github.com/MrSnakeDoc/relayscope/internal/index"
	"github.com/MrSnakeDoc/relayscope/internal/logger"
	"github.com/MrSnakeDoc/relayscope/internal/prober"
	"github.com/MrSnakeDoc/relayscope/internal/store"
)

// ListSource yields the user's configured relay lists plus any entries it
// had to reject.
type ListSource interface {
	Load() (domain.RelayLists, []string, error)
}

// Reprober reloads the configured relay lists and re-probes them, along
// with any index entry older than staleAfter, on every tick or manual trigger.
type Reprober struct {
	source        ListSource
	prober        *prober.Prober
	index         *index.StatusIndex
	store         store.StatusStore
	suggestions   store.SuggestionCache
	clock         clock.Clock
	logger        logger.Logger
	interval      time.Duration
	staleAfter    time.Duration
	stopCh        chan struct{}
	manualTrigger chan struct{}

	mu    sync.RWMutex
	lists domain.RelayLists
}

// ReproberConfig groups the Reprober's collaborators. Store and
// Suggestions may be nil.
type ReproberConfig struct {
	Source        ListSource
	Prober        *prober.Prober
	Index         *index.StatusIndex
	Store         store.StatusStore
	// Suggestions is flushed whenever the configured relay set changes,
	// since cached suggestions carry AlreadyConfigured flags.
	Suggestions   store.SuggestionCache
	Clock         clock.Clock
	Interval      time.Duration
	StaleAfter    time.Duration
	ManualTrigger chan struct{}
}

func NewReprober(cfg ReproberConfig, log logger.Logger) *Reprober {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = cfg.Interval
	}
	return &Reprober{
		source:        cfg.Source,
		prober:        cfg.Prober,
		index:         cfg.Index,
		store:         cfg.Store,
		suggestions:   cfg.Suggestions,
		clock:         cfg.Clock,
		logger:        log,
		interval:      cfg.Interval,
		staleAfter:    cfg.StaleAfter,
		stopCh:        make(chan struct{}),
		manualTrigger: cfg.ManualTrigger,
	}
}

// Start runs a first reload synchronously, then keeps reloading in the background.
func (r *Reprober) Start(ctx context.Context) error {
	if err := r.Reload(ctx); err != nil {
		return fmt.Errorf("initial reload failed: %w", err)
	}

	ticker := r.clock.Ticker(r.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := r.Reload(ctx); err != nil {
					r.logger.Error("failed to reprobe relays", logger.Error(err))
				}
			case <-r.manualTrigger:
				r.logger.Info("manual reload triggered")
				if err := r.Reload(ctx); err != nil {
					r.logger.Error("failed to reprobe relays", logger.Error(err))
				}
			case <-r.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop ends the background loop.
func (r *Reprober) Stop() {
	close(r.stopCh)
}

// Lists returns the most recently loaded relay lists.
func (r *Reprober) Lists() domain.RelayLists {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lists
}

// Configured returns every configured relay across categories.
func (r *Reprober) Configured() []string {
	return r.Lists().All()
}

// Reload re-reads the relay lists, probes configured and stale relays,
// and persists the results. Persistence is best effort.
func (r *Reprober) Reload(ctx context.Context) error {
	lists, rejected, err := r.source.Load()
	if err != nil {
		return fmt.Errorf("failed to load relay lists: %w", err)
	}
	if len(rejected) > 0 {
		r.logger.Warn("ignoring invalid relay urls", logger.Strings("urls", rejected))
	}

	r.mu.Lock()
	previous := r.lists.All()
	r.lists = lists
	r.mu.Unlock()

	configured := lists.All()
	if r.suggestions != nil && !sameRelaySet(previous, configured) {
		if err := r.suggestions.Flush(ctx); err != nil {
			r.logger.Warn("failed to flush suggestion cache", logger.Error(err))
		} else {
			r.logger.Debug("relay lists changed, suggestion cache flushed")
		}
	}
	r.index.Ensure(configured)

	targets := append(configured, r.staleEntries()...)
	results := r.prober.ProbeMany(ctx, targets)

	r.logger.Info("relays reprobed",
		logger.Int("configured", len(configured)),
		logger.Int("probed", len(results)))

	if r.store == nil || len(results) == 0 {
		return nil
	}
	statuses := make([]domain.RelayStatus, 0, len(results))
	for _, s := range results {
		statuses = append(statuses, s)
	}
	if err := r.store.SaveStatuses(ctx, statuses); err != nil {
		r.logger.Warn("failed to save statuses to redis", logger.Error(err))
	}
	return nil
}

func sameRelaySet(a, b []string) bool {
	identities := func(urls []string) mapset.Set[string] {
		set := mapset.NewThreadUnsafeSet[string]()
		for _, u := range urls {
			set.Add(domain.Canonicalize(u))
		}
		return set
	}
	return identities(a).Equal(identities(b))
}

// staleEntries lists index entries whose last probe is older than staleAfter.
func (r *Reprober) staleEntries() []string {
	now := r.clock.Now()
	var stale []string
	for _, s := range r.index.List() {
		if s.State != domain.StateTesting && s.Stale(now, r.staleAfter) {
			stale = append(stale, s.URL)
		}
	}
	return stale
}
