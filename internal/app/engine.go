package app

import (
	"fmt"

	"github.com/MrSnakeDoc/relayscope/internal/config"
	"github.com/MrSnakeDoc/relayscope/internal/domain"
	"github.com/MrSnakeDoc/relayscope/internal/index"
	"github.com/MrSnakeDoc/relayscope/internal/logger"
	"github.com/MrSnakeDoc/relayscope/internal/metrics"
	"github.com/MrSnakeDoc/relayscope/internal/nostr"
	"github.com/MrSnakeDoc/relayscope/internal/prober"
	"github.com/MrSnakeDoc/relayscope/internal/publish"
	"github.com/MrSnakeDoc/relayscope/internal/social"
	"github.com/MrSnakeDoc/relayscope/internal/sources/relaylist"
	"github.com/MrSnakeDoc/relayscope/internal/version"
)

// Engine holds the relay intelligence components shared by the daemon and
// the one-shot CLI commands.
type Engine struct {
	Index      *index.StatusIndex
	Prober     *prober.Prober
	Pool       *nostr.Pool
	Aggregator *social.Aggregator
	Publisher  *publish.Publisher
	Metrics    *metrics.Metrics
	Lists      ListSource
}

// ListSource is where the configured relay lists come from.
type ListSource interface {
	Load() (domain.RelayLists, []string, error)
}

// NewEngine builds the components from cfg. Publishing is disabled (every
// publish fails with domain.ErrNoSubject) when no secret key is configured.
func NewEngine(cfg *config.Config, log logger.Logger) (*Engine, error) {
	m := metrics.New()
	idx := index.NewStatusIndex()

	p := prober.New(idx, logger.With(log, logger.String("component", "prober")),
		prober.WithTimeout(cfg.ProbeTimeout),
		prober.WithStagger(cfg.ProbeStagger),
		prober.WithMetrics(m),
	)

	pool := nostr.NewPool(nostr.PoolConfig{
		ReadRelays:        cfg.ReadRelays,
		WriteRelays:       cfg.WriteRelays,
		SessionsPerSecond: cfg.SessionsPerSecond,
		VerifySignatures:  cfg.VerifySignatures,
		UserAgent:         version.UserAgent(),
	}, logger.With(log, logger.String("component", "pool")))

	agg := social.New(pool, social.Config{
		Indexers:         cfg.Indexers,
		BatchSize:        cfg.BatchSize,
		BatchConcurrency: cfg.BatchConcurrency,
		QueryTimeout:     cfg.QueryTimeout,
		IndexerTimeout:   cfg.IndexerTimeout,
	}, logger.With(log, logger.String("component", "social")), m)

	pubCfg := publish.Config{
		Transport: pool,
		Timeout:   cfg.PublishTimeout,
		Metrics:   m,
	}
	if cfg.SecretKey != "" {
		signer, err := nostr.NewKeySigner(cfg.SecretKey)
		if err != nil {
			return nil, fmt.Errorf("failed to load signing key: %w", err)
		}
		pubCfg.Signer = signer
		log.Info("signing key loaded", logger.String("pubkey", signer.PublicKey()))
	} else {
		log.Warn("no signing key configured, publishing disabled")
	}

	var lists ListSource
	if cfg.RelayListFile != "" {
		lists = relaylist.NewLoader(cfg.RelayListFile)
	} else {
		// without a file, track the read and write scope
		lists = relaylist.Static(domain.RelayLists{
			Inbox:  cfg.ReadRelays,
			Outbox: cfg.WriteRelays,
		})
	}

	return &Engine{
		Index:      idx,
		Prober:     p,
		Pool:       pool,
		Aggregator: agg,
		Publisher:  publish.New(pubCfg, logger.With(log, logger.String("component", "publisher"))),
		Metrics:    m,
		Lists:      lists,
	}, nil
}
