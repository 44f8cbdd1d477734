package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/multierr"

	"github.com/MrSnakeDoc/relayscope/internal/config"
	"github.com/MrSnakeDoc/relayscope/internal/httpserver"
	"github.com/MrSnakeDoc/relayscope/internal/httpserver/deps"
	"github.com/MrSnakeDoc/relayscope/internal/httpserver/mw"
	"github.com/MrSnakeDoc/relayscope/internal/logger"
	"github.com/MrSnakeDoc/relayscope/internal/redis"
	"github.com/MrSnakeDoc/relayscope/internal/scheduler"
	"github.com/MrSnakeDoc/relayscope/internal/store"
	"github.com/MrSnakeDoc/relayscope/internal/store/memory"
	redisstore "github.com/MrSnakeDoc/relayscope/internal/store/redis"
	"github.com/MrSnakeDoc/relayscope/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	engine      *Engine
	server      *httpserver.Server
	redisClient *goredis.Client
	reprober    *scheduler.Reprober
	pruner      *scheduler.Pruner
}

func New(ctx context.Context, cfg *config.Config, loggerClient logger.Logger) (*App, error) {
	engine, err := NewEngine(cfg, loggerClient)
	if err != nil {
		return nil, err
	}

	// Redis is optional: without it statuses live in memory only and
	// suggestions go to an in-process cache.
	var (
		redisClient *goredis.Client
		statusStore store.StatusStore
		suggestions store.SuggestionCache
	)
	if cfg.RedisEnabled() {
		redisClient, err = redis.New(ctx, redis.ConnectOptions{
			Addr:           cfg.RedisAddr,
			User:           cfg.RedisUser,
			Password:       cfg.RedisPassword,
			DB:             cfg.RedisDB,
			DialTimeout:    cfg.RedisDT,
			ReadTimeout:    cfg.RedisRT,
			WriteTimeout:   cfg.RedisWT,
			PoolSize:       cfg.RedisPoolSize,
			ConnectTimeout: cfg.RedisConnectTimeout,
			RetryInterval:  cfg.RedisRetryInterval,
			MaxWait:        cfg.RedisMaxWait,
			PingTimeout:    cfg.RedisPingTimeout,
			WarnThreshold:  cfg.RedisWarnThreshold,
		}, loggerClient)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		statusStore = redisstore.NewStore(redisClient, cfg.StatusTTL)
		suggestions = redisstore.NewSuggestionCache(redisClient, cfg.CacheTTL)

		syncer := scheduler.NewStatusSyncer(statusStore, engine.Index, loggerClient)
		if err := syncer.Sync(ctx); err != nil {
			loggerClient.Warn("failed to restore statuses from redis, starting empty",
				logger.Error(err))
		}
	} else {
		loggerClient.Info("redis not configured, running in memory")
		suggestions = memory.NewSuggestionCache(cfg.CacheSize, cfg.CacheTTL)
	}

	reloadTrigger := make(chan struct{}, 1)

	reprober := scheduler.NewReprober(scheduler.ReproberConfig{
		Source:        engine.Lists,
		Prober:        engine.Prober,
		Index:         engine.Index,
		Store:         statusStore,
		Suggestions:   suggestions,
		Interval:      cfg.ReprobeInterval,
		StaleAfter:    cfg.StaleAfter,
		ManualTrigger: reloadTrigger,
	}, loggerClient)

	pruner := scheduler.NewPruner(
		statusStore,
		engine.Index,
		reprober.Configured,
		nil,
		loggerClient,
		cfg.PruneInterval,
		cfg.PruneThreshold,
	)

	d := deps.Deps{
		Logger:         loggerClient,
		StartTime:      time.Now(),
		Version:        version.Version,
		Commit:         version.Commit,
		BuildDate:      version.BuildDate,
		GoVersion:      version.GoVersion,
		TimeNow:        time.Now,
		ClientName:     cfg.ClientName,
		AllowedHosts:   cfg.AllowedHosts,
		AllowedCIDRS:   cfg.AllowedCIDRS,
		AllowedOrigins: cfg.AllowedOrigins,
		TrustProxy:     cfg.TrustProxy,
		RateLimit: mw.RateLimitConfig{
			Burst:             cfg.RateLimitBurst,
			RefillPerIPPerMin: cfg.RateLimitPerMin,
			MaxEntries:        cfg.RateLimitMaxPeers,
			TrustProxy:        cfg.TrustProxy,
		},
		Index:         engine.Index,
		Prober:        engine.Prober,
		Aggregator:    engine.Aggregator,
		Publisher:     engine.Publisher,
		Suggestions:   suggestions,
		StatusStore:   statusStore,
		Metrics:       engine.Metrics,
		Lists:         reprober.Lists,
		ReloadTrigger: reloadTrigger,
	}

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		engine:      engine,
		server:      httpserver.New(cfg, loggerClient, d),
		redisClient: redisClient,
		reprober:    reprober,
		pruner:      pruner,
	}, nil
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting relayscope v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("relayscope %s", version.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Serve immediately; readyz reports not-ready until the first probe round lands.
	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	if err := a.reprober.Start(ctx); err != nil {
		return fmt.Errorf("failed to start reprober: %w", err)
	}
	a.logger.Info("reprober started",
		logger.Duration("interval", a.cfg.ReprobeInterval))

	if err := a.pruner.Start(ctx); err != nil {
		return fmt.Errorf("failed to start pruner: %w", err)
	}
	a.logger.Info("pruner started",
		logger.Duration("interval", a.cfg.PruneInterval))

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	a.reprober.Stop()
	a.pruner.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	var errs error
	if err := a.server.Stop(shutdownCtx); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("failed to stop server: %w", err))
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("failed to close redis: %w", err))
		} else {
			a.logger.Info("✅ Redis closed cleanly")
		}
	}
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("logger sync failed", logger.Error(err))
	}
	if errs != nil {
		return errs
	}

	a.logger.Info("✅ relayscope stopped cleanly")
	return nil
}
