// Package app assembles the catalog, enricher, cache store and
// reconciliation engine shared by the server and the CLI.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fortuna/matatena/internal/cache"
	"github.com/fortuna/matatena/internal/catalog"
	"github.com/fortuna/matatena/internal/config"
	"github.com/fortuna/matatena/internal/describe"
	"github.com/fortuna/matatena/internal/metrics"
	"github.com/fortuna/matatena/internal/reconciliation"
	"github.com/fortuna/matatena/internal/service"
	"github.com/fortuna/matatena/internal/store"
	"github.com/fortuna/matatena/internal/store/repository"
)

const (
	redisAttempts   = 3
	redisRetryDelay = 2 * time.Second
)

// App holds the wired components
type App struct {
	DB          *store.Database
	Redis       *cache.RedisCache
	Catalog     *catalog.Client
	Enricher    *describe.Enricher
	Engine      *reconciliation.Engine
	Collections *service.CollectionService
	Metrics     *metrics.Recorder
}

// New connects to the database, runs migrations and wires the pipeline.
// Redis is optional: an empty URL or an unreachable server leaves the
// description memo process-local.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, recorder *metrics.Recorder) (*App, error) {
	db, err := store.NewDatabase(cfg.DatabaseURL, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("✓ Connected to database")

	if err := db.RunMigrations(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("✓ Database migrations applied")

	redisCache := connectRedis(cfg, logger)

	enricherCfg := describe.Config{
		SiteBaseURL: cfg.SiteBaseURL,
		UserAgent:   cfg.UserAgent,
		APIKey:      cfg.APIKey,
		Timeout:     cfg.DescriptionTimeout,
		CacheSize:   cfg.DescriptionCacheSize,
		Logger:      logger,
		Metrics:     recorder,
	}
	if redisCache != nil {
		enricherCfg.Shared = redisCache
	}
	enricher, err := describe.New(enricherCfg)
	if err != nil {
		db.Close()
		if redisCache != nil {
			redisCache.Close()
		}
		return nil, err
	}

	client := catalog.New(catalog.Config{
		BaseURL:   cfg.CatalogBaseURL,
		UserAgent: cfg.UserAgent,
		APIKey:    cfg.APIKey,
		Timeout:   cfg.CatalogTimeout,
		Logger:    logger,
		Metrics:   recorder,
	})

	engine := reconciliation.NewEngine(reconciliation.Config{
		Store:     repository.NewGameRepository(db),
		Describer: enricher,
		Workers:   cfg.EnrichWorkers,
		Logger:    logger,
		Metrics:   recorder,
	})

	return &App{
		DB:          db,
		Redis:       redisCache,
		Catalog:     client,
		Enricher:    enricher,
		Engine:      engine,
		Collections: service.NewCollectionService(client, engine, cfg.PerPage, logger),
		Metrics:     recorder,
	}, nil
}

// Close releases the database and Redis connections
func (a *App) Close() {
	if a.Redis != nil {
		a.Redis.Close()
	}
	a.DB.Close()
}

func connectRedis(cfg config.Config, logger *slog.Logger) *cache.RedisCache {
	if cfg.RedisURL == "" {
		logger.Info("Redis not configured, description memo is process-local")
		return nil
	}

	for i := 0; i < redisAttempts; i++ {
		redisCache, err := cache.NewRedisCache(cfg.RedisURL, cfg.DescriptionCacheTTL)
		if err == nil {
			logger.Info("✓ Connected to Redis")
			return redisCache
		}
		if i < redisAttempts-1 {
			logger.Warn("Redis connection failed, retrying",
				slog.Int("attempt", i+1),
				slog.Duration("delay", redisRetryDelay),
				slog.Any("err", err))
			time.Sleep(redisRetryDelay)
			continue
		}
		logger.Warn("⚠️  Redis unavailable, continuing without shared description cache", slog.Any("err", err))
	}
	return nil
}
