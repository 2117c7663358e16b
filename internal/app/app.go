// Package app assembles the premium service from configuration. The server,
// the scheduler and the CLI share it.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/segyhp/premium-engine/internal/cache"
	"github.com/segyhp/premium-engine/internal/config"
	"github.com/segyhp/premium-engine/internal/database"
	"github.com/segyhp/premium-engine/internal/engine"
	"github.com/segyhp/premium-engine/internal/logging"
	"github.com/segyhp/premium-engine/internal/mapping"
	"github.com/segyhp/premium-engine/internal/premium"
	"github.com/segyhp/premium-engine/internal/repository"
	"github.com/segyhp/premium-engine/internal/service"
	"github.com/segyhp/premium-engine/internal/tariff"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type App struct {
	Config  *config.Config
	DB      *sqlx.DB
	Redis   *redis.Client
	Tariff  *tariff.Table
	Engine  *engine.Engine
	Service *service.PremiumService
	Logger  *zap.Logger
}

// NewEngine builds the pure calculation pipeline; it needs no storage.
func NewEngine(cfg *config.Config) (*engine.Engine, *tariff.Table, error) {
	table, err := tariff.Load(cfg.Business.TariffFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load tariff: %w", err)
	}
	resolver := mapping.NewResolver(cfg.MappingDefaults())
	calculator := premium.NewCalculator(table, cfg.Business.TerritoryWhitelist)
	return engine.New(resolver, calculator), table, nil
}

// New opens the database and, when enabled, redis, then wires the service.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	eng, table, err := NewEngine(cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("tariff loaded", logging.TariffVersion(table.Version()), zap.String("hash", table.Hash()))

	// Initialize database
	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, err
	}

	// Initialize Redis
	var redisClient *redis.Client
	resultCache := cache.Noop()
	if cfg.Redis.Enabled {
		redisClient = initRedis(cfg)
		pingCtx, cancel := context.WithTimeout(ctx, cfg.Health.Timeout)
		defer cancel()
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			// calculations still work uncached
			logger.Warn("redis unreachable, continuing without result cache", zap.String("addr", cfg.Redis.Addr()), zap.Error(err))
		}
		resultCache = cache.NewRedisCache(redisClient, cfg.Business.CacheTTL)
	}

	// Initialize repositories
	productRepo := repository.NewProductRepository(db)
	quoteRepo := repository.NewQuoteRepository(db)
	calculationRepo := repository.NewCalculationRepository(db)
	installmentRepo := repository.NewInstallmentRepository(db)

	// Initialize service
	premiumService := service.NewPremiumService(productRepo, quoteRepo, calculationRepo, installmentRepo, eng, resultCache, logger)

	return &App{
		Config:  cfg,
		DB:      db,
		Redis:   redisClient,
		Tariff:  table,
		Engine:  eng,
		Service: premiumService,
		Logger:  logger,
	}, nil
}

// Close releases the database and redis handles.
func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Warn("closing redis", zap.Error(err))
		}
	}
	if err := a.DB.Close(); err != nil {
		a.Logger.Warn("closing database", zap.Error(err))
	}
}

func initRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        cfg.Redis.Addr(),
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		DialTimeout: 5 * time.Second,
	})
}
