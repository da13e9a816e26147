package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/ncecere/spendwatch/internal/accounts"
	"github.com/ncecere/spendwatch/internal/auth"
	"github.com/ncecere/spendwatch/internal/cache"
	"github.com/ncecere/spendwatch/internal/config"
	"github.com/ncecere/spendwatch/internal/db"
	"github.com/ncecere/spendwatch/internal/limits"
	"github.com/ncecere/spendwatch/internal/observability"
	"github.com/ncecere/spendwatch/internal/providers"
	"github.com/ncecere/spendwatch/internal/scheduler"
	"github.com/ncecere/spendwatch/internal/secrets"
	alertsvc "github.com/ncecere/spendwatch/internal/services/alerts"
	billingsvc "github.com/ncecere/spendwatch/internal/services/billing"
	credentialsvc "github.com/ncecere/spendwatch/internal/services/credentials"
	"github.com/ncecere/spendwatch/internal/services/notifications"
	syncsvc "github.com/ncecere/spendwatch/internal/services/syncer"
	usagesvc "github.com/ncecere/spendwatch/internal/services/usage"
	"github.com/ncecere/spendwatch/internal/storage/blob"
)

const cachePrefix = "spendwatch"

// Container aggregates runtime dependencies for handlers and services.
type Container struct {
	Config        *config.Config
	DBPool        *pgxpool.Pool
	Redis         *redis.Client
	Queries       *db.Queries
	Cache         *cache.Store
	RateLimiter   *limits.RateLimiter
	Plans         accounts.Catalog
	Registry      *providers.Registry
	Auth          *auth.Service
	Credentials   *credentialsvc.Service
	Usage         *usagesvc.Service
	Alerts        *alertsvc.Service
	Syncer        *syncsvc.Service
	Billing       *billingsvc.Service
	Scheduler     *scheduler.Scheduler
	Observability *observability.Provider
	Logger        *slog.Logger
}

// NewContainer builds a dependency container from the provided primitives.
func NewContainer(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, redisClient *redis.Client) (*Container, error) {
	if pool == nil {
		return nil, fmt.Errorf("db pool is required")
	}
	c, err := build(ctx, cfg, pool, db.New(pool), redisClient)
	if err != nil {
		return nil, err
	}
	c.DBPool = pool
	return c, nil
}

func build(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, queries *db.Queries, redisClient *redis.Client) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if redisClient == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	logger := slog.Default()

	sealer, err := secrets.NewSealer(cfg.Secrets.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("init credential sealer: %w", err)
	}

	obsProvider, err := observability.Setup(ctx, cfg.Observability)
	if err != nil {
		return nil, fmt.Errorf("setup observability: %w", err)
	}

	store := cache.New(redisClient, cachePrefix)
	rateLimiter := limits.NewRateLimiter(redisClient)
	plans := accounts.NewCatalog(cfg.Plans)
	registry := providers.NewRegistry(cfg)

	authSvc, err := auth.NewService(ctx, cfg.Auth, queries, store, rateLimiter, logger)
	if err != nil {
		return nil, fmt.Errorf("init auth: %w", err)
	}

	sink, err := buildAlertSink(ctx, cfg.Alerts, logger)
	if err != nil {
		return nil, err
	}

	var archiver *blob.Archiver
	if cfg.Archive.Enabled {
		blobStore, err := blob.New(ctx, cfg.Archive)
		if err != nil {
			return nil, fmt.Errorf("init snapshot archive: %w", err)
		}
		archiver = blob.NewArchiver(blobStore)
	}

	credentials := credentialsvc.NewService(credentialsvc.NewPostgresStore(pool, queries), sealer, plans, registry, cfg.Providers.ValidateKeys, logger)
	alerts := alertsvc.NewService(queries, alertsvc.Options{
		WarningPercent: cfg.Alerts.WarningPercent,
		Plans:          plans,
		Sink:           sink,
		Cache:          store,
		Metrics:        obsProvider,
		Logger:         logger,
	})
	syncer := syncsvc.NewService(queries, syncsvc.Options{
		Config:   cfg.Sync,
		Registry: registry,
		Keys:     credentials,
		Alerts:   alerts,
		Archiver: archiver,
		Cache:    store,
		Limiter:  rateLimiter,
		Metrics:  obsProvider,
		Logger:   logger,
	})
	billing := billingsvc.NewService(queries, billingsvc.Options{
		Config:  cfg.Billing,
		AppURL:  cfg.Server.AppURL,
		Plans:   plans,
		Cache:   store,
		Metrics: obsProvider,
		Logger:  logger,
	})

	return &Container{
		Config:        cfg,
		Redis:         redisClient,
		Queries:       queries,
		Cache:         store,
		RateLimiter:   rateLimiter,
		Plans:         plans,
		Registry:      registry,
		Auth:          authSvc,
		Credentials:   credentials,
		Usage:         usagesvc.NewService(queries, plans, registry),
		Alerts:        alerts,
		Syncer:        syncer,
		Billing:       billing,
		Scheduler:     scheduler.New(syncer, cfg.Sync, logger),
		Observability: obsProvider,
		Logger:        logger,
	}, nil
}

// buildAlertSink fans alerts out to the log plus every configured channel.
func buildAlertSink(ctx context.Context, cfg config.AlertsConfig, logger *slog.Logger) (notifications.Sink, error) {
	sesSink, err := notifications.NewSESSink(ctx, cfg.SES, logger)
	if err != nil {
		return nil, fmt.Errorf("init ses alerts: %w", err)
	}
	return notifications.NewCompositeSink(
		notifications.NewLogSink(logger),
		notifications.NewWebhookSink(cfg.Webhook, logger),
		notifications.NewSMTPSink(cfg.SMTP, logger),
		sesSink,
	), nil
}

// Start launches background work owned by the container.
func (c *Container) Start(ctx context.Context) {
	if c == nil {
		return
	}
	if c.Scheduler.Enabled() {
		c.Logger.Info("scheduled sync enabled", "interval", c.Config.Sync.Interval)
	}
	c.Scheduler.Start(ctx)
}

// Close releases resources held by the container.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.Observability != nil {
		errs = append(errs, c.Observability.Shutdown(ctx))
	}
	if c.Redis != nil {
		errs = append(errs, c.Redis.Close())
	}
	if c.DBPool != nil {
		c.DBPool.Close()
	}
	return errors.Join(errs...)
}
