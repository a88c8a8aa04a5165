package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"optitrack/config"
	"optitrack/database"
	"optitrack/market"
	"optitrack/services"
)

// App holds the wired dependencies shared by all commands
type App struct {
	Config   *config.Config
	Logger   *logrus.Logger
	Storage  *database.LocalStorage
	Activity *services.ActivityLogger
	Manager  *services.PositionManager
	Registry *prometheus.Registry

	redis *redis.Client
}

// newApp opens storage and wires quote providers, cache and metrics
func newApp(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*App, error) {
	storage, err := database.NewLocalStorage(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	storage.SetLogger(logger)

	activity := services.NewActivityLogger(cfg.ActivityDir)

	gateway := services.NewGatewayQuoteClient(cfg.QuoteGatewayURL, cfg.QuoteAPIKey, cfg.QuoteRatePerSec)
	gateway.SetLogger(logger)

	references := services.NewQuoteRouter(gateway)
	if cfg.AlpacaEnabled() {
		alpaca := services.NewAlpacaReferenceClient(cfg.AlpacaAPIKey, cfg.AlpacaSecretKey)
		alpaca.SetLogger(logger)
		references.Route(market.US, alpaca)
		logger.Info("Alpaca reference prices enabled for US underlyings")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	app := &App{
		Config:   cfg,
		Logger:   logger,
		Storage:  storage,
		Activity: activity,
		Registry: registry,
	}

	var cache services.SummaryCache = services.NewMemorySummaryCache(cfg.CacheTTL)
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.WithError(err).WithField("addr", cfg.RedisAddr).Warn("Redis unavailable, using in-memory summary cache")
			client.Close()
		} else {
			app.redis = client
			cache = services.NewRedisSummaryCache(client, cfg.CacheTTL, func(err error) {
				logger.WithError(err).Warn("Summary cache error")
			})
			logger.WithField("addr", cfg.RedisAddr).Info("Redis summary cache enabled")
		}
	}

	app.Manager = services.NewPositionManager(storage, gateway,
		services.WithReferenceProvider(references),
		services.WithSummaryCache(cache),
		services.WithActivityLogger(activity),
		services.WithMetrics(services.NewRefreshMetrics(registry)),
		services.WithLogger(logger),
		services.WithClock(time.Now),
	)

	return app, nil
}

// Close releases storage and cache connections
func (a *App) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.Logger.WithError(err).Warn("Failed to close redis client")
		}
	}
	if err := a.Storage.Close(); err != nil {
		a.Logger.WithError(err).Warn("Failed to close database")
	}
}
