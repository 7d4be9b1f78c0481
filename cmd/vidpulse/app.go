package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/radiusdt/vidpulse/internal/analytics"
	"github.com/radiusdt/vidpulse/internal/config"
	"github.com/radiusdt/vidpulse/internal/database"
	"github.com/radiusdt/vidpulse/internal/httpserver"
	"github.com/radiusdt/vidpulse/internal/metrics"
	"github.com/radiusdt/vidpulse/internal/middleware"
	"github.com/radiusdt/vidpulse/internal/storage"
)

// app holds the wired dependencies shared by every command.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	pg    *database.PostgresDB
	redis *database.RedisDB
	ch    *database.ClickHouseDB

	campaigns storage.CampaignRepo
	pipeline  *analytics.Pipeline
	query     *analytics.QueryService
	reports   *analytics.ReportService
}

// newApp loads configuration, connects to the stores and builds the
// services. Outside production an unreachable store falls back to memory.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := middleware.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		metrics:  metrics.NewMetrics(cfg.Metrics.Namespace, registry),
	}
	if err := a.connect(ctx); err != nil {
		a.close()
		return nil, err
	}
	a.build()
	return a, nil
}

func (a *app) connect(ctx context.Context) error {
	var err error

	if a.cfg.Database.Enabled {
		a.pg, err = database.NewPostgresDB(ctx, a.cfg.Database, a.logger)
		if err != nil {
			if a.cfg.IsProduction() {
				return err
			}
			a.logger.Warn("PostgreSQL unavailable, using in-memory store", zap.Error(err))
		}
	}

	if a.cfg.ClickHouse.Enabled {
		a.ch, err = database.NewClickHouseDB(ctx, a.cfg.ClickHouse, a.logger)
		if err != nil {
			if a.cfg.IsProduction() {
				return err
			}
			a.logger.Warn("ClickHouse unavailable, using in-memory snapshots", zap.Error(err))
		}
	}

	if a.cfg.Redis.Enabled {
		a.redis, err = database.NewRedisDB(ctx, a.cfg.Redis, a.logger)
		if err != nil {
			a.logger.Warn("Redis unavailable, public report caching disabled", zap.Error(err))
		}
	}
	return nil
}

func (a *app) build() {
	mem := storage.NewMemoryStore()

	var (
		ledger    storage.PostingLedger       = mem
		stats     storage.PlatformStatReader  = mem
		snapshots storage.SnapshotReader      = mem
		reports   storage.ReportRepo          = mem
		cache     storage.AnalyticsCacheStore = mem
		responses storage.ResponseCache       = storage.NoopResponseCache{}
	)
	a.campaigns = mem

	if a.pg != nil {
		a.campaigns = storage.NewPostgresCampaignRepo(a.pg.Pool)
		ledger = storage.NewPostgresPostingLedger(a.pg.Pool)
		stats = storage.NewPostgresPlatformStatReader(a.pg.Pool, a.cfg.Analytics.PlatformTables)
		reports = storage.NewPostgresReportRepo(a.pg.Pool)
		cache = storage.NewPostgresAnalyticsCache(a.pg.Pool)
	}
	if a.ch != nil {
		snapshots = storage.NewClickHouseSnapshotReader(a.ch.Conn)
	}
	if a.redis != nil {
		responses = storage.NewRedisResponseCache(a.redis.Client, a.cfg.Analytics.ResponseNamespace, a.cfg.Analytics.PublicCacheTTL)
	}

	a.pipeline = analytics.NewPipeline(analytics.Sources{
		Campaigns: a.campaigns,
		Ledger:    ledger,
		Stats:     stats,
		Snapshots: snapshots,
	}, cache, a.cfg.Analytics.TopN, a.logger, a.metrics)
	a.query = analytics.NewQueryService(a.pipeline, reports, responses, a.cfg.Analytics.QueryConcurrency, a.logger, a.metrics)
	a.reports = analytics.NewReportService(reports, a.campaigns, responses, a.logger)
}

// handler builds the HTTP handler with the middleware chain.
// Recovery -> Logging -> RateLimit -> Auth -> routes
func (a *app) handler() (*middleware.RateLimitMiddleware, http.Handler) {
	health := map[string]httpserver.HealthChecker{}
	if a.pg != nil {
		health["postgres"] = a.pg
	}
	if a.ch != nil {
		health["clickhouse"] = a.ch
	}
	if a.redis != nil {
		health["redis"] = a.redis
	}

	routes := httpserver.NewServer(&httpserver.Dependencies{
		Pipeline: a.pipeline,
		Query:    a.query,
		Reports:  a.reports,
		Config:   a.cfg,
		Logger:   a.logger,
		Metrics:  a.metrics,
		Gatherer: a.registry,
		Health:   health,
	})

	recoveryMW := middleware.NewRecoveryMiddleware(a.logger)
	loggingMW := middleware.NewLoggingMiddleware(a.logger, a.metrics)
	rateLimitMW := middleware.NewRateLimitMiddleware(a.cfg.RateLimit, a.logger, a.metrics)
	authMW := middleware.NewAuthMiddleware(a.cfg.Auth, a.logger)

	return rateLimitMW, recoveryMW.Handler(
		loggingMW.Handler(
			rateLimitMW.Handler(
				authMW.Handler(routes),
			),
		),
	)
}

func (a *app) close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.ch != nil {
		_ = a.ch.Close()
	}
	if a.pg != nil {
		a.pg.Close()
	}
	_ = a.logger.Sync()
}
