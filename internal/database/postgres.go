package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/radiusdt/vidpulse/internal/config"
)

// applicationName tags server-side sessions so pg_stat_activity and
// CLIENT LIST show which connections belong to the analytics service.
const applicationName = "vidpulse"

// PostgresDB wraps the pgx pool behind every relational read and write of
// the analytics engine. The source families (campaigns, the posting ledger
// tables and platform stats) are read per campaign on each recompute, the
// reports table backs the share links, and campaign_analytics_cache holds
// the materialized rollups written through the fingerprint-guarded upsert.
// Pool size bounds how many campaigns the scheduler can load at once.
type PostgresDB struct {
	Pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresDB creates a new PostgreSQL connection pool and pings it. The
// ping is bounded so a bad DSN fails startup instead of the first recompute.
func NewPostgresDB(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*PostgresDB, error) {
	poolConfig, err := poolConfigFor(cfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(pingCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("connected to PostgreSQL",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.DBName),
		zap.Int("max_conns", cfg.MaxConns),
	)

	return &PostgresDB{
		Pool:   pool,
		logger: logger,
	}, nil
}

func poolConfigFor(cfg config.DatabaseConfig) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute
	poolConfig.ConnConfig.RuntimeParams["application_name"] = applicationName
	return poolConfig, nil
}

// Migrate applies the embedded PostgreSQL migrations in lexical order.
// Every statement is idempotent.
func (db *PostgresDB) Migrate(ctx context.Context) error {
	return applyMigrations(ctx, "postgres", db.logger, func(ctx context.Context, stmt string) error {
		_, err := db.Pool.Exec(ctx, stmt)
		return err
	})
}

// Close closes the database connection pool.
func (db *PostgresDB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		db.logger.Info("PostgreSQL connection pool closed")
	}
}

// Health checks if the database is reachable.
func (db *PostgresDB) Health(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}
