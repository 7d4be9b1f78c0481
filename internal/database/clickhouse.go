package database

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/radiusdt/vidpulse/internal/config"
)

// ClickHouseDB wraps the native ClickHouse connection holding interval
// snapshots.
type ClickHouseDB struct {
	Conn   driver.Conn
	logger *zap.Logger
}

// NewClickHouseDB opens a native ClickHouse connection and pings it.
func NewClickHouseDB(ctx context.Context, cfg config.ClickHouseConfig, logger *zap.Logger) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: cfg.Addr,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: cfg.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open ClickHouse: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()

	if err := conn.Ping(pingCtx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	logger.Info("connected to ClickHouse",
		zap.Strings("addr", cfg.Addr),
		zap.String("database", cfg.Database),
	)

	return &ClickHouseDB{
		Conn:   conn,
		logger: logger,
	}, nil
}

// Migrate applies the embedded ClickHouse migrations.
func (db *ClickHouseDB) Migrate(ctx context.Context) error {
	return applyMigrations(ctx, "clickhouse", db.logger, func(ctx context.Context, stmt string) error {
		return db.Conn.Exec(ctx, stmt)
	})
}

// Close closes the connection.
func (db *ClickHouseDB) Close() error {
	if db.Conn != nil {
		db.logger.Info("ClickHouse connection closed")
		return db.Conn.Close()
	}
	return nil
}

// Health checks if ClickHouse is reachable.
func (db *ClickHouseDB) Health(ctx context.Context) error {
	return db.Conn.Ping(ctx)
}
