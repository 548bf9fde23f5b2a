package database

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/cheongimun/kpi-dashboard/internal/config"
	"go.uber.org/zap"
)

// WarehouseDB wraps a ClickHouse connection to the event analytics
// warehouse.
type WarehouseDB struct {
	Conn   driver.Conn
	logger *zap.Logger
}

// NewWarehouseDB opens a ClickHouse connection and verifies it.
func NewWarehouseDB(ctx context.Context, cfg config.WarehouseConfig, logger *zap.Logger) (*WarehouseDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		DialTimeout: cfg.DialTimeout,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open warehouse connection: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping warehouse: %w", err)
	}

	logger.Info("connected to ClickHouse",
		zap.String("addr", cfg.Addr),
		zap.String("database", cfg.Database),
	)

	return &WarehouseDB{
		Conn:   conn,
		logger: logger,
	}, nil
}

// Close closes the warehouse connection.
func (db *WarehouseDB) Close() error {
	if db.Conn != nil {
		db.logger.Info("ClickHouse connection closed")
		return db.Conn.Close()
	}
	return nil
}

// Health checks if the warehouse is reachable.
func (db *WarehouseDB) Health(ctx context.Context) error {
	return db.Conn.Ping(ctx)
}
