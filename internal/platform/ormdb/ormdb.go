// Package ormdb opens the gorm (MySQL) store and provides its zerolog logger,
// error translation and schema sync.
package ormdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// Options configures Open.
type Options struct {
	MaxConns           int
	MinConns           int
	SlowQueryThreshold time.Duration
	Logger             zerolog.Logger
}

// DB wraps the gorm handle with the health-check surface used by the server.
type DB struct {
	*gorm.DB
}

// NormalizeDSN forces the driver settings the repositories rely on: DATETIME
// columns scanned into time.Time, in UTC, and UPDATE reporting matched rather
// than changed rows so an unchanged update is not mistaken for a missing row.
func NormalizeDSN(dsn string) (string, error) {
	cfg, err := gomysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.ClientFoundRows = true
	if cfg.Params == nil {
		cfg.Params = map[string]string{}
	}
	if _, ok := cfg.Params["charset"]; !ok {
		cfg.Params["charset"] = "utf8mb4"
	}
	return cfg.FormatDSN(), nil
}

// Open connects to MySQL and verifies the connection.
func Open(ctx context.Context, dsn string, opts Options) (*DB, error) {
	dsn, err := NormalizeDSN(dsn)
	if err != nil {
		return nil, err
	}

	gdb, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:  NewLogger(opts.Logger, opts.SlowQueryThreshold),
		NowFunc: func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	})
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	if opts.MaxConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxConns)
	}
	if opts.MinConns > 0 {
		sqlDB.SetMaxIdleConns(opts.MinConns)
	}
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	db := &DB{DB: gdb}
	if err := db.Ping(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Ping checks the underlying connection.
func (db *DB) Ping(ctx context.Context) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// PoolStats is the connection pool summary reported by the health endpoint.
type PoolStats struct {
	OpenConns    int    `json:"openConns"`
	InUse        int    `json:"inUse"`
	Idle         int    `json:"idle"`
	MaxOpenConns int    `json:"maxOpenConns"`
	WaitCount    int64  `json:"waitCount"`
	WaitDuration string `json:"waitDuration"`
}

// Stats returns the pool summary, or nil when the pool is unavailable.
func (db *DB) Stats() any {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return nil
	}
	return statsOf(sqlDB.Stats())
}

func statsOf(s sql.DBStats) *PoolStats {
	return &PoolStats{
		OpenConns:    s.OpenConnections,
		InUse:        s.InUse,
		Idle:         s.Idle,
		MaxOpenConns: s.MaxOpenConnections,
		WaitCount:    s.WaitCount,
		WaitDuration: s.WaitDuration.String(),
	}
}

// Close closes the underlying pool.
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
