// Package postgres opens database/sql handles for the writer and read
// replicas. Both the pgx stdlib driver ("pgx") and lib/pq ("postgres") are
// linked in; the configured driver name picks one.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"

	"github.com/jardisPsr/foundation/internal/platform/config"
)

const (
	DriverPgx = "pgx"
	DriverPQ  = "postgres"
)

// Open opens and pings a handle for dsn. Returns nil if dsn is empty.
func Open(ctx context.Context, cfg config.DatabaseConfig, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, nil
	}
	driver := cfg.Driver
	if driver == "" {
		driver = DriverPgx
	}
	if driver != DriverPgx && driver != DriverPQ {
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return db, nil
}
