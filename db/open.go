package db

import (
	"context"
	"fmt"

	"h2hServer/config"

	"go.uber.org/zap"
)

// Open opens the SQL store named by driver.
func Open(ctx context.Context, cfg config.Config, log *zap.Logger) (*Store, error) {
	switch cfg.Store {
	case config.StoreSQLite:
		return OpenSQLite(ctx, cfg.SQLitePath, log)
	case config.StorePostgres:
		return OpenPostgres(ctx, cfg.DatabaseURL, log)
	default:
		return nil, fmt.Errorf("store %q is not backed by a database", cfg.Store)
	}
}
