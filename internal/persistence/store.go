package persistence

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mesa-ayuda/helpdesk-service/internal/config"
	"github.com/mesa-ayuda/helpdesk-service/internal/store"
)

// OpenStore builds the document store selected by cfg.Store.Driver, bounded by
// the configured per-call timeout. The returned closer releases connections.
func OpenStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (store.DocumentStore, func(), error) {
	var (
		backend store.DocumentStore
		closer  = func() {}
	)

	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		pg, err := NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if cfg.Postgres.RunMigrations {
			if err := RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
				pg.Close()
				return nil, nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		backend = store.NewPostgresStore(pg.PoolHandle())
		closer = pg.Close
	case config.StoreDriverRedis:
		rdb := NewRedis(cfg.Redis, logger)
		backend = store.NewRedisStore(rdb.Client, cfg.Redis.KeyPrefix)
		closer = rdb.Close
	case config.StoreDriverMemory:
		logger.Warn("using in-memory document store; data is lost on restart")
		backend = store.NewMemoryStore()
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	logger.Info("document store ready", zap.String("driver", cfg.Store.Driver))
	return store.WithTimeout(backend, cfg.Store.Timeout()), closer, nil
}
