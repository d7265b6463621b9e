package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/salonbook/libs/db"
)

type OpenConfig struct {
	DatabaseURL string
	MaxConns    int
	MinConns    int
	AutoMigrate bool
}

// Open connects to Postgres when DatabaseURL is set and falls back to the in-memory store.
// The returned close func is never nil.
func Open(ctx context.Context, logger *slog.Logger, cfg OpenConfig) (Store, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set; using in-memory store")
		return NewMemory(time.Now), func() {}, nil
	}

	pool, err := db.Open(ctx, cfg.DatabaseURL, db.Options{MaxConns: int32(cfg.MaxConns), MinConns: int32(cfg.MinConns)})
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	store := NewPostgres(pool)
	if cfg.AutoMigrate {
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info("database schema applied")
	}
	return store, pool.Close, nil
}
