package main

import (
	"context"
	"fmt"

	"github.com/buyukinventory/marketplace/internal/config"
	"github.com/buyukinventory/marketplace/internal/docstore"
	"github.com/jackc/pgx/v5/pgxpool"
)

// backend is the document store the commands run against. pool is nil for
// the in-memory store.
type backend struct {
	docs  docstore.Store
	pool  *pgxpool.Pool
	close func()
}

func openBackend(ctx context.Context, cfg config.Config) (*backend, error) {
	if cfg.InMemory() {
		return &backend{docs: docstore.NewMemory(), close: func() {}}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	pg := docstore.NewPostgres(pool)
	return &backend{
		docs: pg,
		pool: pool,
		close: func() {
			pg.Close()
			pool.Close()
		},
	}, nil
}
