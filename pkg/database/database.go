package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// Client holds the Postgres connection pool
type Client struct {
	Pool *pgxpool.Pool
}

// NewClient creates a new Postgres client and verifies the connection
func NewClient(ctx context.Context, databaseURL string) (*Client, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed parsing database URL: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2
	cfg.MaxConnIdleTime = 10 * time.Minute
	cfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed connecting to database: %w", err)
	}

	return &Client{Pool: pool}, nil
}

// Migrate applies pending goose SQL migrations from the given directory.
// goose needs a database/sql handle, so the pool is bridged via stdlib.
func (c *Client) Migrate(ctx context.Context, migrationsPath string) error {
	db := stdlib.OpenDBFromPool(c.Pool)
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed setting goose dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, migrationsPath); err != nil {
		return fmt.Errorf("failed applying migrations: %w", err)
	}

	return nil
}

// Ping checks the database connection
func (c *Client) Ping(ctx context.Context) error {
	return c.Pool.Ping(ctx)
}

// Close closes the connection pool
func (c *Client) Close() error {
	c.Pool.Close()
	return nil
}
