package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresDB struct {
	Pool *pgxpool.Pool
}

// PoolOptions sizes the pgx pool. Zero values take the defaults below.
type PoolOptions struct {
	MaxConns int
	MinConns int
}

const (
	defaultMaxConns   = 25
	pgConnectTimeout  = 10 * time.Second
	pgMaxConnLifetime = time.Hour
	pgMaxConnIdleTime = 30 * time.Minute
	pgHealthCheck     = time.Minute
)

var (
	parsePGConfig = pgxpool.ParseConfig
	newPGPool     = pgxpool.NewWithConfig
	pingPGPool    = func(ctx context.Context, pool *pgxpool.Pool) error { return pool.Ping(ctx) }
	closePGPool   = func(pool *pgxpool.Pool) { pool.Close() }
)

func (o PoolOptions) apply(config *pgxpool.Config) {
	maxConns := o.MaxConns
	if maxConns <= 0 {
		maxConns = defaultMaxConns
	}
	minConns := o.MinConns
	if minConns < 0 || minConns > maxConns {
		minConns = 0
	}

	// Ledger transactions hold row locks briefly; keep enough headroom for
	// concurrent post edits without starving reads.
	config.MaxConns = int32(maxConns)
	config.MinConns = int32(minConns)
	config.MaxConnLifetime = pgMaxConnLifetime
	config.MaxConnIdleTime = pgMaxConnIdleTime
	config.HealthCheckPeriod = pgHealthCheck
}

func NewPostgresDB(dsn string, opts PoolOptions) (*PostgresDB, error) {
	config, err := parsePGConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	opts.apply(config)

	ctx, cancel := context.WithTimeout(context.Background(), pgConnectTimeout)
	defer cancel()

	pool, err := newPGPool(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pingPGPool(ctx, pool); err != nil {
		closePGPool(pool)
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresDB{Pool: pool}, nil
}

func (db *PostgresDB) Close() {
	if db.Pool != nil {
		closePGPool(db.Pool)
	}
}

// Health is used by the readiness probe.
func (db *PostgresDB) Health(ctx context.Context) error {
	if db.Pool == nil {
		return fmt.Errorf("postgres pool not initialized")
	}
	return pingPGPool(ctx, db.Pool)
}
