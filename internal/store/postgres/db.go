// Package postgres provides PostgreSQL-based implementations of the store interfaces.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"rainout-go/internal/config"
)

// DB wraps a PostgreSQL connection pool.
type DB struct {
	pool *pgxpool.Pool
}

// NewDB creates a new PostgreSQL connection pool.
func NewDB(ctx context.Context, cfg *config.PostgresConfig) (*DB, error) {
	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s&pool_max_conns=%d",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Database,
		cfg.SSLMode,
		cfg.MaxOpenConns,
	)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxOpenConns
	poolConfig.MinConns = cfg.MaxIdleConns
	poolConfig.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Pool returns the underlying connection pool.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Close closes the connection pool.
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// RunMigrations creates the required database tables.
func (db *DB) RunMigrations(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS subscriptions (
			id VARCHAR(36) PRIMARY KEY,
			tenant_id VARCHAR(128) NOT NULL,
			user_id VARCHAR(128) NOT NULL,
			zip VARCHAR(16) NOT NULL,
			facility_id VARCHAR(128) NOT NULL DEFAULT '',
			enabled BOOLEAN,
			seq BIGSERIAL,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_subscriptions_tenant ON subscriptions(tenant_id);

		CREATE TABLE IF NOT EXISTS rainout_events (
			id VARCHAR(36) PRIMARY KEY,
			run_id VARCHAR(128) NOT NULL,
			correlation_id VARCHAR(255) NOT NULL,
			state_key VARCHAR(255) NOT NULL,
			idempotency_key TEXT NOT NULL,
			tenant_id VARCHAR(128) NOT NULL,
			zip VARCHAR(5) NOT NULL,
			facility_id VARCHAR(128) NOT NULL DEFAULT '',
			source_event_id VARCHAR(255) NOT NULL DEFAULT '',
			status VARCHAR(64) NOT NULL,
			previous_status VARCHAR(64) NOT NULL DEFAULT '',
			updated_at BIGINT NOT NULL,
			subscription_ids TEXT[] NOT NULL DEFAULT '{}',
			user_ids TEXT[] NOT NULL DEFAULT '{}',
			detected_at TIMESTAMP WITH TIME ZONE NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_rainout_events_tenant_zip ON rainout_events(tenant_id, zip);
		CREATE INDEX IF NOT EXISTS idx_rainout_events_detected ON rainout_events(detected_at);

		CREATE TABLE IF NOT EXISTS audit_logs (
			id VARCHAR(36) PRIMARY KEY,
			run_id VARCHAR(128) NOT NULL,
			correlation_id VARCHAR(255) NOT NULL,
			tenant_id VARCHAR(128) NOT NULL,
			zip VARCHAR(5) NOT NULL,
			status VARCHAR(10) NOT NULL,
			error_class VARCHAR(255) NOT NULL DEFAULT '',
			events_seen INTEGER NOT NULL DEFAULT 0,
			changed_events INTEGER NOT NULL DEFAULT 0,
			skipped_unchanged_events INTEGER NOT NULL DEFAULT 0,
			notifications_sent INTEGER NOT NULL DEFAULT 0,
			duration_ms BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_audit_logs_run ON audit_logs(run_id);
		CREATE INDEX IF NOT EXISTS idx_audit_logs_tenant ON audit_logs(tenant_id);
	`

	_, err := db.pool.Exec(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
