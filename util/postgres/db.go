package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// DB wraps a PostgreSQL connection pool holding published policy documents
type DB struct {
	conn   *sql.DB
	config *Config
}

// NewDB opens a connection pool. The connection is established lazily; use Ping to verify it.
func NewDB(config *Config) (*DB, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	conn, err := sql.Open("postgres", config.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	return &DB{
		conn:   conn,
		config: config,
	}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Connection returns the underlying sql.DB connection
func (db *DB) Connection() *sql.DB {
	return db.conn
}

// Ping checks if the database connection is alive
func (db *DB) Ping(ctx context.Context) error {
	if db.conn == nil {
		return fmt.Errorf("database not connected")
	}
	return db.conn.PingContext(ctx)
}

const policySchema = `
	CREATE TABLE IF NOT EXISTS liveroute_policies (
		kind VARCHAR(64) NOT NULL,
		policy_id VARCHAR(255) NOT NULL,
		version BIGINT NOT NULL,
		data JSONB NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (kind, version)
	);

	CREATE INDEX IF NOT EXISTS idx_liveroute_policies_kind_version
		ON liveroute_policies(kind, version DESC);
`

// InitSchema creates the liveroute_policies table if it does not exist
func (db *DB) InitSchema(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, policySchema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// DropSchema removes the liveroute_policies table
func (db *DB) DropSchema(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, `DROP TABLE IF EXISTS liveroute_policies`); err != nil {
		return fmt.Errorf("failed to drop schema: %w", err)
	}
	return nil
}
