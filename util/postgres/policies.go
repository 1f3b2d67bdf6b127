package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrPolicyNotFound is returned when no document of the requested kind exists
var ErrPolicyNotFound = errors.New("policy not found")

// PolicyRow is one stored version of a policy document
type PolicyRow struct {
	Kind      string
	ID        string
	Version   int64
	Data      []byte
	CreatedAt time.Time
}

// SavePolicy stores a policy document version. Saving the same kind and version
// again replaces its id and data.
func (db *DB) SavePolicy(ctx context.Context, kind, id string, version int64, data []byte) error {
	if kind == "" {
		return fmt.Errorf("kind cannot be empty")
	}
	if len(data) == 0 {
		return fmt.Errorf("data cannot be empty")
	}

	query := `
		INSERT INTO liveroute_policies (kind, policy_id, version, data, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (kind, version) DO UPDATE
		SET policy_id = $2, data = $4
	`
	if _, err := db.conn.ExecContext(ctx, query, kind, id, version, data, time.Now()); err != nil {
		return fmt.Errorf("failed to save policy %s version %d: %w", kind, version, err)
	}
	return nil
}

// LoadLatestPolicy returns the highest version stored for kind, or ErrPolicyNotFound
func (db *DB) LoadLatestPolicy(ctx context.Context, kind string) (*PolicyRow, error) {
	query := `
		SELECT kind, policy_id, version, data, created_at
		FROM liveroute_policies
		WHERE kind = $1
		ORDER BY version DESC
		LIMIT 1
	`
	var row PolicyRow
	err := db.conn.QueryRowContext(ctx, query, kind).Scan(&row.Kind, &row.ID, &row.Version, &row.Data, &row.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrPolicyNotFound, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load policy %s: %w", kind, err)
	}
	return &row, nil
}

// LatestVersions returns the highest stored version of every kind
func (db *DB) LatestVersions(ctx context.Context) (map[string]int64, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT kind, MAX(version) FROM liveroute_policies GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("failed to query policy versions: %w", err)
	}
	defer rows.Close()

	versions := make(map[string]int64)
	for rows.Next() {
		var kind string
		var version int64
		if err := rows.Scan(&kind, &version); err != nil {
			return nil, fmt.Errorf("failed to scan policy version: %w", err)
		}
		versions[kind] = version
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating policy versions: %w", err)
	}
	return versions, nil
}

// PrunePolicies deletes all but the newest keep versions of kind and returns the number removed
func (db *DB) PrunePolicies(ctx context.Context, kind string, keep int) (int64, error) {
	if keep < 1 {
		return 0, fmt.Errorf("keep must be at least 1, got %d", keep)
	}
	query := `
		DELETE FROM liveroute_policies
		WHERE kind = $1 AND version NOT IN (
			SELECT version FROM liveroute_policies WHERE kind = $1 ORDER BY version DESC LIMIT $2
		)
	`
	result, err := db.conn.ExecContext(ctx, query, kind, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune policies: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}
