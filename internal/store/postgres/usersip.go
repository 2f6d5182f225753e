package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type usersIPRepo struct{ pool *pgxpool.Pool }

func (r usersIPRepo) Exists(ctx context.Context, username, ip string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM users_ip WHERE username = $1 AND ip = $2)`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, username, ip).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking known ip for %q: %w", username, err)
	}
	return exists, nil
}

func (r usersIPRepo) Upsert(ctx context.Context, username, ip string, at time.Time) error {
	const query = `
		INSERT INTO users_ip (username, ip, updated)
		VALUES ($1, $2, $3)
		ON CONFLICT (username, ip) DO UPDATE SET updated = EXCLUDED.updated`

	if _, err := r.pool.Exec(ctx, query, username, ip, at); err != nil {
		return fmt.Errorf("upserting users_ip for %q: %w", username, err)
	}
	return nil
}

func (r usersIPRepo) DeleteStale(ctx context.Context, before time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users_ip WHERE updated < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("deleting stale users_ip rows: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
