package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gokaycavdar/go-authguard/internal/domain"
)

type userRepo struct{ pool *pgxpool.Pool }

func (r userRepo) Touch(ctx context.Context, username string, at time.Time) (domain.User, error) {
	const query = `
		INSERT INTO users (username, risk_score, updated)
		VALUES ($1, $2, $3)
		ON CONFLICT (username) DO UPDATE SET updated = EXCLUDED.updated
		RETURNING username, risk_score, updated`

	var u domain.User
	err := r.pool.QueryRow(ctx, query, username, domain.RiskNone, at).Scan(&u.Username, &u.RiskScore, &u.Updated)
	if err != nil {
		return domain.User{}, fmt.Errorf("touching user %q: %w", username, err)
	}
	return u, nil
}

func (r userRepo) Get(ctx context.Context, username string) (*domain.User, error) {
	const query = `SELECT username, risk_score, updated FROM users WHERE username = $1`

	var u domain.User
	err := r.pool.QueryRow(ctx, query, username).Scan(&u.Username, &u.RiskScore, &u.Updated)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user %q: %w", username, err)
	}
	return &u, nil
}

func (r userRepo) UpdateRiskScore(ctx context.Context, username, risk string, at time.Time) error {
	const query = `
		INSERT INTO users (username, risk_score, updated)
		VALUES ($1, $2, $3)
		ON CONFLICT (username) DO UPDATE SET risk_score = EXCLUDED.risk_score, updated = EXCLUDED.updated`

	if _, err := r.pool.Exec(ctx, query, username, risk, at); err != nil {
		return fmt.Errorf("updating risk score for %q: %w", username, err)
	}
	return nil
}

func (r userRepo) ListUsernamesWithActivity(ctx context.Context) ([]string, error) {
	const query = `
		SELECT DISTINCT username FROM logins
		UNION
		SELECT DISTINCT username FROM users_ip
		UNION
		SELECT DISTINCT username FROM alerts`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing usernames with activity: %w", err)
	}
	defer rows.Close()

	var usernames []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scanning username: %w", err)
		}
		usernames = append(usernames, u)
	}
	return usernames, rows.Err()
}

func (r userRepo) DeleteStale(ctx context.Context, before time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE updated < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("deleting stale users: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
