package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gokaycavdar/go-authguard/internal/domain"
)

type loginRepo struct{ pool *pgxpool.Pool }

func (r loginRepo) HasUserAgent(ctx context.Context, username, userAgent string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM logins WHERE username = $1 AND user_agent = $2)`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, username, userAgent).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking user agent history for %q: %w", username, err)
	}
	return exists, nil
}

func (r loginRepo) HasCountry(ctx context.Context, username, country string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM logins WHERE username = $1 AND country = $2)`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, username, country).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking country history for %q: %w", username, err)
	}
	return exists, nil
}

// MostRecentBefore breaks ties on an identical timestamp by the
// lexicographically greatest user agent.
func (r loginRepo) MostRecentBefore(ctx context.Context, username string, before time.Time) (*domain.Login, error) {
	const query = `
		SELECT username, timestamp, latitude, longitude, country, user_agent, "index", updated
		FROM logins
		WHERE username = $1 AND timestamp < $2
		ORDER BY timestamp DESC, user_agent DESC
		LIMIT 1`

	var l domain.Login
	err := r.pool.QueryRow(ctx, query, username, before).Scan(
		&l.Username, &l.Timestamp, &l.Latitude, &l.Longitude, &l.Country, &l.UserAgent, &l.Index, &l.Updated,
	)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding most recent login for %q: %w", username, err)
	}
	return &l, nil
}

func (r loginRepo) ExistsByKey(ctx context.Context, username, userAgent, country, index string) (bool, error) {
	const query = `
		SELECT EXISTS(
			SELECT 1 FROM logins
			WHERE username = $1 AND user_agent = $2 AND country = $3 AND "index" = $4
		)`
	var exists bool
	err := r.pool.QueryRow(ctx, query, username, userAgent, country, index).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking login key for %q: %w", username, err)
	}
	return exists, nil
}

func (r loginRepo) UpsertByKey(ctx context.Context, login domain.Login) error {
	const query = `
		INSERT INTO logins (username, timestamp, latitude, longitude, country, user_agent, "index", updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (username, user_agent, country, "index") DO UPDATE SET
			timestamp = EXCLUDED.timestamp,
			latitude  = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			updated   = EXCLUDED.updated`

	_, err := r.pool.Exec(ctx, query,
		login.Username, login.Timestamp, login.Latitude, login.Longitude,
		login.Country, login.UserAgent, login.Index, login.Updated,
	)
	if err != nil {
		return fmt.Errorf("upserting login for %q: %w", login.Username, err)
	}
	return nil
}

func (r loginRepo) DeleteStale(ctx context.Context, before time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM logins WHERE updated < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("deleting stale logins: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
