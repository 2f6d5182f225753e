package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gokaycavdar/go-authguard/internal/domain"
)

type alertRepo struct{ pool *pgxpool.Pool }

// marshalRawData encodes LoginRawData for the jsonb column; a nil map
// is stored as the SQL null.
func marshalRawData(data map[string]any) ([]byte, error) {
	if data == nil {
		return nil, nil
	}
	return json.Marshal(data)
}

func (r alertRepo) Insert(ctx context.Context, alert domain.Alert) error {
	rawData, err := marshalRawData(alert.LoginRawData)
	if err != nil {
		return fmt.Errorf("marshaling alert raw data for %q: %w", alert.Username, err)
	}

	const query = `
		INSERT INTO alerts (username, name, description, login_raw_data, is_filtered, filter_type, updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = r.pool.Exec(ctx, query,
		alert.Username, alert.Name, alert.Description, rawData, alert.IsFiltered, alert.FilterType, alert.Updated,
	)
	if err != nil {
		return fmt.Errorf("inserting alert for %q: %w", alert.Username, err)
	}
	return nil
}

func (r alertRepo) CountUnfiltered(ctx context.Context, username string, since time.Time) (int, error) {
	const query = `
		SELECT COUNT(*) FROM alerts
		WHERE username = $1 AND is_filtered = false AND updated >= $2`

	var count int
	if err := r.pool.QueryRow(ctx, query, username, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting unfiltered alerts for %q: %w", username, err)
	}
	return count, nil
}

func (r alertRepo) DeleteStale(ctx context.Context, before time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM alerts WHERE updated < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("deleting stale alerts: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
