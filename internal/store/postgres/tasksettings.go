package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gokaycavdar/go-authguard/internal/domain"
)

type taskSettingsRepo struct{ pool *pgxpool.Pool }

func (r taskSettingsRepo) Get(ctx context.Context, taskName string) (*domain.TaskSettings, error) {
	const query = `SELECT task_name, start_date, end_date FROM task_settings WHERE task_name = $1`

	var ts domain.TaskSettings
	err := r.pool.QueryRow(ctx, query, taskName).Scan(&ts.TaskName, &ts.StartDate, &ts.EndDate)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading task settings for %q: %w", taskName, err)
	}
	return &ts, nil
}

func (r taskSettingsRepo) Upsert(ctx context.Context, ts domain.TaskSettings) error {
	const query = `
		INSERT INTO task_settings (task_name, start_date, end_date)
		VALUES ($1, $2, $3)
		ON CONFLICT (task_name) DO UPDATE SET start_date = EXCLUDED.start_date, end_date = EXCLUDED.end_date`

	if _, err := r.pool.Exec(ctx, query, ts.TaskName, ts.StartDate, ts.EndDate); err != nil {
		return fmt.Errorf("upserting task settings for %q: %w", ts.TaskName, err)
	}
	return nil
}
