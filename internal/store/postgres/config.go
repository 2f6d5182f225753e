package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gokaycavdar/go-authguard/internal/domain"
)

type configRepo struct{ pool *pgxpool.Pool }

// Get reads the single process-wide policy row. A missing row falls
// back to domain.DefaultConfig(), the same defaults store/memory seeds
// new stores with, so a fresh database behaves identically to a fresh
// in-memory store until an operator edits the row.
func (r configRepo) Get(ctx context.Context) (domain.Config, error) {
	const query = `
		SELECT allowed_countries, vip_users, alert_is_vip_only, alert_minimum_risk_score,
		       velocity_max_kmh, retention_days, slide_minutes, data_loss_minutes,
		       max_subwindows_per_invocation
		FROM config WHERE id = 1`

	var (
		allowedCountries, vipUsers []string
		minRisk                    *string
		cfg                        = domain.DefaultConfig()
	)

	err := r.pool.QueryRow(ctx, query).Scan(
		&allowedCountries, &vipUsers, &cfg.AlertIsVIPOnly, &minRisk,
		&cfg.VelocityMaxKmh, &cfg.RetentionDays, &cfg.SlideMinutes, &cfg.DataLossMinutes,
		&cfg.MaxSubwindowsPerInvocation,
	)
	if noRows(err) {
		return domain.DefaultConfig(), nil
	}
	if err != nil {
		return domain.Config{}, fmt.Errorf("reading config: %w", err)
	}

	cfg.AllowedCountries = toSet(allowedCountries)
	cfg.VIPUsers = toSet(vipUsers)
	cfg.AlertMinimumRiskScore = minRisk
	return cfg, nil
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
