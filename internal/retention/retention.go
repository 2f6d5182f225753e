// Package retention runs a periodic cleanup job that deletes rows older
// than the configured retention window: an immediate pass on start,
// then one per ticker interval until the context is canceled.
package retention

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/gokaycavdar/go-authguard/internal/store"
	"github.com/gokaycavdar/go-authguard/internal/telemetry"
)

// Cleaner deletes stale Logins, UsersIPs, Alerts, and Users on a fixed
// interval. Child rows (Logins, UsersIPs, Alerts) are deleted before
// Users. Each entity is purged only by its own Updated watermark, so a
// User row can outlive its deleted children and a fresh child row is
// never removed along with a stale User.
type Cleaner struct {
	store         store.Store
	retentionDays int
	Interval      time.Duration
	log           zerolog.Logger
}

// New returns a Cleaner that runs every hour.
func New(s store.Store, retentionDays int, log zerolog.Logger) *Cleaner {
	return &Cleaner{
		store:         s,
		retentionDays: retentionDays,
		Interval:      time.Hour,
		log:           log.With().Str("component", "retention").Logger(),
	}
}

// Run cleans up immediately, then repeats every Interval until ctx is
// canceled.
func (c *Cleaner) Run(ctx context.Context) error {
	c.cleanup(ctx)

	ticker := time.NewTicker(c.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.cleanup(ctx)
		}
	}
}

func (c *Cleaner) cleanup(ctx context.Context) {
	cutoff := time.Now().UTC().AddDate(0, 0, -c.retentionDays)

	logins, err := c.store.Logins().DeleteStale(ctx, cutoff)
	if err != nil {
		c.log.Error().Err(err).Msg("delete stale logins")
	}
	ips, err := c.store.UsersIPs().DeleteStale(ctx, cutoff)
	if err != nil {
		c.log.Error().Err(err).Msg("delete stale users_ips")
	}
	alerts, err := c.store.Alerts().DeleteStale(ctx, cutoff)
	if err != nil {
		c.log.Error().Err(err).Msg("delete stale alerts")
	}
	users, err := c.store.Users().DeleteStale(ctx, cutoff)
	if err != nil {
		c.log.Error().Err(err).Msg("delete stale users")
	}

	telemetry.RetentionRowsDeletedTotal.WithLabelValues("logins").Add(float64(logins))
	telemetry.RetentionRowsDeletedTotal.WithLabelValues("users_ip").Add(float64(ips))
	telemetry.RetentionRowsDeletedTotal.WithLabelValues("alerts").Add(float64(alerts))
	telemetry.RetentionRowsDeletedTotal.WithLabelValues("users").Add(float64(users))

	c.log.Info().
		Int("logins", logins).
		Int("users_ips", ips).
		Int("alerts", alerts).
		Int("users", users).
		Time("cutoff", cutoff).
		Msg("retention cleanup complete")
}
