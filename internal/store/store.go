// Package store defines the narrow repository interfaces the detection
// pipeline depends on. Detectors, the field
// processor, the risk aggregator, the retention cleaner, and the scheduler
// depend only on these interfaces, never on a query DSL or a concrete
// database driver. Two implementations ship: store/memory (used by every
// unit test) and store/postgres (the production backend).
package store

import (
	"context"
	"time"

	"github.com/gokaycavdar/go-authguard/internal/domain"
)

// UserRepo manages the User entity.
type UserRepo interface {
	// Touch creates the user if absent and updates its watermark.
	Touch(ctx context.Context, username string, at time.Time) (domain.User, error)
	Get(ctx context.Context, username string) (*domain.User, error)
	UpdateRiskScore(ctx context.Context, username, risk string, at time.Time) error
	// ListUsernamesWithActivity returns every username that owns at least
	// one Login, Alert, or UsersIP row, for the risk aggregator.
	ListUsernamesWithActivity(ctx context.Context) ([]string, error)
	DeleteStale(ctx context.Context, before time.Time) (int, error)
}

// LoginRepo manages the Login entity.
type LoginRepo interface {
	// HasUserAgent reports whether any Login exists for username with the
	// given user agent, regardless of country or index.
	HasUserAgent(ctx context.Context, username, userAgent string) (bool, error)
	// HasCountry reports whether any Login exists for username with the
	// given country.
	HasCountry(ctx context.Context, username, country string) (bool, error)
	// MostRecentBefore returns the most recent Login for username whose
	// timestamp is strictly before `before`, or nil if none exists. Ties
	// on timestamp are broken by the lexicographically greatest user
	// agent.
	MostRecentBefore(ctx context.Context, username string, before time.Time) (*domain.Login, error)
	// ExistsByKey reports whether a Login already exists for the exact
	// (username, user_agent, country, index) key, used by the field
	// processor to decide whether an event's own login is already known.
	ExistsByKey(ctx context.Context, username, userAgent, country, index string) (bool, error)
	// UpsertByKey inserts a new Login, or refreshes Timestamp/Latitude/
	// Longitude/Updated on the existing Login keyed by
	// (username, user_agent, country, index).
	UpsertByKey(ctx context.Context, login domain.Login) error
	DeleteStale(ctx context.Context, before time.Time) (int, error)
}

// UsersIPRepo manages the UsersIP entity.
type UsersIPRepo interface {
	Exists(ctx context.Context, username, ip string) (bool, error)
	Upsert(ctx context.Context, username, ip string, at time.Time) error
	DeleteStale(ctx context.Context, before time.Time) (int, error)
}

// AlertRepo manages the Alert entity.
type AlertRepo interface {
	Insert(ctx context.Context, alert domain.Alert) error
	// CountUnfiltered counts Alerts for username with IsFiltered=false and
	// Updated >= since.
	CountUnfiltered(ctx context.Context, username string, since time.Time) (int, error)
	DeleteStale(ctx context.Context, before time.Time) (int, error)
}

// ConfigRepo manages the process-wide Config singleton.
type ConfigRepo interface {
	Get(ctx context.Context) (domain.Config, error)
}

// TaskSettingsRepo manages per-task scheduler window pointers.
type TaskSettingsRepo interface {
	Get(ctx context.Context, taskName string) (*domain.TaskSettings, error)
	Upsert(ctx context.Context, ts domain.TaskSettings) error
}

// Store aggregates every repository the pipeline needs. Concrete backends
// (memory, postgres) implement all six interfaces on one connected type.
type Store interface {
	Users() UserRepo
	Logins() LoginRepo
	UsersIPs() UsersIPRepo
	Alerts() AlertRepo
	Config() ConfigRepo
	TaskSettings() TaskSettingsRepo
}
