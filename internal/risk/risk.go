// Package risk aggregates each user's unfiltered alert count into a risk
// label. Risk is a function of the alert count accumulated over a
// lookback window, recomputed in full on each pass, so successive runs
// over an unchanged alert set always produce the same label.
package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/gokaycavdar/go-authguard/internal/detecterr"
	"github.com/gokaycavdar/go-authguard/internal/domain"
	"github.com/gokaycavdar/go-authguard/internal/store"
	"github.com/gokaycavdar/go-authguard/internal/usersource"
)

// LevelFor maps an unfiltered alert count to a risk label.
func LevelFor(count int) string {
	switch {
	case count >= 5:
		return domain.RiskHigh
	case count >= 3:
		return domain.RiskMedium
	case count >= 1:
		return domain.RiskLow
	default:
		return domain.RiskNone
	}
}

// Aggregator recomputes every known user's RiskScore from their recent
// unfiltered alert count. A zero Window means no lookback bound: every
// alert ever persisted counts.
type Aggregator struct {
	Store  store.Store
	Users  usersource.Source
	Window time.Duration
}

// New returns an Aggregator with an unbounded lookback window.
func New(s store.Store, users usersource.Source) *Aggregator {
	return &Aggregator{Store: s, Users: users}
}

// UpdateAll recomputes RiskScore for every username known either to the
// store (activity) or to usersource (identity), so a user with zero
// alerts is still set to RiskNone rather than left stale.
func (a *Aggregator) UpdateAll(ctx context.Context, now time.Time) error {
	seen := map[string]struct{}{}

	active, err := a.Store.Users().ListUsernamesWithActivity(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", detecterr.ErrTransient, err)
	}
	for _, u := range active {
		seen[u] = struct{}{}
	}

	if a.Users != nil {
		known, err := a.Users.ListUsernames(ctx)
		if err != nil {
			return fmt.Errorf("%w: %v", detecterr.ErrTransient, err)
		}
		for _, u := range known {
			seen[u] = struct{}{}
		}
	}

	var since time.Time
	if a.Window > 0 {
		since = now.Add(-a.Window)
	}
	for username := range seen {
		count, err := a.Store.Alerts().CountUnfiltered(ctx, username, since)
		if err != nil {
			return fmt.Errorf("%w: %v", detecterr.ErrTransient, err)
		}
		if err := a.Store.Users().UpdateRiskScore(ctx, username, LevelFor(count), now); err != nil {
			return fmt.Errorf("%w: %v", detecterr.ErrTransient, err)
		}
	}
	return nil
}
