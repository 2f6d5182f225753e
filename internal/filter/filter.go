// Package filter decides whether a raised Alert should be suppressed
// (IsFiltered=true) before it is persisted, and records why: VIP-only
// alerting and allowed-country suppression.
//
// Order matters: the VIP filter is evaluated first, so its reason is
// always appended to FilterType before the allowed-country filter's.
package filter

import "github.com/gokaycavdar/go-authguard/internal/domain"

// Snapshot is the immutable slice of Config the filter needs. The
// scheduler takes it once per invocation (Scheduler.Tick) and uses it for
// every sub-window of that invocation, so a mid-window policy edit can
// never change the filtering behavior of events already being processed.
// Config is not re-read between sub-windows: an edit made during an
// invocation takes effect from the next invocation.
type Snapshot struct {
	AllowedCountries map[string]struct{}
	VIPUsers         map[string]struct{}
	AlertIsVIPOnly   bool
}

func (s Snapshot) isVIP(username string) bool {
	_, ok := s.VIPUsers[username]
	return ok
}

func (s Snapshot) isAllowedCountry(country string) bool {
	if country == "" {
		return false
	}
	_, ok := s.AllowedCountries[country]
	return ok
}

// NewSnapshot takes a Config and freezes the fields the filter consumes.
func NewSnapshot(cfg domain.Config) Snapshot {
	return Snapshot{
		AllowedCountries: cfg.AllowedCountries,
		VIPUsers:         cfg.VIPUsers,
		AlertIsVIPOnly:   cfg.AlertIsVIPOnly,
	}
}

// Apply evaluates alert against the snapshot and sets IsFiltered and
// FilterType in place. country is the country carried on the login that
// raised the alert. Both rules are evaluated independently; neither
// detector name nor alert kind exempts an alert from either filter.
func Apply(alert *domain.Alert, country string, s Snapshot) {
	var reasons []string

	if s.AlertIsVIPOnly && !s.isVIP(alert.Username) {
		reasons = append(reasons, domain.FilterVIP)
	}

	if s.isAllowedCountry(country) {
		reasons = append(reasons, domain.FilterAllowedCountry)
	}

	if len(reasons) > 0 {
		alert.IsFiltered = true
		alert.FilterType = reasons
	}
}
