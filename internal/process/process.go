// Package process implements the field processor: the per-user, per-event
// pipeline that turns a raw logsource.Event into detector runs, filtered
// Alerts, and canonical Login/UsersIP rows.
package process

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/gokaycavdar/go-authguard/internal/detect"
	"github.com/gokaycavdar/go-authguard/internal/detecterr"
	"github.com/gokaycavdar/go-authguard/internal/domain"
	"github.com/gokaycavdar/go-authguard/internal/filter"
	"github.com/gokaycavdar/go-authguard/internal/geo"
	"github.com/gokaycavdar/go-authguard/internal/logsource"
	"github.com/gokaycavdar/go-authguard/internal/store"
	"github.com/gokaycavdar/go-authguard/internal/telemetry"
)

// Processor runs the field processor algorithm against one user's events
// at a time. A Processor is safe to share across goroutines as long as
// each goroutine calls ProcessUser for a distinct username (see
// internal/workerpool), since all cross-event state lives in Store.
type Processor struct {
	Store     store.Store
	Detectors []detect.Detector
}

// New returns a Processor wired with the standard detector set.
func New(s store.Store, velocityMaxKmh int) *Processor {
	return &Processor{
		Store: s,
		Detectors: []detect.Detector{
			detect.ImpossibleTravelDetector{VelocityMaxKmh: velocityMaxKmh},
			detect.NewCountryDetector{},
			detect.NewDeviceDetector{},
		},
	}
}

// storeHistory adapts store.LoginRepo to detect.History for one username.
type storeHistory struct {
	ctx      context.Context
	repo     store.LoginRepo
	username string
}

func (h storeHistory) HasUserAgent(ua string) bool {
	ok, _ := h.repo.HasUserAgent(h.ctx, h.username, ua)
	return ok
}

func (h storeHistory) HasCountry(country string) bool {
	ok, _ := h.repo.HasCountry(h.ctx, h.username, country)
	return ok
}

func (h storeHistory) MostRecentBefore(t time.Time) *domain.Login {
	l, _ := h.repo.MostRecentBefore(h.ctx, h.username, t)
	return l
}

// ProcessUser runs every event in events (for a single username) through
// the detectors, in ascending timestamp order, persisting Alerts and
// Login/UsersIP rows as it goes. cfg is the policy snapshot frozen for
// the sub-window this call belongs to; it must not be re-read mid-call.
// Malformed events (unparseable timestamp) are skipped, wrapped in
// detecterr.ErrMalformedEvent, and do not abort the remaining events.
// The returned error is the first non-malformed failure if one occurred,
// otherwise the first malformed-event error, so a skipped event never
// hides a later transient failure from the scheduler.
func (p *Processor) ProcessUser(ctx context.Context, username string, events []logsource.Event, cfg filter.Snapshot) error {
	sort.Slice(events, func(i, j int) bool { return events[i].Timestamp < events[j].Timestamp })

	var firstErr error
	for _, e := range events {
		if err := p.processOne(ctx, username, e, cfg); err != nil {
			if firstErr == nil ||
				(errors.Is(firstErr, detecterr.ErrMalformedEvent) && !errors.Is(err, detecterr.ErrMalformedEvent)) {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (p *Processor) processOne(ctx context.Context, username string, e logsource.Event, cfg filter.Snapshot) error {
	ts, err := geo.ParseTimestamp(e.Timestamp)
	if err != nil {
		return fmt.Errorf("event %s for %s: %w: %v", e.ID, username, detecterr.ErrMalformedEvent, err)
	}

	c := detect.Candidate{
		Username:  username,
		ID:        e.ID,
		Timestamp: ts,
		Latitude:  e.Latitude,
		Longitude: e.Longitude,
		Country:   e.Country,
		UserAgent: e.UserAgent,
		Index:     e.Index,
		IP:        e.IP,
	}

	logins := p.Store.Logins()
	history := storeHistory{ctx: ctx, repo: logins, username: username}

	// Known-IP suppression: when both the source IP and the exact
	// (user_agent, country, index) login are already on record for this
	// user, the event carries no new information, so neither detection
	// nor persistence runs for it. The stored Login keeps its original
	// timestamp and coordinates.
	knownIP, err := p.Store.UsersIPs().Exists(ctx, username, e.IP)
	if err != nil {
		return fmt.Errorf("%w: %v", detecterr.ErrTransient, err)
	}
	knownLogin, err := logins.ExistsByKey(ctx, username, e.UserAgent, e.Country, e.Index)
	if err != nil {
		return fmt.Errorf("%w: %v", detecterr.ErrTransient, err)
	}
	if knownIP && knownLogin {
		return nil
	}

	for _, d := range p.Detectors {
		alert, err := d.Detect(c, history)
		if err != nil {
			return fmt.Errorf("%s: %w", d.Name(), err)
		}
		if alert == nil {
			continue
		}
		telemetry.AlertsRaisedTotal.WithLabelValues(alert.Name).Inc()
		filter.Apply(alert, c.Country, cfg)
		for _, reason := range alert.FilterType {
			telemetry.AlertsFilteredTotal.WithLabelValues(reason).Inc()
		}
		if err := p.Store.Alerts().Insert(ctx, *alert); err != nil {
			return fmt.Errorf("%w: %v", detecterr.ErrTransient, err)
		}
	}

	if _, err := p.Store.Users().Touch(ctx, username, ts); err != nil {
		return fmt.Errorf("%w: %v", detecterr.ErrTransient, err)
	}
	if err := logins.UpsertByKey(ctx, domain.Login{
		Username:  username,
		Timestamp: ts,
		Latitude:  e.Latitude,
		Longitude: e.Longitude,
		Country:   e.Country,
		UserAgent: e.UserAgent,
		Index:     e.Index,
		Updated:   ts,
	}); err != nil {
		return fmt.Errorf("%w: %v", detecterr.ErrTransient, err)
	}
	if err := p.Store.UsersIPs().Upsert(ctx, username, e.IP, ts); err != nil {
		return fmt.Errorf("%w: %v", detecterr.ErrTransient, err)
	}
	return nil
}
