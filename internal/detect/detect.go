// Package detect holds the behavioral anomaly detectors run against each
// candidate login event: impossible travel, new country, and new device.
// Unlike a stateless rule engine, every Detector consults a History view
// of the user's prior logins, since each check here is relative to what
// has been seen before, not to the event in isolation.
package detect

import (
	"fmt"
	"math"
	"time"

	"github.com/gokaycavdar/go-authguard/internal/domain"
	"github.com/gokaycavdar/go-authguard/internal/geo"
)

// Candidate is the login event under evaluation.
type Candidate struct {
	Username  string
	ID        string
	Timestamp time.Time
	Latitude  float64
	Longitude float64
	Country   string
	UserAgent string
	Index     string
	IP        string
}

// History answers the questions a Detector needs about a user's prior
// logins. Implementations are backed by store.LoginRepo.
type History interface {
	// HasUserAgent reports whether the user has ever logged in with ua
	// before, under any country.
	HasUserAgent(ua string) bool
	// HasCountry reports whether the user has ever logged in from country
	// before.
	HasCountry(country string) bool
	// MostRecentBefore returns the user's most recent login strictly
	// before t, or nil if none exists. On a tie for the latest timestamp,
	// the login with the lexicographically greatest UserAgent wins.
	MostRecentBefore(t time.Time) *domain.Login
}

// Detector inspects a Candidate against History and either returns an
// Alert to raise, or (nil, nil) when nothing is wrong.
type Detector interface {
	Name() string
	Detect(c Candidate, h History) (*domain.Alert, error)
}

func rawData(c Candidate) map[string]any {
	return map[string]any{
		"username":   c.Username,
		"id":         c.ID,
		"timestamp":  geo.FormatTimestamp(c.Timestamp),
		"latitude":   c.Latitude,
		"longitude":  c.Longitude,
		"country":    c.Country,
		"user_agent": c.UserAgent,
		"index":      c.Index,
		"ip":         c.IP,
	}
}

// NewDeviceDetector fires the first time a (username, user_agent) pair is
// seen, regardless of country.
type NewDeviceDetector struct{}

func (NewDeviceDetector) Name() string { return domain.AlertNewDevice }

func (NewDeviceDetector) Detect(c Candidate, h History) (*domain.Alert, error) {
	if h.HasUserAgent(c.UserAgent) {
		return nil, nil
	}
	return &domain.Alert{
		Username: c.Username,
		Name:     domain.AlertNewDevice,
		Description: fmt.Sprintf("Login from new device for User: %s, at: %s",
			c.Username, geo.FormatTimestamp(c.Timestamp)),
		LoginRawData: rawData(c),
		Updated:      c.Timestamp,
	}, nil
}

// NewCountryDetector fires the first time a login is seen from a country
// the user has never logged in from before.
type NewCountryDetector struct{}

func (NewCountryDetector) Name() string { return domain.AlertNewCountry }

func (NewCountryDetector) Detect(c Candidate, h History) (*domain.Alert, error) {
	if c.Country == "" || h.HasCountry(c.Country) {
		return nil, nil
	}
	return &domain.Alert{
		Username: c.Username,
		Name:     domain.AlertNewCountry,
		Description: fmt.Sprintf("Login from new country for User: %s, at: %s, from: %s",
			c.Username, geo.FormatTimestamp(c.Timestamp), c.Country),
		LoginRawData: rawData(c),
		Updated:      c.Timestamp,
	}, nil
}

// ImpossibleTravelDetector fires when the implied ground speed between the
// candidate's location/timestamp and the user's most recent prior login
// exceeds VelocityMaxKmh.
type ImpossibleTravelDetector struct {
	VelocityMaxKmh int
}

func (ImpossibleTravelDetector) Name() string { return domain.AlertImpTravel }

func (d ImpossibleTravelDetector) Detect(c Candidate, h History) (*domain.Alert, error) {
	prev := h.MostRecentBefore(c.Timestamp)
	if prev == nil {
		return nil, nil
	}

	v := geo.Velocity(
		geo.Point{Lat: prev.Latitude, Lon: prev.Longitude}, prev.Timestamp,
		geo.Point{Lat: c.Latitude, Lon: c.Longitude}, c.Timestamp,
	)
	if v <= float64(d.VelocityMaxKmh) {
		return nil, nil
	}

	data := rawData(c)
	data["prev_timestamp"] = geo.FormatTimestamp(prev.Timestamp)
	data["prev_country"] = prev.Country
	data["velocity_kmh"] = v

	vRounded := int(math.Round(v))
	return &domain.Alert{
		Username: c.Username,
		Name:     domain.AlertImpTravel,
		Description: fmt.Sprintf(
			"Impossible Travel detected for User: %s, at: %s, from: %s, previous country: %s, distance covered at %d Km/h",
			c.Username, geo.FormatTimestamp(c.Timestamp), c.Country, prev.Country, vRounded),
		LoginRawData: data,
		Updated:      c.Timestamp,
	}, nil
}
