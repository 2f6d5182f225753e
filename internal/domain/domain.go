// Package domain holds the persisted entities shared across the detection
// pipeline: User, Login, UsersIP, Alert, Config, and TaskSettings.
package domain

import "time"

// Risk labels produced by the risk aggregator (internal/risk).
const (
	RiskNone   = "No risk"
	RiskLow    = "Low"
	RiskMedium = "Medium"
	RiskHigh   = "High"
)

// Alert names, bit-exact with the alert description formats.
const (
	AlertNewDevice  = "New Device"
	AlertNewCountry = "New Country"
	AlertImpTravel  = "Imp Travel"
)

// Alert filter reasons. Order matters: the VIP filter is evaluated and
// appended before the allowed-country filter (see internal/filter).
const (
	FilterVIP            = "is_vip_filter"
	FilterAllowedCountry = "allowed_country_filter"
)

// User is the identity of a monitored principal.
type User struct {
	Username  string
	RiskScore string
	Updated   time.Time
}

// Login is a persisted canonical login record. For a given user, the pair
// (UserAgent, Country) uniquely identifies at most one Login per Index.
type Login struct {
	Username  string
	Timestamp time.Time
	Latitude  float64
	Longitude float64
	Country   string
	UserAgent string
	Index     string
	Updated   time.Time
}

// UsersIP is a source IP ever observed for a user. (Username, IP) is unique.
type UsersIP struct {
	Username string
	IP       string
	Updated  time.Time
}

// Alert is a raised detection.
type Alert struct {
	Username     string
	Name         string
	Description  string
	LoginRawData map[string]any
	IsFiltered   bool
	FilterType   []string
	Updated      time.Time
}

// Config is the process-wide policy singleton, read by the scheduler (which
// snapshots it for the alert filter) and by cmd/geodetector for the
// tunables. AlertMinimumRiskScore is a pointer because the threshold is
// optional (nil means unset).
type Config struct {
	AllowedCountries           map[string]struct{}
	VIPUsers                   map[string]struct{}
	AlertIsVIPOnly             bool
	AlertMinimumRiskScore      *string
	VelocityMaxKmh             int
	RetentionDays              int
	SlideMinutes               int
	DataLossMinutes            int
	MaxSubwindowsPerInvocation int
}

// IsAllowedCountry reports whether country is in the allowed-country set.
func (c Config) IsAllowedCountry(country string) bool {
	if country == "" {
		return false
	}
	_, ok := c.AllowedCountries[country]
	return ok
}

// IsVIP reports whether username is a VIP user.
func (c Config) IsVIP(username string) bool {
	_, ok := c.VIPUsers[username]
	return ok
}

// TaskSettings is the persistent window pointer for a named scheduler task.
type TaskSettings struct {
	TaskName  string
	StartDate time.Time
	EndDate   time.Time
}

// DefaultConfig returns the documented defaults for every tunable.
func DefaultConfig() Config {
	return Config{
		AllowedCountries:           map[string]struct{}{},
		VIPUsers:                   map[string]struct{}{},
		AlertIsVIPOnly:             false,
		VelocityMaxKmh:             300,
		RetentionDays:              90,
		SlideMinutes:               30,
		DataLossMinutes:            60,
		MaxSubwindowsPerInvocation: 6,
	}
}
