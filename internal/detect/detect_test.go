package detect

import (
	"sort"
	"testing"
	"time"

	"github.com/gokaycavdar/go-authguard/internal/domain"
)

// fakeHistory is an in-memory History used only by these tests; the
// production implementation lives behind store.LoginRepo.
type fakeHistory struct {
	logins []domain.Login
}

func (f *fakeHistory) HasUserAgent(ua string) bool {
	for _, l := range f.logins {
		if l.UserAgent == ua {
			return true
		}
	}
	return false
}

func (f *fakeHistory) HasCountry(country string) bool {
	for _, l := range f.logins {
		if l.Country == country {
			return true
		}
	}
	return false
}

func (f *fakeHistory) MostRecentBefore(t time.Time) *domain.Login {
	var candidates []domain.Login
	for _, l := range f.logins {
		if l.Timestamp.Before(t) {
			candidates = append(candidates, l)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].Timestamp.Equal(candidates[j].Timestamp) {
			return candidates[i].Timestamp.After(candidates[j].Timestamp)
		}
		return candidates[i].UserAgent > candidates[j].UserAgent
	})
	return &candidates[0]
}

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return ts
}

func TestImpossibleTravelDetector_ExtremeVelocity(t *testing.T) {
	// Login from India, then ~5m28s later from the US.
	h := &fakeHistory{logins: []domain.Login{
		{
			Username:  "aisha.delgado",
			Timestamp: mustParse(t, "2023-05-03T06:50:03.768Z"),
			Latitude:  28.6, Longitude: 77.2,
			Country: "IN", UserAgent: "curl/7.68.0", Index: "0",
		},
	}}

	c := Candidate{
		Username:  "aisha.delgado",
		Timestamp: mustParse(t, "2023-05-03T06:55:31.768Z"),
		Latitude:  40.7, Longitude: -74.0,
		Country: "US", UserAgent: "curl/7.68.0", Index: "0", IP: "1.2.3.4",
	}

	d := ImpossibleTravelDetector{VelocityMaxKmh: 300}
	alert, err := d.Detect(c, h)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if alert == nil {
		t.Fatal("Detect() = nil, want an Imp Travel alert")
	}
	if alert.Name != domain.AlertImpTravel {
		t.Errorf("alert.Name = %q, want %q", alert.Name, domain.AlertImpTravel)
	}
	v, ok := alert.LoginRawData["velocity_kmh"].(float64)
	if !ok {
		t.Fatal("velocity_kmh missing or wrong type")
	}
	// Delhi to New York in five and a half minutes: ~129039 Km/h,
	// clearing the 300 Km/h threshold by three orders of magnitude.
	if v < 128000 || v > 130000 {
		t.Errorf("velocity_kmh = %v, want ~129039", v)
	}
	const want = "Impossible Travel detected for User: aisha.delgado, at: 2023-05-03T06:55:31.768Z, from: US, previous country: IN, distance covered at 129039 Km/h"
	if alert.Description != want {
		t.Errorf("Description = %q, want %q", alert.Description, want)
	}
}

func TestImpossibleTravelDetector_NoPriorLogin(t *testing.T) {
	h := &fakeHistory{}
	c := Candidate{
		Username: "new.user", Timestamp: time.Now(),
		Latitude: 1, Longitude: 1, Country: "US", UserAgent: "ua", Index: "0",
	}
	d := ImpossibleTravelDetector{VelocityMaxKmh: 300}
	alert, err := d.Detect(c, h)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if alert != nil {
		t.Errorf("Detect() = %+v, want nil for a user with no prior login", alert)
	}
}

func TestImpossibleTravelDetector_BelowThreshold(t *testing.T) {
	h := &fakeHistory{logins: []domain.Login{
		{
			Username: "bob", Timestamp: mustParse(t, "2023-05-03T06:00:00Z"),
			Latitude: 40.0, Longitude: -73.0, Country: "US", UserAgent: "ua", Index: "0",
		},
	}}
	c := Candidate{
		Username: "bob", Timestamp: mustParse(t, "2023-05-03T08:00:00Z"),
		Latitude: 40.1, Longitude: -73.1, Country: "US", UserAgent: "ua", Index: "0",
	}
	d := ImpossibleTravelDetector{VelocityMaxKmh: 300}
	alert, err := d.Detect(c, h)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if alert != nil {
		t.Errorf("Detect() = %+v, want nil below the velocity threshold", alert)
	}
}

func TestImpossibleTravelDetector_TieBreakOnUserAgent(t *testing.T) {
	// Two prior logins share the same timestamp; the tie must resolve to
	// the lexicographically greatest user agent.
	same := mustParse(t, "2023-05-03T06:00:00Z")
	h := &fakeHistory{logins: []domain.Login{
		{Username: "tie", Timestamp: same, Latitude: 0, Longitude: 0, Country: "US", UserAgent: "aaa"},
		{Username: "tie", Timestamp: same, Latitude: 80, Longitude: 170, Country: "US", UserAgent: "zzz"},
	}}
	got := h.MostRecentBefore(same.Add(time.Minute))
	if got == nil || got.UserAgent != "zzz" {
		t.Fatalf("MostRecentBefore() = %+v, want UserAgent=zzz", got)
	}

	// A candidate one minute later at the "zzz" login's coordinates: the
	// detector measures from that login (distance 0), so no alert. Had it
	// picked "aaa" at (0, 0), the implied velocity would be far above 300.
	c := Candidate{
		Username: "tie", Timestamp: same.Add(time.Minute),
		Latitude: 80, Longitude: 170, Country: "US", UserAgent: "zzz",
	}
	alert, err := ImpossibleTravelDetector{VelocityMaxKmh: 300}.Detect(c, h)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if alert != nil {
		t.Errorf("Detect() = %+v, want nil (previous login is the tie-break winner zzz)", alert)
	}
}

func TestNewDeviceDetector_NewUserAgentOnly(t *testing.T) {
	// Same country, new user agent: only the device detector fires.
	h := &fakeHistory{logins: []domain.Login{
		{Username: "lorena.goldoni", Country: "IT", UserAgent: "old-ua"},
	}}
	c := Candidate{Username: "lorena.goldoni", Country: "IT", UserAgent: "new-ua"}

	d := NewDeviceDetector{}
	alert, err := d.Detect(c, h)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if alert == nil {
		t.Fatal("Detect() = nil, want a New Device alert")
	}
	if alert.Name != domain.AlertNewDevice {
		t.Errorf("alert.Name = %q, want %q", alert.Name, domain.AlertNewDevice)
	}

	cd := NewCountryDetector{}
	countryAlert, err := cd.Detect(c, h)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if countryAlert != nil {
		t.Errorf("NewCountryDetector.Detect() = %+v, want nil (country already seen)", countryAlert)
	}
}

func TestNewDeviceDetector_KnownUserAgent(t *testing.T) {
	h := &fakeHistory{logins: []domain.Login{
		{Username: "known", Country: "US", UserAgent: "ua"},
	}}
	c := Candidate{Username: "known", Country: "GB", UserAgent: "ua"}
	d := NewDeviceDetector{}
	alert, err := d.Detect(c, h)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if alert != nil {
		t.Errorf("Detect() = %+v, want nil for a previously seen user agent", alert)
	}
}

func TestNewCountryDetector(t *testing.T) {
	h := &fakeHistory{logins: []domain.Login{
		{Username: "u", Country: "IT", UserAgent: "ua"},
	}}

	fresh := Candidate{Username: "u", Country: "FR", UserAgent: "ua"}
	alert, err := NewCountryDetector{}.Detect(fresh, h)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if alert == nil || alert.Name != domain.AlertNewCountry {
		t.Fatalf("Detect() = %+v, want a New Country alert", alert)
	}

	known := Candidate{Username: "u", Country: "IT", UserAgent: "ua"}
	alert, err = NewCountryDetector{}.Detect(known, h)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if alert != nil {
		t.Errorf("Detect() = %+v, want nil for a previously seen country", alert)
	}

	empty := Candidate{Username: "u", Country: "", UserAgent: "ua"}
	alert, err = NewCountryDetector{}.Detect(empty, h)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if alert != nil {
		t.Errorf("Detect() = %+v, want nil for an empty country", alert)
	}
}
