// Package memory is an in-process Store backed by maps guarded by a single
// mutex, used by every unit test in this repository.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gokaycavdar/go-authguard/internal/domain"
	"github.com/gokaycavdar/go-authguard/internal/store"
)

type loginKey struct {
	username, userAgent, country, index string
}

// Store is a thread-safe, in-memory implementation of store.Store.
type Store struct {
	mu sync.Mutex

	users        map[string]domain.User
	logins       map[loginKey]domain.Login
	usersIPs     map[[2]string]domain.UsersIP
	alerts       []domain.Alert
	config       domain.Config
	taskSettings map[string]domain.TaskSettings
}

// New returns a Store seeded with the documented default Config.
func New() *Store {
	return &Store{
		users:        map[string]domain.User{},
		logins:       map[loginKey]domain.Login{},
		usersIPs:     map[[2]string]domain.UsersIP{},
		config:       domain.DefaultConfig(),
		taskSettings: map[string]domain.TaskSettings{},
	}
}

// SetConfig replaces the singleton Config; used by tests to exercise
// non-default policy.
func (s *Store) SetConfig(cfg domain.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = cfg
}

func (s *Store) Users() store.UserRepo                { return (*userRepo)(s) }
func (s *Store) Logins() store.LoginRepo              { return (*loginRepo)(s) }
func (s *Store) UsersIPs() store.UsersIPRepo          { return (*usersIPRepo)(s) }
func (s *Store) Alerts() store.AlertRepo              { return (*alertRepo)(s) }
func (s *Store) Config() store.ConfigRepo             { return (*configRepo)(s) }
func (s *Store) TaskSettings() store.TaskSettingsRepo { return (*taskSettingsRepo)(s) }

type userRepo Store

func (r *userRepo) Touch(_ context.Context, username string, at time.Time) (domain.User, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		u = domain.User{Username: username, RiskScore: domain.RiskNone}
	}
	u.Updated = at
	s.users[username] = u
	return u, nil
}

func (r *userRepo) Get(_ context.Context, username string) (*domain.User, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *userRepo) UpdateRiskScore(_ context.Context, username, risk string, at time.Time) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[username]
	u.Username = username
	u.RiskScore = risk
	u.Updated = at
	s.users[username] = u
	return nil
}

func (r *userRepo) ListUsernamesWithActivity(_ context.Context) ([]string, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := map[string]struct{}{}
	for k := range s.logins {
		seen[k.username] = struct{}{}
	}
	for k := range s.usersIPs {
		seen[k[0]] = struct{}{}
	}
	for _, a := range s.alerts {
		seen[a.Username] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for u := range seen {
		out = append(out, u)
	}
	sort.Strings(out)
	return out, nil
}

func (r *userRepo) DeleteStale(_ context.Context, before time.Time) (int, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, u := range s.users {
		if u.Updated.Before(before) {
			delete(s.users, k)
			n++
		}
	}
	return n, nil
}

type loginRepo Store

func (r *loginRepo) HasUserAgent(_ context.Context, username, userAgent string) (bool, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.logins {
		if k.username == username && k.userAgent == userAgent {
			return true, nil
		}
	}
	return false, nil
}

func (r *loginRepo) HasCountry(_ context.Context, username, country string) (bool, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.logins {
		if k.username == username && k.country == country {
			return true, nil
		}
	}
	return false, nil
}

func (r *loginRepo) MostRecentBefore(_ context.Context, username string, before time.Time) (*domain.Login, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	var best *domain.Login
	for k, l := range s.logins {
		if k.username != username || !l.Timestamp.Before(before) {
			continue
		}
		l := l
		if best == nil ||
			l.Timestamp.After(best.Timestamp) ||
			(l.Timestamp.Equal(best.Timestamp) && l.UserAgent > best.UserAgent) {
			best = &l
		}
	}
	return best, nil
}

func (r *loginRepo) ExistsByKey(_ context.Context, username, userAgent, country, index string) (bool, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.logins[loginKey{username, userAgent, country, index}]
	return ok, nil
}

func (r *loginRepo) UpsertByKey(_ context.Context, login domain.Login) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	k := loginKey{login.Username, login.UserAgent, login.Country, login.Index}
	s.logins[k] = login
	return nil
}

func (r *loginRepo) DeleteStale(_ context.Context, before time.Time) (int, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, l := range s.logins {
		if l.Updated.Before(before) {
			delete(s.logins, k)
			n++
		}
	}
	return n, nil
}

type usersIPRepo Store

func (r *usersIPRepo) Exists(_ context.Context, username, ip string) (bool, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.usersIPs[[2]string{username, ip}]
	return ok, nil
}

func (r *usersIPRepo) Upsert(_ context.Context, username, ip string, at time.Time) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usersIPs[[2]string{username, ip}] = domain.UsersIP{Username: username, IP: ip, Updated: at}
	return nil
}

func (r *usersIPRepo) DeleteStale(_ context.Context, before time.Time) (int, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, v := range s.usersIPs {
		if v.Updated.Before(before) {
			delete(s.usersIPs, k)
			n++
		}
	}
	return n, nil
}

type alertRepo Store

func (r *alertRepo) Insert(_ context.Context, alert domain.Alert) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, alert)
	return nil
}

func (r *alertRepo) CountUnfiltered(_ context.Context, username string, since time.Time) (int, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.alerts {
		if a.Username == username && !a.IsFiltered && !a.Updated.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *alertRepo) DeleteStale(_ context.Context, before time.Time) (int, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.alerts[:0]
	n := 0
	for _, a := range s.alerts {
		if a.Updated.Before(before) {
			n++
			continue
		}
		kept = append(kept, a)
	}
	s.alerts = kept
	return n, nil
}

type configRepo Store

func (r *configRepo) Get(_ context.Context) (domain.Config, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config, nil
}

type taskSettingsRepo Store

func (r *taskSettingsRepo) Get(_ context.Context, taskName string) (*domain.TaskSettings, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	ts, ok := s.taskSettings[taskName]
	if !ok {
		return nil, nil
	}
	return &ts, nil
}

func (r *taskSettingsRepo) Upsert(_ context.Context, ts domain.TaskSettings) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.taskSettings[ts.TaskName] = ts
	return nil
}
