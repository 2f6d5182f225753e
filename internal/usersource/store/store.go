// Package store adapts store.Store into a usersource.Source for
// deployments with no external identity directory to poll. It simply
// reflects usernames the pipeline already knows about, which keeps the
// risk aggregator's two-source union in cmd/geodetector well-defined
// without inventing an identity provider integration.
package store

import (
	"context"

	"github.com/gokaycavdar/go-authguard/internal/store"
)

// Source lists every username store.Store currently has activity for.
type Source struct {
	store store.Store
}

// New wraps s as a usersource.Source.
func New(s store.Store) *Source {
	return &Source{store: s}
}

// ListUsernames delegates to the Users repository.
func (s *Source) ListUsernames(ctx context.Context) ([]string, error) {
	return s.store.Users().ListUsernamesWithActivity(ctx)
}
