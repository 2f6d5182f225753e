// Package usersource defines the external collaborator that enumerates the
// usernames known to the identity system, independent of whether they
// have logged in yet. Used by the risk aggregator to catch users with
// zero alerts (who must still be set to RiskNone).
package usersource

import "context"

// Source lists every known username.
type Source interface {
	ListUsernames(ctx context.Context) ([]string, error)
}
