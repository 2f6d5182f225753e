// Package leaser provides a short-lived Redis lock so only one scheduler
// invocation for a given task name runs at a time, even if two instances
// of the service are deployed.
package leaser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotHeld is returned by Release when the lease is no longer owned by
// this token (it expired and was reacquired by another invocation).
var ErrNotHeld = errors.New("leaser: lease not held")

// Leaser acquires and releases named leases in Redis.
type Leaser struct {
	redis *redis.Client
	ttl   time.Duration
}

// New returns a Leaser whose leases expire after ttl if never released.
func New(rdb *redis.Client, ttl time.Duration) *Leaser {
	return &Leaser{redis: rdb, ttl: ttl}
}

// Lease is a held lock, identified by the random token used to acquire it.
type Lease struct {
	key   string
	token string
}

func leaseKey(taskName string) string {
	return fmt.Sprintf("authguard:lease:%s", taskName)
}

// Acquire attempts to take the lease for taskName. ok is false if another
// invocation currently holds it.
func (l *Leaser) Acquire(ctx context.Context, taskName, token string) (lease *Lease, ok bool, err error) {
	key := leaseKey(taskName)
	set, err := l.redis.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquiring lease %s: %w", taskName, err)
	}
	if !set {
		return nil, false, nil
	}
	return &Lease{key: key, token: token}, true, nil
}

// release script: only delete the key if it still holds our token, so a
// slow invocation can never delete a lease another invocation has since
// acquired after expiry.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`

// Release gives up the lease. Returns ErrNotHeld if it had already
// expired and been reacquired elsewhere.
func (l *Leaser) Release(ctx context.Context, lease *Lease) error {
	n, err := l.redis.Eval(ctx, releaseScript, []string{lease.key}, lease.token).Int64()
	if err != nil {
		return fmt.Errorf("releasing lease %s: %w", lease.key, err)
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}
