// Package logsource defines the external collaborator the scheduler pulls
// raw authentication events from. Implementations wrap whatever upstream
// log store the deployment uses (Elasticsearch, a message bus, a flat
// file); this repository ships an in-memory fake for tests
// (logsource/memory) and a Redis stream adapter (logsource/redisstream).
package logsource

import (
	"context"
	"time"
)

// Event is a single raw authentication record as emitted by the upstream
// log source, before any field processing.
type Event struct {
	Username  string
	ID        string // upstream document id, carried through for audit only
	Timestamp string // ISO-8601, parsed by internal/geo.ParseTimestamp
	Latitude  float64
	Longitude float64
	Country   string
	UserAgent string
	Index     string
	IP        string
}

// Source fetches every Event whose timestamp falls in [start, end).
type Source interface {
	FetchEvents(ctx context.Context, start, end time.Time) ([]Event, error)
}
