// Package memory is a canned logsource.Source used by tests: events are
// seeded up front and FetchEvents filters them by timestamp.
package memory

import (
	"context"
	"time"

	"github.com/gokaycavdar/go-authguard/internal/geo"
	"github.com/gokaycavdar/go-authguard/internal/logsource"
)

// Source is a fixed slice of events, queried by time range.
type Source struct {
	Events []logsource.Event
}

// New returns a Source seeded with events.
func New(events []logsource.Event) *Source {
	return &Source{Events: events}
}

// FetchEvents returns every seeded event whose parsed timestamp falls in
// [start, end). Events with an unparseable timestamp are skipped rather
// than returned as an error, mirroring how a real upstream log source
// would already have rejected them at ingestion.
func (s *Source) FetchEvents(_ context.Context, start, end time.Time) ([]logsource.Event, error) {
	var out []logsource.Event
	for _, e := range s.Events {
		ts, err := geo.ParseTimestamp(e.Timestamp)
		if err != nil {
			continue
		}
		if !ts.Before(start) && ts.Before(end) {
			out = append(out, e)
		}
	}
	return out, nil
}
