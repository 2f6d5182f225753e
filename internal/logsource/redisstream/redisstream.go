// Package redisstream reads raw authentication events from a Redis
// stream. The upstream collector XADDs one entry per login event with
// auto-generated IDs, so entry IDs carry the ingestion timestamp and a
// time window maps directly onto an XRANGE over millisecond ID bounds.
package redisstream

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gokaycavdar/go-authguard/internal/logsource"
)

// DefaultStream is the stream key the collector writes to unless a
// deployment overrides it.
const DefaultStream = "authguard:events"

// Source implements logsource.Source over one Redis stream.
type Source struct {
	redis  *redis.Client
	stream string
}

// New returns a Source reading from stream; an empty stream name means
// DefaultStream.
func New(rdb *redis.Client, stream string) *Source {
	if stream == "" {
		stream = DefaultStream
	}
	return &Source{redis: rdb, stream: stream}
}

// FetchEvents returns every event XADDed in [start, end). Stream entry
// IDs are "<unix-ms>-<seq>", so the range bounds are the window's
// millisecond timestamps; the end bound is exclusive via the "(" prefix
// on the full end-of-millisecond ID.
func (s *Source) FetchEvents(ctx context.Context, start, end time.Time) ([]logsource.Event, error) {
	lower := strconv.FormatInt(start.UnixMilli(), 10)
	upper := fmt.Sprintf("(%d-0", end.UnixMilli())

	msgs, err := s.redis.XRange(ctx, s.stream, lower, upper).Result()
	if err != nil {
		return nil, fmt.Errorf("reading stream %s: %w", s.stream, err)
	}

	events := make([]logsource.Event, 0, len(msgs))
	for _, m := range msgs {
		events = append(events, eventFromValues(m.ID, m.Values))
	}
	return events, nil
}

// eventFromValues maps one stream entry onto the normalized event shape.
// Missing fields come through as zero values and are caught downstream
// by the field processor's malformed-event handling.
func eventFromValues(id string, values map[string]interface{}) logsource.Event {
	e := logsource.Event{
		Username:  stringField(values, "username"),
		ID:        stringField(values, "id"),
		Timestamp: stringField(values, "timestamp"),
		Country:   stringField(values, "country"),
		UserAgent: stringField(values, "agent"),
		Index:     stringField(values, "index"),
		IP:        stringField(values, "ip"),
	}
	if e.ID == "" {
		e.ID = id
	}
	e.Latitude = floatField(values, "lat")
	e.Longitude = floatField(values, "lon")
	return e
}

func stringField(values map[string]interface{}, key string) string {
	v, ok := values[key].(string)
	if !ok {
		return ""
	}
	return v
}

func floatField(values map[string]interface{}, key string) float64 {
	v, ok := values[key].(string)
	if !ok {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return f
}
