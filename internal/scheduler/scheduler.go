// Package scheduler implements the ingestion scheduler: the periodic
// invocation that advances a persistent window pointer, fetches raw
// events per sub-window, and drives the field processor. Catch-up after
// a stall is bounded per invocation, and a pointer that has fallen too
// far behind is reset rather than replayed.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/gokaycavdar/go-authguard/internal/detecterr"
	"github.com/gokaycavdar/go-authguard/internal/domain"
	"github.com/gokaycavdar/go-authguard/internal/filter"
	"github.com/gokaycavdar/go-authguard/internal/logsource"
	"github.com/gokaycavdar/go-authguard/internal/process"
	"github.com/gokaycavdar/go-authguard/internal/store"
	"github.com/gokaycavdar/go-authguard/internal/telemetry"
	"github.com/gokaycavdar/go-authguard/internal/usersource"
	"github.com/gokaycavdar/go-authguard/internal/workerpool"
)

// TaskName identifies the persistent window pointer this scheduler owns
// in TaskSettings.
const TaskName = "process_logs"

// Scheduler drives one ingestion task's window pointer forward, fetching
// and processing raw events one sub-window at a time.
type Scheduler struct {
	Store     store.Store
	Users     usersource.Source
	Events    logsource.Source
	Processor *process.Processor

	Slide                time.Duration // default 30m
	DataLossThreshold    time.Duration // default 60m
	MaxSubwindowsPerTick int           // default 6
	SubwindowDeadline    time.Duration // default 5m
	Workers              int           // worker pool shard count, default 8

	Log zerolog.Logger
}

// New returns a Scheduler wired with the documented defaults.
func New(s store.Store, users usersource.Source, events logsource.Source, p *process.Processor, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		Store:                s,
		Users:                users,
		Events:               events,
		Processor:            p,
		Slide:                30 * time.Minute,
		DataLossThreshold:    60 * time.Minute,
		MaxSubwindowsPerTick: 6,
		SubwindowDeadline:    5 * time.Minute,
		Workers:              8,
		Log:                  log.With().Str("component", "scheduler").Logger(),
	}
}

// TickResult summarizes one invocation for logging/metrics/tests.
type TickResult struct {
	SubwindowsProcessed int
	DataLoss            bool
}

// Tick runs one scheduler invocation against `now`. It never advances the persisted pointer past a sub-window whose
// processing failed with a transient or fatal error; the next Tick will
// retry that sub-window.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) (TickResult, error) {
	var result TickResult

	ts, err := s.Store.TaskSettings().Get(ctx, TaskName)
	if err != nil {
		return result, fmt.Errorf("%w: reading task settings: %v", detecterr.ErrTransient, err)
	}
	if ts == nil {
		// First-ever invocation: bootstrap a proper Slide-wide pointer
		// just behind "now" so the loop below reaches steady state on
		// this same Tick instead of requiring a throwaway first call.
		bootstrapEnd := now.Add(-s.Slide - time.Minute)
		bootstrapStart := bootstrapEnd.Add(-s.Slide)
		seeded := domain.TaskSettings{TaskName: TaskName, StartDate: bootstrapStart, EndDate: bootstrapEnd}
		if err := s.Store.TaskSettings().Upsert(ctx, seeded); err != nil {
			return result, fmt.Errorf("%w: seeding task settings: %v", detecterr.ErrTransient, err)
		}
		ts = &seeded
	}

	cfg, err := s.Store.Config().Get(ctx)
	if err != nil {
		return result, fmt.Errorf("%w: reading config: %v", detecterr.ErrTransient, err)
	}
	if cfg.AlertIsVIPOnly && len(cfg.VIPUsers) == 0 {
		s.Log.Warn().Err(detecterr.ErrConfigInvariant).
			Msg("alert_is_vip_only is true with an empty vip_users set; treating as false for this invocation")
		cfg.AlertIsVIPOnly = false
	}
	snapshot := filter.NewSnapshot(cfg)

	current := *ts
	for i := 0; i < s.MaxSubwindowsPerTick; i++ {
		lag := now.Sub(current.EndDate)
		if lag >= s.DataLossThreshold {
			newEnd := now.Add(-time.Minute)
			newStart := newEnd.Add(-s.Slide)
			current = domain.TaskSettings{TaskName: TaskName, StartDate: newStart, EndDate: newEnd}
			if err := s.Store.TaskSettings().Upsert(ctx, current); err != nil {
				return result, fmt.Errorf("%w: persisting reset pointer: %v", detecterr.ErrTransient, err)
			}
			result.DataLoss = true
			telemetry.SchedulerDataLossTotal.Inc()
			s.Log.Warn().
				Err(detecterr.ErrDataLoss).
				Dur("lag", lag).
				Time("new_start", newStart).
				Time("new_end", newEnd).
				Msg("scheduler data loss: pointer lag exceeded threshold, window reset")
			return result, nil
		}

		newStart := current.StartDate.Add(s.Slide)
		newEnd := current.EndDate.Add(s.Slide)

		subCtx, cancel := context.WithTimeout(ctx, s.SubwindowDeadline)
		err := s.processSubwindow(subCtx, newStart, newEnd, snapshot)
		cancel()
		if err != nil {
			return result, err
		}

		current = domain.TaskSettings{TaskName: TaskName, StartDate: newStart, EndDate: newEnd}
		if err := s.Store.TaskSettings().Upsert(ctx, current); err != nil {
			return result, fmt.Errorf("%w: persisting advanced pointer: %v", detecterr.ErrTransient, err)
		}
		result.SubwindowsProcessed++
		telemetry.SchedulerSubwindowsProcessed.Inc()

		// Stop once the pointer has caught up to within one slide of
		// "now minus the ingestion delay".
		if now.Add(-time.Minute).Sub(current.EndDate) < s.Slide {
			break
		}
	}

	telemetry.SchedulerLagSeconds.Set(now.Sub(current.EndDate).Seconds())
	return result, nil
}

// processSubwindow fetches every event in [start, end), groups it by
// username, and fans the per-user batches out over a sharded worker pool
// so processing is parallel-per-user, sequential-per-user.
// Only a transient or fatal per-user failure fails the sub-window as a
// whole (blocking pointer advancement); malformed events are skipped
// inside Processor.ProcessUser, and a batch whose only failures were
// malformed events is counted in telemetry, not treated as a failure.
func (s *Scheduler) processSubwindow(ctx context.Context, start, end time.Time, snapshot filter.Snapshot) error {
	events, err := s.Events.FetchEvents(ctx, start, end)
	if err != nil {
		return fmt.Errorf("%w: fetching events for [%s, %s): %v", detecterr.ErrTransient, start, end, err)
	}

	byUser := map[string][]logsource.Event{}
	for _, e := range events {
		byUser[e.Username] = append(byUser[e.Username], e)
	}

	if s.Users != nil {
		usernames, err := s.Users.ListUsernames(ctx)
		if err != nil {
			return fmt.Errorf("%w: listing users: %v", detecterr.ErrTransient, err)
		}
		for _, u := range usernames {
			if _, ok := byUser[u]; !ok {
				byUser[u] = nil
			}
		}
	}

	shards := s.Workers
	if shards < 1 {
		shards = 1
	}

	pool := workerpool.New(ctx, shards, func(j workerpool.Job, err error) {
		s.Log.Error().Err(err).Str("user", j.Key).Msg("processing sub-window for user failed")
	})

	for username, userEvents := range byUser {
		if len(userEvents) == 0 {
			continue
		}
		username, userEvents := username, userEvents
		pool.Submit(workerpool.Job{
			Key: username,
			Run: func(ctx context.Context) error {
				err := s.Processor.ProcessUser(ctx, username, userEvents, snapshot)
				telemetry.EventsProcessedTotal.Add(float64(len(userEvents)))
				if err != nil && errors.Is(err, detecterr.ErrMalformedEvent) {
					telemetry.EventsMalformedTotal.Inc()
					return nil
				}
				return err
			},
		})
	}
	for _, err := range pool.CloseAndWait() {
		if errors.Is(err, detecterr.ErrTransient) || errors.Is(err, detecterr.ErrFatal) {
			return err
		}
	}
	return nil
}
