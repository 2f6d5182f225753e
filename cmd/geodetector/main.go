// geodetector is the anomaly-detection service binary. It wires the
// Postgres store, the Redis scheduler lease, and the three long-running
// loops (ingestion scheduler, risk aggregator, retention cleaner), then
// blocks until SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokaycavdar/go-authguard/internal/appconfig"
	"github.com/gokaycavdar/go-authguard/internal/leaser"
	"github.com/gokaycavdar/go-authguard/internal/logging"
	"github.com/gokaycavdar/go-authguard/internal/logsource/redisstream"
	"github.com/gokaycavdar/go-authguard/internal/process"
	"github.com/gokaycavdar/go-authguard/internal/retention"
	"github.com/gokaycavdar/go-authguard/internal/risk"
	"github.com/gokaycavdar/go-authguard/internal/scheduler"
	"github.com/gokaycavdar/go-authguard/internal/store/postgres"
	"github.com/gokaycavdar/go-authguard/internal/telemetry"
	usersourcestore "github.com/gokaycavdar/go-authguard/internal/usersource/store"
)

func main() {
	if err := run(); err != nil {
		log := logging.Logger()
		log.Fatal().Err(err).Msg("geodetector exited")
	}
}

func run() error {
	cfg, err := appconfig.Load()
	if err != nil {
		return err
	}

	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	log := logging.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer st.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("pinging redis: %w", err)
	}

	registry := prometheus.NewRegistry()
	for _, c := range telemetry.Registry {
		if err := registry.Register(c); err != nil {
			return fmt.Errorf("registering metrics: %w", err)
		}
	}
	go serveMetrics(cfg.MetricsAddr, registry, log)

	policy, err := st.Config().Get(ctx)
	if err != nil {
		return err
	}

	users := usersourcestore.New(st)
	processor := process.New(st, policy.VelocityMaxKmh)

	events := redisstream.New(rdb, cfg.EventStream)
	sched := scheduler.New(st, users, events, processor, log)
	sched.Slide = time.Duration(policy.SlideMinutes) * time.Minute
	sched.DataLossThreshold = time.Duration(policy.DataLossMinutes) * time.Minute
	sched.MaxSubwindowsPerTick = policy.MaxSubwindowsPerInvocation

	lease := leaser.New(rdb, time.Duration(cfg.LeaseDurationSeconds)*time.Second)
	aggregator := risk.New(st, users)
	cleaner := retention.New(st, policy.RetentionDays, log)
	cleaner.Interval = time.Duration(cfg.RetentionIntervalMinutes) * time.Minute

	go runScheduler(ctx, sched, lease, time.Duration(cfg.SchedulerIntervalSeconds)*time.Second, log)
	go runAggregator(ctx, aggregator, time.Duration(cfg.RiskAggregatorIntervalMinutes)*time.Minute, log)
	go func() {
		if err := cleaner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("retention cleaner stopped")
		}
	}()

	log.Info().
		Str("metrics_addr", cfg.MetricsAddr).
		Int("scheduler_interval_s", cfg.SchedulerIntervalSeconds).
		Msg("geodetector started")

	<-ctx.Done()
	log.Info().Msg("shutting down")
	return nil
}

// runScheduler invokes one scheduler Tick per interval, guarded by the
// Redis lease so overlapping invocations (slow tick, or a second
// replica) never run the same task concurrently.
func runScheduler(ctx context.Context, sched *scheduler.Scheduler, lease *leaser.Leaser, interval time.Duration, log zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		token := uuid.NewString()
		held, ok, err := lease.Acquire(ctx, scheduler.TaskName, token)
		if err != nil {
			log.Error().Err(err).Msg("acquiring scheduler lease")
			continue
		}
		if !ok {
			log.Debug().Msg("scheduler lease held elsewhere; skipping tick")
			continue
		}

		if _, err := sched.Tick(ctx, time.Now().UTC()); err != nil {
			log.Error().Err(err).Msg("scheduler tick failed; pointer not advanced")
		}

		if err := lease.Release(ctx, held); err != nil {
			if errors.Is(err, leaser.ErrNotHeld) {
				log.Warn().Msg("scheduler lease expired mid-tick")
			} else {
				log.Error().Err(err).Msg("releasing scheduler lease")
			}
		}
	}
}

func runAggregator(ctx context.Context, agg *risk.Aggregator, interval time.Duration, log zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := agg.UpdateAll(ctx, time.Now().UTC()); err != nil {
				log.Error().Err(err).Msg("risk aggregation pass failed")
			}
		}
	}
}

func serveMetrics(addr string, registry *prometheus.Registry, log zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Str("addr", addr).Msg("metrics server stopped")
	}
}
