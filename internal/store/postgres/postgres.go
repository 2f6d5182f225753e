// Package postgres is the production store.Store backend: every
// repository backed by raw SQL with $N placeholders over a single
// shared pgxpool.Pool, scanned by hand rather than through a generated
// query layer.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gokaycavdar/go-authguard/internal/store"
)

// Store implements store.Store against a Postgres database.
type Store struct {
	pool *pgxpool.Pool
}

// Connect dials Postgres and returns a ready Store. Callers are
// responsible for calling Close when done.
func Connect(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// New wraps an already-constructed pool, for callers that manage pool
// lifecycle themselves (tests, or a shared pool across services).
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Users() store.UserRepo                { return userRepo{s.pool} }
func (s *Store) Logins() store.LoginRepo              { return loginRepo{s.pool} }
func (s *Store) UsersIPs() store.UsersIPRepo          { return usersIPRepo{s.pool} }
func (s *Store) Alerts() store.AlertRepo              { return alertRepo{s.pool} }
func (s *Store) Config() store.ConfigRepo             { return configRepo{s.pool} }
func (s *Store) TaskSettings() store.TaskSettingsRepo { return taskSettingsRepo{s.pool} }

// noRows reports whether err is pgx's not-found sentinel, the only
// "absent row" signal every repo below needs to special-case.
func noRows(err error) bool {
	return err != nil && err == pgx.ErrNoRows
}
