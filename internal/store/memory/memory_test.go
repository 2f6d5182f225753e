package memory

import (
	"context"
	"testing"
	"time"

	"github.com/gokaycavdar/go-authguard/internal/domain"
)

func TestLoginRepo_UpsertByKeyAndMostRecentBefore(t *testing.T) {
	ctx := context.Background()
	s := New()

	t1 := time.Now().Add(-time.Hour)
	t2 := time.Now()

	if err := s.Logins().UpsertByKey(ctx, domain.Login{
		Username: "bob", Timestamp: t1, Country: "US", UserAgent: "ua", Index: "0", Updated: t1,
	}); err != nil {
		t.Fatalf("UpsertByKey: %v", err)
	}

	got, err := s.Logins().MostRecentBefore(ctx, "bob", t2)
	if err != nil {
		t.Fatalf("MostRecentBefore: %v", err)
	}
	if got == nil || !got.Timestamp.Equal(t1) {
		t.Fatalf("MostRecentBefore() = %+v, want timestamp %v", got, t1)
	}

	// Upsert on the same key refreshes, does not duplicate.
	if err := s.Logins().UpsertByKey(ctx, domain.Login{
		Username: "bob", Timestamp: t2, Country: "US", UserAgent: "ua", Index: "0", Updated: t2,
	}); err != nil {
		t.Fatalf("UpsertByKey: %v", err)
	}
	got, err = s.Logins().MostRecentBefore(ctx, "bob", t2.Add(time.Minute))
	if err != nil {
		t.Fatalf("MostRecentBefore: %v", err)
	}
	if got == nil || !got.Timestamp.Equal(t2) {
		t.Fatalf("MostRecentBefore() after refresh = %+v, want timestamp %v", got, t2)
	}
}

func TestUsersIPRepo_ExistsAndUpsert(t *testing.T) {
	ctx := context.Background()
	s := New()

	exists, err := s.UsersIPs().Exists(ctx, "bob", "1.2.3.4")
	if err != nil || exists {
		t.Fatalf("Exists() = %v, %v, want false, nil", exists, err)
	}

	if err := s.UsersIPs().Upsert(ctx, "bob", "1.2.3.4", time.Now()); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	exists, err = s.UsersIPs().Exists(ctx, "bob", "1.2.3.4")
	if err != nil || !exists {
		t.Fatalf("Exists() = %v, %v, want true, nil", exists, err)
	}
}

func TestAlertRepo_CountUnfiltered(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now()

	_ = s.Alerts().Insert(ctx, domain.Alert{Username: "bob", Updated: now})
	_ = s.Alerts().Insert(ctx, domain.Alert{Username: "bob", IsFiltered: true, Updated: now})
	_ = s.Alerts().Insert(ctx, domain.Alert{Username: "alice", Updated: now})

	n, err := s.Alerts().CountUnfiltered(ctx, "bob", now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("CountUnfiltered: %v", err)
	}
	if n != 1 {
		t.Errorf("CountUnfiltered() = %d, want 1", n)
	}
}

func TestUserRepo_TouchAndListUsernamesWithActivity(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now()

	if _, err := s.Users().Touch(ctx, "bob", now); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	_ = s.Logins().UpsertByKey(ctx, domain.Login{Username: "alice", Timestamp: now, Updated: now})

	names, err := s.Users().ListUsernamesWithActivity(ctx)
	if err != nil {
		t.Fatalf("ListUsernamesWithActivity: %v", err)
	}
	if len(names) != 1 || names[0] != "alice" {
		t.Errorf("ListUsernamesWithActivity() = %v, want [alice] (bob has no Login/Alert/UsersIP)", names)
	}
}
