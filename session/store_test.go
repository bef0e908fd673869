package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type storeCase struct {
	name    string
	store   Store
	advance func(time.Duration)
}

// storeCases returns every Store backend with a way to move its clock.
func storeCases(t *testing.T, ttl time.Duration) []storeCase {
	t.Helper()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	mem := NewMemoryStore(ttl, func() time.Time { return now })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return []storeCase{
		{name: "memory", store: mem, advance: func(d time.Duration) { now = now.Add(d) }},
		{name: "redis", store: NewAppSessionStore(rdb, ttl), advance: mr.FastForward},
	}
}

func TestStoreContract(t *testing.T) {
	for _, tc := range storeCases(t, time.Hour) {
		t.Run(tc.name, func(t *testing.T) {
			s := tc.store
			ctx := context.Background()

			for _, in := range []struct{ id, uid, role string }{
				{"a", "u1", "user"}, {"b", "u1", "user"}, {"c", "u2", "admin"},
			} {
				if err := s.Create(ctx, in.id, in.uid, in.role); err != nil {
					t.Fatalf("Create %s: %v", in.id, err)
				}
			}

			as, err := s.Get(ctx, "c")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if as.UserID != "u2" || as.Role != "admin" || as.ExpiresAt-as.IssuedAt != int64(time.Hour/time.Second) {
				t.Errorf("unexpected session %+v", as)
			}
			if _, err := s.Get(ctx, "nope"); !errors.Is(err, ErrNoSession) {
				t.Errorf("unknown id: expected ErrNoSession, got %v", err)
			}

			if err := s.Delete(ctx, "a"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if _, err := s.Get(ctx, "a"); !errors.Is(err, ErrNoSession) {
				t.Errorf("expected ErrNoSession after delete, got %v", err)
			}
			if err := s.Delete(ctx, "a"); err != nil {
				t.Errorf("deleting twice: %v", err)
			}

			if err := s.RevokeAllForUser(ctx, "u1"); err != nil {
				t.Fatalf("RevokeAllForUser: %v", err)
			}
			if _, err := s.Get(ctx, "b"); !errors.Is(err, ErrNoSession) {
				t.Errorf("expected b revoked, got %v", err)
			}
			if _, err := s.Get(ctx, "c"); err != nil {
				t.Errorf("u2's session should survive: %v", err)
			}
			if err := s.RevokeAllForUser(ctx, "ghost"); err != nil {
				t.Errorf("revoking a user without sessions: %v", err)
			}

			tc.advance(59 * time.Minute)
			if _, err := s.Get(ctx, "c"); err != nil {
				t.Errorf("session expired early: %v", err)
			}
			tc.advance(time.Minute)
			if _, err := s.Get(ctx, "c"); !errors.Is(err, ErrNoSession) {
				t.Errorf("expected c expired after the ttl, got %v", err)
			}
		})
	}
}

func TestAppSessionStoreKeys(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	s := NewAppSessionStore(rdb, 30*time.Minute)
	ctx := context.Background()

	if err := s.Create(ctx, "jti-1", "u1", "user"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !mr.Exists("booking:sess:jti-1") {
		t.Fatal("expected the session under booking:sess:<id>")
	}
	if got := mr.TTL("booking:sess:jti-1"); got != 30*time.Minute {
		t.Errorf("expected session ttl 30m, got %v", got)
	}
	members, err := mr.Members("booking:user_sessions:u1")
	if err != nil || len(members) != 1 || members[0] != "jti-1" {
		t.Errorf("expected jti-1 in the user's index, got %v %v", members, err)
	}
	if got := mr.TTL("booking:user_sessions:u1"); got != 30*time.Minute {
		t.Errorf("expected index ttl 30m, got %v", got)
	}

	if err := s.Delete(ctx, "jti-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if mr.Exists("booking:sess:jti-1") {
		t.Error("session key must be gone after delete")
	}
	if members, _ := mr.Members("booking:user_sessions:u1"); len(members) != 0 {
		t.Errorf("expected the index emptied, got %v", members)
	}
}
