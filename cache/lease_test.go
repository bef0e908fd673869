package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// leases is what the scheduler and the purge throttle use from a backend.
type leases interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (func(), bool, error)
	Allow(ctx context.Context, name string, period time.Duration) (bool, error)
}

type leaseCase struct {
	name    string
	backend leases
	advance func(time.Duration)
}

func leaseCases(t *testing.T) []leaseCase {
	t.Helper()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return []leaseCase{
		{name: "local", backend: NewLocal(func() time.Time { return now }), advance: func(d time.Duration) { now = now.Add(d) }},
		{name: "redis", backend: NewCache(rdb, "booking:"), advance: mr.FastForward},
	}
}

func TestTryLockContract(t *testing.T) {
	for _, tc := range leaseCases(t) {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			l := tc.backend

			release, ok, err := l.TryLock(ctx, "fast-sync", time.Minute)
			if err != nil || !ok {
				t.Fatalf("first TryLock: ok=%v err=%v", ok, err)
			}
			if _, ok, _ := l.TryLock(ctx, "fast-sync", time.Minute); ok {
				t.Fatal("expected second TryLock to fail while held")
			}
			if _, ok, _ := l.TryLock(ctx, "full-reset", time.Minute); !ok {
				t.Fatal("locks with different names are independent")
			}
			release()
			if _, ok, _ := l.TryLock(ctx, "fast-sync", time.Minute); !ok {
				t.Fatal("expected TryLock to succeed after release")
			}

			// a holder whose lease ran out must not free its successor's
			stale, ok, _ := l.TryLock(ctx, "purge", time.Minute)
			if !ok {
				t.Fatal("TryLock purge")
			}
			tc.advance(2 * time.Minute)
			if _, ok, _ := l.TryLock(ctx, "purge", time.Minute); !ok {
				t.Fatal("expected an expired lease to be taken over")
			}
			stale()
			if _, ok, _ := l.TryLock(ctx, "purge", time.Minute); ok {
				t.Error("stale release freed the new holder's lease")
			}
		})
	}
}

func TestAllowContract(t *testing.T) {
	for _, tc := range leaseCases(t) {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			l := tc.backend

			if ok, err := l.Allow(ctx, "purge", time.Minute); err != nil || !ok {
				t.Fatalf("first call should be allowed: ok=%v err=%v", ok, err)
			}
			if ok, _ := l.Allow(ctx, "purge", time.Minute); ok {
				t.Fatal("second call within the period should be throttled")
			}
			if ok, _ := l.Allow(ctx, "other", time.Minute); !ok {
				t.Fatal("throttles with different names are independent")
			}
			tc.advance(time.Minute)
			if ok, _ := l.Allow(ctx, "purge", time.Minute); !ok {
				t.Fatal("call after the period should be allowed")
			}
		})
	}
}

func TestCacheKeys(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	c := NewCache(rdb, "booking:")
	ctx := context.Background()

	release, ok, err := c.TryLock(ctx, "scheduler:fast-sync", 45*time.Second)
	if err != nil || !ok {
		t.Fatalf("TryLock: ok=%v err=%v", ok, err)
	}
	if got := mr.TTL("booking:lock:scheduler:fast-sync"); got != 45*time.Second {
		t.Errorf("expected lease ttl 45s, got %v", got)
	}
	release()
	if mr.Exists("booking:lock:scheduler:fast-sync") {
		t.Error("lease key must be gone after release")
	}

	if _, err := c.Allow(ctx, "purge", time.Minute); err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if got := mr.TTL("booking:throttle:purge"); got != time.Minute {
		t.Errorf("expected throttle ttl 1m, got %v", got)
	}

	mr.Close()
	if _, _, err := c.TryLock(ctx, "scheduler:full-reset", time.Second); err == nil {
		t.Error("expected an error with redis down")
	}
}
