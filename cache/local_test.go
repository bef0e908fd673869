package cache

import (
	"context"
	"testing"
	"time"
)

func TestLocalTryLock(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLocal(func() time.Time { return now })
	ctx := context.Background()

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

	// an expired lease can be taken over
	now = now.Add(2 * time.Minute)
	if _, ok, _ := l.TryLock(ctx, "fast-sync", time.Minute); !ok {
		t.Fatal("expected TryLock to succeed after expiry")
	}
}

func TestLocalAllow(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLocal(func() time.Time { return now })
	ctx := context.Background()

	if ok, _ := l.Allow(ctx, "purge", time.Minute); !ok {
		t.Fatal("first call should be allowed")
	}
	if ok, _ := l.Allow(ctx, "purge", time.Minute); ok {
		t.Fatal("second call within the period should be throttled")
	}
	now = now.Add(time.Minute)
	if ok, _ := l.Allow(ctx, "purge", time.Minute); !ok {
		t.Fatal("call after the period should be allowed")
	}
}
