package cache

import (
	"context"
	"sync"
	"time"
)

// Local is the single-process stand-in for Cache, used in tests and when
// the backend runs without redis.
type Local struct {
	mu    sync.Mutex
	now   func() time.Time
	locks map[string]time.Time
	marks map[string]time.Time
}

func NewLocal(now func() time.Time) *Local {
	if now == nil {
		now = time.Now
	}
	return &Local{now: now, locks: map[string]time.Time{}, marks: map[string]time.Time{}}
}

func (l *Local) TryLock(_ context.Context, name string, ttl time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if until, held := l.locks[name]; held && now.Before(until) {
		return nil, false, nil
	}
	until := now.Add(ttl)
	l.locks[name] = until
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.locks[name].Equal(until) {
			delete(l.locks, name)
		}
	}, true, nil
}

func (l *Local) Allow(_ context.Context, name string, period time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if until, ok := l.marks[name]; ok && now.Before(until) {
		return false, nil
	}
	l.marks[name] = now.Add(period)
	return true, nil
}
