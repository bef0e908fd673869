// Package scheduler runs the recurring maintenance passes. Every pass is
// single-flight: a tick that arrives while the previous run is still going
// is skipped, and when a Locker is configured the pass is also skipped if
// another replica holds it.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// Locker hands out named leases shared between replicas.
type Locker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (release func(), ok bool, err error)
}

type Task struct {
	Name string
	// Spec is a cron spec in the scheduler's zone, or "@every <duration>".
	Spec string
	// Timeout bounds one run; it also sizes the replica lease.
	Timeout time.Duration
	Run     func(ctx context.Context) error

	running atomic.Bool
}

// Every returns the cron spec for a fixed interval.
func Every(d time.Duration) string { return "@every " + d.String() }

type Outcome int

const (
	Ran Outcome = iota
	Skipped
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Ran:
		return "ran"
	case Skipped:
		return "skipped"
	default:
		return "failed"
	}
}

type Scheduler struct {
	cron   *cron.Cron
	locker Locker
	log    *slog.Logger

	mu    sync.Mutex
	tasks []*Task
}

// New creates a scheduler that interprets cron specs in loc. locker may be
// nil for a single process.
func New(loc *time.Location, locker Locker) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(loc)),
		locker: locker,
		log:    slog.Default().With("component", "scheduler"),
	}
}

func (s *Scheduler) Add(t *Task) error {
	if t.Name == "" || t.Run == nil {
		return fmt.Errorf("scheduler: task needs a name and a run func")
	}
	if t.Timeout <= 0 {
		t.Timeout = time.Minute
	}
	if _, err := s.cron.AddFunc(t.Spec, func() { s.RunOnce(context.Background(), t) }); err != nil {
		return fmt.Errorf("scheduler: task %s: bad spec %q: %w", t.Name, t.Spec, err)
	}
	s.mu.Lock()
	s.tasks = append(s.tasks, t)
	s.mu.Unlock()
	s.log.Info("task scheduled", "task", t.Name, "spec", t.Spec)
	return nil
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the ticks and waits for running passes until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out with passes still running")
	}
}

// RunOnce executes one pass of t now, honouring the skip rules. Errors and
// panics in the pass are logged and reported as Failed.
func (s *Scheduler) RunOnce(ctx context.Context, t *Task) (out Outcome) {
	if !t.running.CompareAndSwap(false, true) {
		s.log.Debug("pass skipped, previous run still active", "task", t.Name)
		return Skipped
	}
	defer t.running.Store(false)

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if s.locker != nil {
		release, ok, err := s.locker.TryLock(ctx, "scheduler:"+t.Name, timeout)
		if err != nil {
			s.log.Warn("pass skipped, lock unavailable", "task", t.Name, "error", err)
			return Skipped
		}
		if !ok {
			s.log.Debug("pass skipped, held by another replica", "task", t.Name)
			return Skipped
		}
		defer release()
	}

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("pass panicked", "task", t.Name, "panic", r)
			out = Failed
		}
	}()

	start := time.Now()
	s.log.Debug("pass started", "task", t.Name)
	if err := t.Run(ctx); err != nil {
		s.log.Error("pass failed", "task", t.Name, "error", err, "took", time.Since(start))
		return Failed
	}
	s.log.Debug("pass finished", "task", t.Name, "took", time.Since(start))
	return Ran
}

// Tasks returns the registered tasks in insertion order.
func (s *Scheduler) Tasks() []*Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Task(nil), s.tasks...)
}
