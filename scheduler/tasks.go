package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"Gin_postgres_redis_tool_booking/booking"
	"Gin_postgres_redis_tool_booking/db"
	"Gin_postgres_redis_tool_booking/timeutil"
)

const (
	FastSyncTask  = "fast-sync"
	FullResetTask = "full-reset"
	PurgeTask     = "purge-expired"
)

type Intervals struct {
	FastSync  time.Duration
	FullReset time.Duration
	// PurgeSpec is a cron spec; empty disables the nightly purge.
	PurgeSpec string
}

// Reconcilers builds the passes that keep the borrowed flags in line with
// the reservation table and enforce retention.
func Reconcilers(repo *db.Repo, mgr *booking.Manager, clock timeutil.Clock, iv Intervals) []*Task {
	if clock == nil {
		clock = timeutil.Real()
	}
	now := func() time.Time { return timeutil.Canonical(clock.Now()) }

	tasks := []*Task{
		{
			Name:    FastSyncTask,
			Spec:    Every(iv.FastSync),
			Timeout: iv.FastSync,
			Run: func(ctx context.Context) error {
				rep, err := repo.RefreshAffectedByActiveReservations(ctx, now())
				logReport(FastSyncTask, rep)
				return err
			},
		},
		{
			Name:    FullResetTask,
			Spec:    Every(iv.FullReset),
			Timeout: iv.FullReset,
			Run: func(ctx context.Context) error {
				rep, err := repo.RefreshAll(ctx, now())
				logReport(FullResetTask, rep)
				return err
			},
		},
	}
	if iv.PurgeSpec != "" && mgr != nil {
		tasks = append(tasks, &Task{
			Name:    PurgeTask,
			Spec:    iv.PurgeSpec,
			Timeout: 10 * time.Minute,
			Run: func(ctx context.Context) error {
				res, err := mgr.PurgeExpired(ctx)
				if err != nil {
					return err
				}
				if len(res.Status.Failed) > 0 {
					return errors.New("purge: some tools could not be refreshed")
				}
				return nil
			},
		})
	}
	return tasks
}

func logReport(task string, rep db.RefreshReport) {
	if rep.Changed > 0 || len(rep.Failed) > 0 {
		slog.Info("borrowed flags reconciled",
			"task", task, "checked", rep.Checked, "changed", rep.Changed, "failed", len(rep.Failed))
	}
}

// Start registers tasks on a new scheduler and starts it.
func Start(loc *time.Location, locker Locker, tasks []*Task) (*Scheduler, error) {
	s := New(loc, locker)
	for _, t := range tasks {
		if err := s.Add(t); err != nil {
			return nil, err
		}
	}
	s.Start()
	return s, nil
}
