package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"Gin_postgres_redis_tool_booking/cache"
	"Gin_postgres_redis_tool_booking/db"
	"Gin_postgres_redis_tool_booking/models"
	"Gin_postgres_redis_tool_booking/timeutil"
)

type fakeLocker struct {
	held bool
	err  error
}

func (f *fakeLocker) TryLock(context.Context, string, time.Duration) (func(), bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	if f.held {
		return nil, false, nil
	}
	f.held = true
	return func() { f.held = false }, true, nil
}

func TestRunOnceSkipsWhileRunning(t *testing.T) {
	s := New(time.UTC, nil)
	entered := make(chan struct{})
	unblock := make(chan struct{})
	task := &Task{Name: "slow", Timeout: time.Minute, Run: func(context.Context) error {
		close(entered)
		<-unblock
		return nil
	}}

	var wg sync.WaitGroup
	var first Outcome
	wg.Add(1)
	go func() {
		defer wg.Done()
		first = s.RunOnce(context.Background(), task)
	}()
	<-entered

	if got := s.RunOnce(context.Background(), task); got != Skipped {
		t.Errorf("expected overlapping run to be skipped, got %v", got)
	}
	close(unblock)
	wg.Wait()
	if first != Ran {
		t.Errorf("expected first run to complete, got %v", first)
	}
}

func TestRunOnceRecoversErrorsAndPanics(t *testing.T) {
	s := New(time.UTC, nil)
	failing := &Task{Name: "err", Timeout: time.Second, Run: func(context.Context) error { return errors.New("boom") }}
	panicking := &Task{Name: "panic", Timeout: time.Second, Run: func(context.Context) error { panic("boom") }}

	if got := s.RunOnce(context.Background(), failing); got != Failed {
		t.Errorf("expected failed, got %v", got)
	}
	if got := s.RunOnce(context.Background(), panicking); got != Failed {
		t.Errorf("expected failed after panic, got %v", got)
	}
	// the guard is released after a panic
	if got := s.RunOnce(context.Background(), panicking); got != Failed {
		t.Errorf("expected the task to run again, got %v", got)
	}
}

func TestRunOnceHonoursLocker(t *testing.T) {
	lock := &fakeLocker{}
	s := New(time.UTC, lock)
	runs := 0
	task := &Task{Name: "locked", Timeout: time.Second, Run: func(context.Context) error { runs++; return nil }}

	if got := s.RunOnce(context.Background(), task); got != Ran {
		t.Fatalf("expected ran, got %v", got)
	}
	if lock.held {
		t.Error("expected lease released after the pass")
	}

	lock.held = true
	if got := s.RunOnce(context.Background(), task); got != Skipped {
		t.Errorf("expected skip while another replica holds the lease, got %v", got)
	}
	lock.held, lock.err = false, errors.New("redis down")
	if got := s.RunOnce(context.Background(), task); got != Skipped {
		t.Errorf("expected skip when the lock backend fails, got %v", got)
	}
	if runs != 1 {
		t.Errorf("expected exactly one run, got %d", runs)
	}
}

func TestAddRejectsBadSpec(t *testing.T) {
	s := New(time.UTC, nil)
	err := s.Add(&Task{Name: "bad", Spec: "every now and then", Run: func(context.Context) error { return nil }})
	if err == nil {
		t.Fatal("expected an error for an invalid spec")
	}
	if err := s.Add(&Task{Name: "ok", Spec: Every(30 * time.Second), Run: func(context.Context) error { return nil }}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if len(s.Tasks()) != 1 {
		t.Errorf("expected one registered task, got %d", len(s.Tasks()))
	}
}

func TestReconcilersRepairDrift(t *testing.T) {
	repo := db.NewTestRepo(t)
	ctx := context.Background()
	clock := timeutil.NewFakeClock(time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC))

	user := repo.MustCreateUser(t, "alice", models.RoleUser)
	active := repo.MustCreateTool(t, "T1")
	stale := repo.MustCreateTool(t, "T2")
	quiet := repo.MustCreateTool(t, "T3")

	if _, err := repo.CreateReservation(ctx, db.NewReservation{
		UserID: user.ID, ToolID: active.ID,
		Start: time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 1, 3, 8, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("CreateReservation: %v", err)
	}
	// drift: T1 should be borrowed, T2 should not
	repo.DB.Model(&models.Tool{}).Where("id = ?", stale.ID).Update("borrowed", true)

	tasks := Reconcilers(repo, nil, clock, Intervals{FastSync: 30 * time.Second, FullReset: 10 * time.Minute})
	if len(tasks) != 2 {
		t.Fatalf("expected fast sync and full reset only, got %d tasks", len(tasks))
	}
	s := New(time.UTC, cache.NewLocal(clock.Now))

	if got := s.RunOnce(ctx, tasks[0]); got != Ran {
		t.Fatalf("fast sync: %v", got)
	}
	for _, tc := range []struct {
		tool *models.Tool
		want bool
	}{{active, true}, {stale, false}, {quiet, false}} {
		got, _ := repo.FindToolByID(ctx, tc.tool.ID)
		if got.Borrowed != tc.want {
			t.Errorf("%s: expected borrowed=%v after fast sync", tc.tool.Code, tc.want)
		}
	}

	// after the window ends only the full pass is guaranteed to see it
	clock.Set(time.Date(2025, 1, 4, 0, 0, 0, 0, time.UTC))
	if got := s.RunOnce(ctx, tasks[1]); got != Ran {
		t.Fatalf("full reset: %v", got)
	}
	got, _ := repo.FindToolByID(ctx, active.ID)
	if got.Borrowed {
		t.Error("expected T1 released by the full reset")
	}
}
