// Package booking is the reservation lifecycle: permission gating, time
// parsing and the create/edit/delete/return flows, each of which commits
// the reservation change and the tool status refresh together.
package booking

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"Gin_postgres_redis_tool_booking/apperr"
	"Gin_postgres_redis_tool_booking/db"
	"Gin_postgres_redis_tool_booking/models"
	"Gin_postgres_redis_tool_booking/timeutil"
)

// PermissionResolver answers permissionValue(userId, key).
type PermissionResolver interface {
	PermissionValue(ctx context.Context, userID, key string) (models.PermissionValue, error)
}

// Throttle lets an action run at most once per period across replicas.
type Throttle interface {
	Allow(ctx context.Context, name string, period time.Duration) (bool, error)
}

// Caller is the resolved identity of a request. A nil *Caller is an
// unauthenticated request.
type Caller struct {
	UserID   string
	Username string
	Role     string
}

type Options struct {
	Location      *time.Location
	RetentionDays int
	GuestCode     *regexp.Regexp
	PurgeThrottle time.Duration
	// UpcomingLimit caps the upcoming reservations in a tool info view.
	UpcomingLimit int
}

type Manager struct {
	repo     *db.Repo
	perms    PermissionResolver
	throttle Throttle
	clock    timeutil.Clock
	opts     Options
	log      *slog.Logger
}

func NewManager(repo *db.Repo, perms PermissionResolver, throttle Throttle, clock timeutil.Clock, opts Options) *Manager {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.RetentionDays <= 0 {
		opts.RetentionDays = 90
	}
	if opts.UpcomingLimit <= 0 {
		opts.UpcomingLimit = 2
	}
	if clock == nil {
		clock = timeutil.Real()
	}
	return &Manager{
		repo:     repo,
		perms:    perms,
		throttle: throttle,
		clock:    clock,
		opts:     opts,
		log:      slog.Default().With("component", "booking"),
	}
}

func (m *Manager) now() time.Time { return timeutil.Canonical(m.clock.Now()) }

func requireCaller(c *Caller) error {
	if c == nil || c.UserID == "" {
		return fmt.Errorf("%w: login required", apperr.ErrUnauthorized)
	}
	return nil
}

// gate resolves the caller's scope for key and rejects "false".
func (m *Manager) gate(ctx context.Context, c *Caller, key string) (models.PermissionValue, error) {
	if err := requireCaller(c); err != nil {
		return models.PermFalse, err
	}
	v, err := m.perms.PermissionValue(ctx, c.UserID, key)
	if err != nil {
		return models.PermFalse, fmt.Errorf("%w: resolving permission: %v", apperr.ErrInternal, err)
	}
	if v == models.PermFalse {
		return v, fmt.Errorf("%w: missing permission %s", apperr.ErrForbidden, key)
	}
	return v, nil
}

// requireOwner enforces self_only against the owner of a resource.
func requireOwner(v models.PermissionValue, c *Caller, ownerID string) error {
	if v == models.PermSelfOnly && ownerID != c.UserID {
		return fmt.Errorf("%w: only your own reservations", apperr.ErrForbidden)
	}
	return nil
}

func (m *Manager) parseTime(field, raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("%w: %s is required", apperr.ErrValidation, field)
	}
	t, err := timeutil.ToUTCInstant(raw, m.opts.Location)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", field, err)
	}
	return t, nil
}

// audit appends to the activity log. Failures are logged and dropped.
func (m *Manager) audit(ctx context.Context, userID, action, details string) {
	var uid *string
	if userID != "" {
		uid = &userID
	}
	if _, err := m.repo.LogActivity(ctx, uid, action, details); err != nil {
		m.log.Warn("activity log write failed", "action", action, "error", err)
	}
}

// refresh recomputes the borrowed flag of each tool inside tx, taking the
// tool locks in db.LockOrder.
func refresh(ctx context.Context, tx *db.Repo, now time.Time, toolIDs ...string) error {
	for _, id := range db.LockOrder(toolIDs...) {
		if _, err := tx.RefreshTool(ctx, id, now); err != nil {
			return err
		}
	}
	return nil
}
