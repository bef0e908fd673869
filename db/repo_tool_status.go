package db

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"Gin_postgres_redis_tool_booking/apperr"
	"Gin_postgres_redis_tool_booking/models"
	"Gin_postgres_redis_tool_booking/timeutil"
)

// The borrowed column on tools is a projection of the reservations table:
// a tool is borrowed iff one of its reservations covers now. Everything in
// this file derives it; nothing else writes it.

func (r *Repo) IsCurrentlyBorrowed(ctx context.Context, toolID string, now time.Time) (bool, error) {
	now = timeutil.Canonical(now)
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.Reservation{}).
		Where("tool_id = ? AND start_time <= ? AND end_time > ?", toolID, now, now).
		Count(&n).Error
	return n > 0, err
}

// RefreshTool recomputes the borrowed flag of one tool and writes it only
// when it differs from the stored value.
func (r *Repo) RefreshTool(ctx context.Context, toolID string, now time.Time) (changed bool, err error) {
	err = r.Transaction(ctx, func(tx *Repo) error {
		tool, err := tx.lockTool(ctx, toolID)
		if err != nil {
			return err
		}
		borrowed, err := tx.IsCurrentlyBorrowed(ctx, tool.ID, now)
		if err != nil {
			return err
		}
		if borrowed == tool.Borrowed {
			return nil
		}
		if err := tx.DB.WithContext(ctx).Model(&models.Tool{}).
			Where("id = ?", tool.ID).
			Update("borrowed", borrowed).Error; err != nil {
			return err
		}
		changed = true
		return nil
	})
	return changed, err
}

// RefreshTools refreshes each distinct id once. Unknown tools are skipped;
// other failures are collected and do not stop the remaining tools.
func (r *Repo) RefreshTools(ctx context.Context, toolIDs []string, now time.Time) (RefreshReport, error) {
	ids := LockOrder(toolIDs...)
	rep := RefreshReport{}
	var errs []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		changed, err := r.RefreshTool(ctx, id, now)
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			continue
		case err != nil:
			rep.Failed = append(rep.Failed, id)
			errs = append(errs, fmt.Errorf("tool %s: %w", id, err))
			continue
		}
		rep.Checked++
		if changed {
			rep.Changed++
		}
	}
	return rep, errors.Join(errs...)
}

type RefreshReport struct {
	Checked int      `json:"checked"`
	Changed int      `json:"changed"`
	Failed  []string `json:"failed,omitempty"`
}

// RefreshAll recomputes the flag for every tool.
func (r *Repo) RefreshAll(ctx context.Context, now time.Time) (RefreshReport, error) {
	var ids []string
	if err := r.DB.WithContext(ctx).Model(&models.Tool{}).Order("id").Pluck("id", &ids).Error; err != nil {
		return RefreshReport{}, err
	}
	return r.RefreshTools(ctx, ids, now)
}

// RefreshAffectedByActiveReservations covers the tools that can be stale
// cheaply: those with a reservation covering now, and those still flagged.
func (r *Repo) RefreshAffectedByActiveReservations(ctx context.Context, now time.Time) (RefreshReport, error) {
	cnow := timeutil.Canonical(now)
	var active, flagged []string
	if err := r.DB.WithContext(ctx).Model(&models.Reservation{}).
		Where("start_time <= ? AND end_time > ?", cnow, cnow).
		Distinct("tool_id").
		Pluck("tool_id", &active).Error; err != nil {
		return RefreshReport{}, err
	}
	if err := r.DB.WithContext(ctx).Model(&models.Tool{}).
		Where("borrowed = ?", true).
		Pluck("id", &flagged).Error; err != nil {
		return RefreshReport{}, err
	}
	return r.RefreshTools(ctx, append(active, flagged...), now)
}

// LockOrder drops empty and repeated ids and sorts the rest. Tool rows are
// always locked in this order.
func LockOrder(ids ...string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
