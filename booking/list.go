package booking

import (
	"context"
	"strings"
	"time"

	"Gin_postgres_redis_tool_booking/db"
	"Gin_postgres_redis_tool_booking/models"
)

const purgeThrottleKey = "reservations:purge"

type ListInput struct {
	Tool string // optional id or code
}

// List returns active and upcoming reservations ordered by start. Expired
// reservations past retention are purged first so the view never shows
// them. Callers without view_all_reservations only see their own.
func (m *Manager) List(ctx context.Context, c *Caller, in ListInput) ([]db.ReservationRow, error) {
	if err := requireCaller(c); err != nil {
		return nil, err
	}

	m.purgeThrottled(ctx)

	now := m.now()
	f := db.ReservationFilter{EndingAfter: &now}
	if in.Tool != "" {
		tool, err := m.repo.FindTool(ctx, strings.TrimSpace(in.Tool))
		if err != nil {
			return nil, err
		}
		f.ToolID = tool.ID
	}
	viewAll, err := m.perms.PermissionValue(ctx, c.UserID, models.PermViewAllReservations)
	if err != nil {
		return nil, err
	}
	if viewAll != models.PermTrue {
		f.UserID = c.UserID
	}

	rows, err := m.repo.ListReservations(ctx, f)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []db.ReservationRow{}
	}
	return rows, nil
}

type PurgeResult struct {
	Purged int64            `json:"purged"`
	Tools  []string         `json:"tools"`
	Status db.RefreshReport `json:"status"`
}

// PurgeExpired deletes reservations that ended more than the retention
// period ago and refreshes the tools they belonged to.
func (m *Manager) PurgeExpired(ctx context.Context) (PurgeResult, error) {
	now := m.now()
	threshold := now.AddDate(0, 0, -m.opts.RetentionDays)
	n, tools, err := m.repo.PurgeExpiredBefore(ctx, threshold)
	if err != nil {
		return PurgeResult{}, err
	}
	out := PurgeResult{Purged: n, Tools: tools}
	if len(tools) == 0 {
		return out, nil
	}
	out.Status, err = m.repo.RefreshTools(ctx, tools, now)
	m.log.Info("purged expired reservations",
		"count", n, "tools", len(tools), "threshold", threshold.Format(time.RFC3339))
	return out, err
}

// purgeThrottled runs PurgeExpired at most once per throttle period. A
// throttle backend failure does not block the purge.
func (m *Manager) purgeThrottled(ctx context.Context) {
	if m.throttle != nil && m.opts.PurgeThrottle > 0 {
		ok, err := m.throttle.Allow(ctx, purgeThrottleKey, m.opts.PurgeThrottle)
		if err != nil {
			m.log.Warn("purge throttle unavailable", "error", err)
		} else if !ok {
			return
		}
	}
	if _, err := m.PurgeExpired(ctx); err != nil {
		m.log.Error("purge before list failed", "error", err)
	}
}

// ToolInfo is public: it backs the scan terminal.
func (m *Manager) ToolInfo(ctx context.Context, ref string) (*db.ToolInfo, error) {
	return m.repo.ToolInfo(ctx, strings.TrimSpace(ref), m.now(), m.opts.UpcomingLimit)
}

// AvailableTools lists tools free for the whole of [start, end).
func (m *Manager) AvailableTools(ctx context.Context, c *Caller, rawStart, rawEnd string) ([]models.Tool, error) {
	if _, err := m.gate(ctx, c, models.PermCreateReservations); err != nil {
		return nil, err
	}
	start, err := m.parseTime("start", rawStart)
	if err != nil {
		return nil, err
	}
	end, err := m.parseTime("end", rawEnd)
	if err != nil {
		return nil, err
	}
	tools, err := m.repo.AvailableTools(ctx, start, end)
	if err != nil {
		return nil, err
	}
	if tools == nil {
		tools = []models.Tool{}
	}
	return tools, nil
}

// Overview pages over every tool with the reservation holding it now.
func (m *Manager) Overview(ctx context.Context, c *Caller, q db.ToolsQuery) (*db.PagedTools, error) {
	if err := requireCaller(c); err != nil {
		return nil, err
	}
	return m.repo.ListToolsWithActiveReservation(ctx, m.now(), q)
}
