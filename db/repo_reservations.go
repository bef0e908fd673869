package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"Gin_postgres_redis_tool_booking/apperr"
	"Gin_postgres_redis_tool_booking/models"
	"Gin_postgres_redis_tool_booking/timeutil"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrInvalidWindow = fmt.Errorf("%w: start must be before end", apperr.ErrValidation)

type NewReservation struct {
	UserID    string
	ToolID    string
	Start     time.Time
	End       time.Time
	Note      *string
	Confirmed bool
}

// ReservationPatch carries the fields an edit may change. Nil means
// unchanged; an empty Note clears it.
type ReservationPatch struct {
	ToolID *string
	Start  *time.Time
	End    *time.Time
	Note   *string
}

func (p ReservationPatch) Empty() bool {
	return p.ToolID == nil && p.Start == nil && p.End == nil && p.Note == nil
}

// conflictError names the first reservation that blocks the window.
func conflictError(tool *models.Tool, clash models.Reservation) error {
	return fmt.Errorf("%w: tool %s is already reserved from %s to %s",
		apperr.ErrConflict, tool.Code,
		clash.StartTime.UTC().Format(time.RFC3339), clash.EndTime.UTC().Format(time.RFC3339))
}

// FindOverlapping returns the reservations of toolID whose window intersects
// [start, end), ordered by start. excludeID skips one reservation, used when
// re-validating an edit against everything but itself.
func (r *Repo) FindOverlapping(ctx context.Context, toolID string, start, end time.Time, excludeID string) ([]models.Reservation, error) {
	start, end = timeutil.Canonical(start), timeutil.Canonical(end)
	if !start.Before(end) {
		return nil, ErrInvalidWindow
	}
	q := r.DB.WithContext(ctx).
		Where("tool_id = ? AND start_time < ? AND end_time > ?", toolID, end, start)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	var out []models.Reservation
	if err := q.Order("start_time ASC, id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// 锁住工具行：同一工具的写操作在这里串行
func (r *Repo) lockTool(ctx context.Context, toolID string) (*models.Tool, error) {
	var t models.Tool
	if err := r.forUpdate(r.DB.WithContext(ctx)).First(&t, "id = ?", toolID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: tool %s", apperr.ErrNotFound, toolID)
		}
		return nil, err
	}
	return &t, nil
}

// lockTools locks each distinct tool in LockOrder. Every path that touches
// more than one row locks tools before reservations and tools in ascending
// id order.
func (r *Repo) lockTools(ctx context.Context, toolIDs ...string) (map[string]*models.Tool, error) {
	out := make(map[string]*models.Tool, len(toolIDs))
	for _, id := range LockOrder(toolIDs...) {
		t, err := r.lockTool(ctx, id)
		if err != nil {
			return nil, err
		}
		out[id] = t
	}
	return out, nil
}

// lockReservationOn locks reservation id after its tool(s). The tool id is
// read without a lock first, so it is checked again once the row is held.
func (r *Repo) lockReservationOn(ctx context.Context, id string, extraToolIDs ...string) (*models.Reservation, map[string]*models.Tool, error) {
	peek, err := r.GetReservation(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	tools, err := r.lockTools(ctx, append([]string{peek.ToolID}, extraToolIDs...)...)
	if err != nil {
		return nil, nil, err
	}
	cur, err := r.lockReservation(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if cur.ToolID != peek.ToolID {
		return nil, nil, fmt.Errorf("%w: reservation %s was moved concurrently, retry", apperr.ErrConflict, id)
	}
	return cur, tools, nil
}

func (r *Repo) lockReservation(ctx context.Context, id string) (*models.Reservation, error) {
	var res models.Reservation
	if err := r.forUpdate(r.DB.WithContext(ctx)).First(&res, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: reservation %s", apperr.ErrNotFound, id)
		}
		return nil, err
	}
	return &res, nil
}

// CreateReservation inserts a reservation after checking, under the tool's
// row lock, that no other reservation of that tool overlaps it.
func (r *Repo) CreateReservation(ctx context.Context, in NewReservation) (*models.Reservation, error) {
	start, end := timeutil.Canonical(in.Start), timeutil.Canonical(in.End)
	if !start.Before(end) {
		return nil, ErrInvalidWindow
	}
	if in.UserID == "" || in.ToolID == "" {
		return nil, fmt.Errorf("%w: user and tool are required", apperr.ErrValidation)
	}

	var created *models.Reservation
	err := r.Transaction(ctx, func(tx *Repo) error {
		tool, err := tx.lockTool(ctx, in.ToolID)
		if err != nil {
			return err
		}
		clash, err := tx.FindOverlapping(ctx, tool.ID, start, end, "")
		if err != nil {
			return err
		}
		if len(clash) > 0 {
			return conflictError(tool, clash[0])
		}

		res := &models.Reservation{
			ID:        uuid.NewString(),
			UserID:    in.UserID,
			ToolID:    tool.ID,
			StartTime: start,
			EndTime:   end,
			Note:      normalizeNote(in.Note),
			Confirmed: in.Confirmed,
		}
		if err := tx.DB.WithContext(ctx).Create(res).Error; err != nil {
			return err
		}
		created = res
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	return created, nil
}

func (r *Repo) GetReservation(ctx context.Context, id string) (*models.Reservation, error) {
	var res models.Reservation
	if err := r.DB.WithContext(ctx).First(&res, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: reservation %s", apperr.ErrNotFound, id)
		}
		return nil, err
	}
	return &res, nil
}

// UpdateReservation applies patch to reservation id. A window change is
// re-validated against every other reservation of the target tool. It
// returns the stored state before and after; when nothing changes no write
// happens and both are equal.
func (r *Repo) UpdateReservation(ctx context.Context, id string, patch ReservationPatch) (before, after *models.Reservation, err error) {
	var target []string
	if patch.ToolID != nil {
		target = append(target, *patch.ToolID)
	}
	err = r.Transaction(ctx, func(tx *Repo) error {
		cur, tools, err := tx.lockReservationOn(ctx, id, target...)
		if err != nil {
			return err
		}
		next := *cur
		if patch.ToolID != nil {
			next.ToolID = *patch.ToolID
		}
		if patch.Start != nil {
			next.StartTime = timeutil.Canonical(*patch.Start)
		}
		if patch.End != nil {
			next.EndTime = timeutil.Canonical(*patch.End)
		}
		if patch.Note != nil {
			next.Note = normalizeNote(patch.Note)
		}

		windowChanged := next.ToolID != cur.ToolID ||
			!next.StartTime.Equal(cur.StartTime) ||
			!next.EndTime.Equal(cur.EndTime)
		noteChanged := !sameNote(cur.Note, next.Note)
		before = cur
		if !windowChanged && !noteChanged {
			after = cur
			return nil
		}

		if windowChanged {
			if !next.StartTime.Before(next.EndTime) {
				return ErrInvalidWindow
			}
			tool := tools[next.ToolID]
			clash, err := tx.FindOverlapping(ctx, tool.ID, next.StartTime, next.EndTime, cur.ID)
			if err != nil {
				return err
			}
			if len(clash) > 0 {
				return conflictError(tool, clash[0])
			}
		}

		updates := map[string]any{
			"tool_id":    next.ToolID,
			"start_time": next.StartTime,
			"end_time":   next.EndTime,
			"note":       nil,
		}
		if next.Note != nil {
			updates["note"] = *next.Note
		}
		if err := tx.DB.WithContext(ctx).Model(&models.Reservation{}).
			Where("id = ?", cur.ID).Updates(updates).Error; err != nil {
			return err
		}
		after = &next
		return nil
	})
	if err != nil {
		return nil, nil, translate(err)
	}
	return before, after, nil
}

// DeleteReservation removes reservation id and returns what was deleted.
func (r *Repo) DeleteReservation(ctx context.Context, id string) (*models.Reservation, error) {
	var deleted *models.Reservation
	err := r.Transaction(ctx, func(tx *Repo) error {
		cur, _, err := tx.lockReservationOn(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.DB.WithContext(ctx).Delete(&models.Reservation{}, "id = ?", cur.ID).Error; err != nil {
			return err
		}
		deleted = cur
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	return deleted, nil
}

// PurgeExpiredBefore deletes every reservation that ended strictly before
// threshold. It reports how many rows went and which tools they belonged to.
func (r *Repo) PurgeExpiredBefore(ctx context.Context, threshold time.Time) (int64, []string, error) {
	threshold = timeutil.Canonical(threshold)
	var (
		n     int64
		tools []string
	)
	err := r.Transaction(ctx, func(tx *Repo) error {
		if err := tx.DB.WithContext(ctx).Model(&models.Reservation{}).
			Where("end_time < ?", threshold).
			Distinct("tool_id").Order("tool_id").
			Pluck("tool_id", &tools).Error; err != nil {
			return err
		}
		if len(tools) == 0 {
			return nil
		}
		if _, err := tx.lockTools(ctx, tools...); err != nil {
			return err
		}
		res := tx.DB.WithContext(ctx).Where("end_time < ?", threshold).Delete(&models.Reservation{})
		if res.Error != nil {
			return res.Error
		}
		n = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	return n, tools, nil
}

// EndActiveReservation ends the reservation of toolID covering now. Its
// end moves to now, or it is deleted when it starts exactly at now.
// authorize may veto the change after the reservation is located. A nil
// result means nothing was active.
func (r *Repo) EndActiveReservation(ctx context.Context, toolID string, now time.Time, authorize func(*models.Reservation) error) (res *models.Reservation, deleted bool, err error) {
	now = timeutil.Canonical(now)
	err = r.Transaction(ctx, func(tx *Repo) error {
		if _, err := tx.lockTool(ctx, toolID); err != nil {
			return err
		}
		active, err := tx.ActiveReservation(ctx, toolID, now)
		if err != nil || active == nil {
			return err
		}
		if authorize != nil {
			if err := authorize(active); err != nil {
				return err
			}
		}
		if active.StartTime.Equal(now) {
			if err := tx.DB.WithContext(ctx).Delete(&models.Reservation{}, "id = ?", active.ID).Error; err != nil {
				return err
			}
			deleted = true
		} else {
			if err := tx.DB.WithContext(ctx).Model(&models.Reservation{}).
				Where("id = ?", active.ID).
				Update("end_time", now).Error; err != nil {
				return err
			}
			active.EndTime = now
		}
		res = active
		return nil
	})
	if err != nil {
		return nil, false, translate(err)
	}
	return res, deleted, nil
}

// ActiveReservation returns the reservation of toolID covering now, or
// nil when the tool is free.
func (r *Repo) ActiveReservation(ctx context.Context, toolID string, now time.Time) (*models.Reservation, error) {
	now = timeutil.Canonical(now)
	var res models.Reservation
	err := r.DB.WithContext(ctx).
		Where("tool_id = ? AND start_time <= ? AND end_time > ?", toolID, now, now).
		Order("start_time ASC").
		First(&res).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// UpcomingReservations lists reservations of toolID starting after now.
func (r *Repo) UpcomingReservations(ctx context.Context, toolID string, now time.Time, limit int) ([]models.Reservation, error) {
	now = timeutil.Canonical(now)
	q := r.DB.WithContext(ctx).
		Where("tool_id = ? AND start_time > ?", toolID, now).
		Order("start_time ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []models.Reservation
	err := q.Find(&out).Error
	return out, err
}

type ReservationFilter struct {
	UserID string
	ToolID string
	// EndingAfter hides reservations that ended at or before this instant.
	EndingAfter *time.Time
}

// ReservationRow is a reservation joined with the names a list view shows.
type ReservationRow struct {
	models.Reservation
	ToolName string `json:"toolName"`
	ToolCode string `json:"toolCode"`
	Username string `json:"username"`
}

func (r *Repo) ListReservations(ctx context.Context, f ReservationFilter) ([]ReservationRow, error) {
	q := r.DB.WithContext(ctx).
		Table(models.ReservationTable + " AS r").
		Select("r.*, t.name AS tool_name, t.code AS tool_code, u.username AS username").
		Joins("LEFT JOIN " + models.ToolTable + " t ON t.id = r.tool_id").
		Joins("LEFT JOIN " + models.UserTable + " u ON u.id = r.user_id")
	if f.UserID != "" {
		q = q.Where("r.user_id = ?", f.UserID)
	}
	if f.ToolID != "" {
		q = q.Where("r.tool_id = ?", f.ToolID)
	}
	if f.EndingAfter != nil {
		q = q.Where("r.end_time > ?", timeutil.Canonical(*f.EndingAfter))
	}
	var rows []ReservationRow
	err := q.Order("r.start_time ASC, r.id ASC").Scan(&rows).Error
	return rows, err
}

func normalizeNote(n *string) *string {
	if n == nil {
		return nil
	}
	s := strings.TrimSpace(*n)
	if s == "" {
		return nil
	}
	return &s
}

func sameNote(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
