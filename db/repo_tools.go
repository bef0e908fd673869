// db/repo_tools.go
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
	"gorm.io/gorm/clause"
)

// Tools
func (r *Repo) CreateTool(ctx context.Context, t *models.Tool) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.Code = strings.TrimSpace(t.Code)
	if t.Code == "" {
		return fmt.Errorf("%w: tool code is required", apperr.ErrValidation)
	}
	return translate(r.DB.WithContext(ctx).Create(t).Error)
}

func (r *Repo) FindToolByID(ctx context.Context, id string) (*models.Tool, error) {
	var t models.Tool
	if err := r.DB.WithContext(ctx).Preload("Category").First(&t, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: tool %s", apperr.ErrNotFound, id)
		}
		return nil, err
	}
	return &t, nil
}

func (r *Repo) FindToolByCode(ctx context.Context, code string) (*models.Tool, error) {
	var t models.Tool
	err := r.DB.WithContext(ctx).Preload("Category").
		Where("LOWER(code) = ?", strings.ToLower(strings.TrimSpace(code))).
		First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: tool %s", apperr.ErrNotFound, code)
		}
		return nil, err
	}
	return &t, nil
}

// FindTool accepts either the tool id or its QR code.
func (r *Repo) FindTool(ctx context.Context, idOrCode string) (*models.Tool, error) {
	if _, err := uuid.Parse(idOrCode); err == nil {
		t, err := r.FindToolByID(ctx, idOrCode)
		if !errors.Is(err, apperr.ErrNotFound) {
			return t, err
		}
	}
	return r.FindToolByCode(ctx, idOrCode)
}

// EnsureToolByCode returns the tool with this code, registering it on the
// first scan of an unknown label.
func (r *Repo) EnsureToolByCode(ctx context.Context, code string) (*models.Tool, error) {
	code = strings.TrimSpace(code)
	t, err := r.FindToolByCode(ctx, code)
	if err == nil || !errors.Is(err, apperr.ErrNotFound) {
		return t, err
	}
	nt := models.Tool{ID: uuid.NewString(), Code: code, Name: code}
	if err := r.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&nt).Error; err != nil {
		return nil, err
	}
	return r.FindToolByCode(ctx, code)
}

// ToolPatch carries the editable tool fields. Nil means unchanged; a
// CategoryID of 0 clears the category.
type ToolPatch struct {
	Name       *string
	Code       *string
	CategoryID *uint
}

// UpdateTool applies patch under the tool's row lock. A code already used
// by another tool is a conflict.
func (r *Repo) UpdateTool(ctx context.Context, id string, patch ToolPatch) (*models.Tool, error) {
	err := r.Transaction(ctx, func(tx *Repo) error {
		tool, err := tx.lockTool(ctx, id)
		if err != nil {
			return err
		}
		updates := map[string]any{}
		if patch.Name != nil {
			updates["name"] = strings.TrimSpace(*patch.Name)
		}
		if patch.Code != nil {
			code := strings.TrimSpace(*patch.Code)
			if code == "" {
				return fmt.Errorf("%w: tool code is required", apperr.ErrValidation)
			}
			other, err := tx.FindToolByCode(ctx, code)
			switch {
			case err == nil && other.ID != tool.ID:
				return fmt.Errorf("%w: tool %s already exists", apperr.ErrConflict, code)
			case err != nil && !errors.Is(err, apperr.ErrNotFound):
				return err
			}
			updates["code"] = code
		}
		if patch.CategoryID != nil {
			if *patch.CategoryID == 0 {
				updates["category_id"] = nil
			} else {
				var cat models.ToolCategory
				if err := tx.DB.WithContext(ctx).First(&cat, *patch.CategoryID).Error; err != nil {
					if errors.Is(err, gorm.ErrRecordNotFound) {
						return fmt.Errorf("%w: unknown category %d", apperr.ErrValidation, *patch.CategoryID)
					}
					return err
				}
				updates["category_id"] = cat.ID
			}
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.DB.WithContext(ctx).Model(&models.Tool{}).Where("id = ?", tool.ID).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return r.FindToolByID(ctx, id)
}

// DeleteTool removes a tool together with its remaining reservations. A
// tool that is borrowed, or has a reservation covering now, stays.
func (r *Repo) DeleteTool(ctx context.Context, id string, now time.Time) (*models.Tool, int64, error) {
	var (
		deleted *models.Tool
		dropped int64
	)
	err := r.Transaction(ctx, func(tx *Repo) error {
		tool, err := tx.lockTool(ctx, id)
		if err != nil {
			return err
		}
		if tool.Borrowed {
			return fmt.Errorf("%w: tool %s is borrowed and cannot be deleted", apperr.ErrConflict, tool.Code)
		}
		active, err := tx.ActiveReservation(ctx, tool.ID, now)
		if err != nil {
			return err
		}
		if active != nil {
			return fmt.Errorf("%w: tool %s is reserved until %s", apperr.ErrConflict,
				tool.Code, active.EndTime.UTC().Format(time.RFC3339))
		}

		res := tx.DB.WithContext(ctx).Where("tool_id = ?", tool.ID).Delete(&models.Reservation{})
		if res.Error != nil {
			return res.Error
		}
		dropped = res.RowsAffected
		if err := tx.DB.WithContext(ctx).Delete(&models.Tool{}, "id = ?", tool.ID).Error; err != nil {
			return err
		}
		deleted = tool
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return deleted, dropped, nil
}

type ToolOverviewRow struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Code         string    `json:"qrCode"`
	CategoryName *string   `json:"category,omitempty"`
	Borrowed     bool      `json:"borrowed"`
	CreatedAt    time.Time `json:"createdAt"`

	// 当前生效的预约（可为空）
	ReservationID *string    `json:"reservationId,omitempty"`
	BorrowerID    *string    `json:"borrowerId,omitempty"`
	BorrowerName  *string    `json:"borrowerUsername,omitempty"`
	ReservedFrom  *time.Time `json:"reservedFrom,omitempty"`
	ReservedUntil *time.Time `json:"reservedUntil,omitempty"`
}

type ToolsQuery struct {
	Q      string // 模糊搜索：code/name
	Status string // "", "borrowed", "available"
	Page   int
	Size   int
}

type PagedTools struct {
	Total int64             `json:"total"`
	Items []ToolOverviewRow `json:"items"`
}

// ListToolsWithActiveReservation pages over tools, each joined with the
// reservation covering now if there is one. Reservations never overlap,
// so the join yields at most one row per tool.
func (r *Repo) ListToolsWithActiveReservation(ctx context.Context, now time.Time, q ToolsQuery) (*PagedTools, error) {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Size <= 0 || q.Size > 200 {
		q.Size = 20
	}
	offset := (q.Page - 1) * q.Size
	now = timeutil.Canonical(now)

	filter := func(tx *gorm.DB) *gorm.DB {
		if s := strings.TrimSpace(q.Q); s != "" {
			pat := "%" + strings.ToLower(s) + "%"
			tx = tx.Where("LOWER(t.code) LIKE ? OR LOWER(t.name) LIKE ?", pat, pat)
		}
		switch q.Status {
		case "borrowed":
			tx = tx.Where("t.borrowed = ?", true)
		case "available":
			tx = tx.Where("t.borrowed = ?", false)
		}
		return tx
	}

	db := r.DB.WithContext(ctx)

	var total int64
	if err := filter(db.Table(models.ToolTable + " t")).Count(&total).Error; err != nil {
		return nil, err
	}

	var rows []ToolOverviewRow
	err := filter(db.Table(models.ToolTable + " t")).
		Select(`
			t.id, t.name, t.code, t.borrowed, t.created_at,
			c.name       AS category_name,
			ar.id        AS reservation_id,
			ar.user_id   AS borrower_id,
			u.username   AS borrower_name,
			ar.start_time AS reserved_from,
			ar.end_time   AS reserved_until
		`).
		Joins("LEFT JOIN " + models.CategoryTable + " c ON c.id = t.category_id").
		Joins("LEFT JOIN "+models.ReservationTable+" ar ON ar.tool_id = t.id AND ar.start_time <= ? AND ar.end_time > ?", now, now).
		Joins("LEFT JOIN " + models.UserTable + " u ON u.id = ar.user_id").
		Order("t.code ASC").Offset(offset).Limit(q.Size).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return &PagedTools{Total: total, Items: rows}, nil
}

// AvailableTools lists the tools with no reservation intersecting
// [start, end).
func (r *Repo) AvailableTools(ctx context.Context, start, end time.Time) ([]models.Tool, error) {
	start, end = timeutil.Canonical(start), timeutil.Canonical(end)
	if !start.Before(end) {
		return nil, ErrInvalidWindow
	}
	busy := r.DB.Model(&models.Reservation{}).
		Select("1").
		Where(models.ReservationTable + ".tool_id = " + models.ToolTable + ".id").
		Where(models.ReservationTable+".start_time < ? AND "+models.ReservationTable+".end_time > ?", end, start)

	var out []models.Tool
	err := r.DB.WithContext(ctx).Preload("Category").
		Where("NOT EXISTS (?)", busy).
		Order("code ASC").
		Find(&out).Error
	return out, err
}

type ToolInfo struct {
	Tool     models.Tool          `json:"tool"`
	Active   *ReservationRow      `json:"active,omitempty"`
	Upcoming []models.Reservation `json:"upcoming"`
}

// ToolInfo is what a terminal shows after scanning a tool label: the
// tool, who holds it now, and the next reservations in line.
func (r *Repo) ToolInfo(ctx context.Context, idOrCode string, now time.Time, upcoming int) (*ToolInfo, error) {
	t, err := r.FindTool(ctx, idOrCode)
	if err != nil {
		return nil, err
	}
	info := &ToolInfo{Tool: *t, Upcoming: []models.Reservation{}}

	active, err := r.ActiveReservation(ctx, t.ID, now)
	if err != nil {
		return nil, err
	}
	if active != nil {
		row := ReservationRow{Reservation: *active, ToolName: t.Name, ToolCode: t.Code}
		if u, err := r.FindUserByID(ctx, active.UserID); err == nil {
			row.Username = u.Username
		}
		info.Active = &row
	}

	next, err := r.UpcomingReservations(ctx, t.ID, now, upcoming)
	if err != nil {
		return nil, err
	}
	info.Upcoming = append(info.Upcoming, next...)
	return info, nil
}
