package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"Gin_postgres_redis_tool_booking/apperr"
	"Gin_postgres_redis_tool_booking/db"
	"Gin_postgres_redis_tool_booking/models"
	"Gin_postgres_redis_tool_booking/timeutil"
)

type CreateInput struct {
	Tool  string // id or code
	User  string // id or code, empty books for the caller
	Start string
	End   string
	Note  *string
}

// Create books a tool for an explicit window.
func (m *Manager) Create(ctx context.Context, c *Caller, in CreateInput) (*models.Reservation, error) {
	v, err := m.gate(ctx, c, models.PermCreateReservations)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Tool) == "" {
		return nil, fmt.Errorf("%w: tool is required", apperr.ErrValidation)
	}
	start, err := m.parseTime("start", in.Start)
	if err != nil {
		return nil, err
	}
	end, err := m.parseTime("end", in.End)
	if err != nil {
		return nil, err
	}
	if !start.Before(end) {
		return nil, db.ErrInvalidWindow
	}

	tool, err := m.repo.FindTool(ctx, in.Tool)
	if err != nil {
		return nil, err
	}
	owner, err := m.resolveOwner(ctx, c, in.User)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(v, c, owner.ID); err != nil {
		return nil, err
	}

	res, err := m.book(ctx, db.NewReservation{
		UserID: owner.ID, ToolID: tool.ID,
		Start: start, End: end,
		Note: in.Note, Confirmed: true,
	})
	if err != nil {
		return nil, err
	}
	m.audit(ctx, c.UserID, models.ActionReservationCreated,
		fmt.Sprintf("tool=%s user=%s start=%s end=%s", tool.Code, owner.Username, fmtTime(res.StartTime), fmtTime(res.EndTime)))
	return res, nil
}

type QuickInput struct {
	ToolCode     string
	UserCode     string
	DurationDays int
	Note         *string
}

// QuickReserve is the scan flow: from now until 23:59 local on the last
// day. Unauthenticated callers may only book with a guest code.
func (m *Manager) QuickReserve(ctx context.Context, c *Caller, in QuickInput) (*models.Reservation, error) {
	toolCode := strings.TrimSpace(in.ToolCode)
	userCode := strings.TrimSpace(in.UserCode)
	if toolCode == "" {
		return nil, fmt.Errorf("%w: tool code is required", apperr.ErrValidation)
	}

	// 先校验时长，再创建访客
	start, end, err := timeutil.EndOfDayDurationWindow(in.DurationDays, m.now(), m.opts.Location)
	if err != nil {
		return nil, err
	}

	var (
		owner *models.User
		actor string
	)
	if c == nil {
		if m.opts.GuestCode == nil || !m.opts.GuestCode.MatchString(userCode) {
			return nil, fmt.Errorf("%w: login required", apperr.ErrUnauthorized)
		}
		owner, err = m.repo.FindOrCreateGuest(ctx, userCode)
		if err != nil {
			return nil, err
		}
	} else {
		v, err := m.gate(ctx, c, models.PermCreateReservations)
		if err != nil {
			return nil, err
		}
		owner, err = m.resolveOwner(ctx, c, userCode)
		if err != nil {
			return nil, err
		}
		if err := requireOwner(v, c, owner.ID); err != nil {
			return nil, err
		}
		actor = c.UserID
	}

	tool, err := m.repo.EnsureToolByCode(ctx, toolCode)
	if err != nil {
		return nil, err
	}

	res, err := m.book(ctx, db.NewReservation{
		UserID: owner.ID, ToolID: tool.ID,
		Start: start, End: end,
		Note: in.Note, Confirmed: true,
	})
	if err != nil {
		return nil, err
	}
	if actor == "" {
		actor = owner.ID
	}
	m.audit(ctx, actor, models.ActionReservationQuick,
		fmt.Sprintf("tool=%s user=%s days=%d end=%s", tool.Code, owner.Username, in.DurationDays, fmtTime(res.EndTime)))
	return res, nil
}

func (m *Manager) book(ctx context.Context, in db.NewReservation) (*models.Reservation, error) {
	var res *models.Reservation
	err := m.repo.Transaction(ctx, func(tx *db.Repo) error {
		var err error
		res, err = tx.CreateReservation(ctx, in)
		if err != nil {
			return err
		}
		return refresh(ctx, tx, m.now(), res.ToolID)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// resolveOwner maps the optional user reference to a user, defaulting to
// the caller.
func (m *Manager) resolveOwner(ctx context.Context, c *Caller, ref string) (*models.User, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		u, err := m.repo.FindUserByID(ctx, c.UserID)
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, fmt.Errorf("%w: caller no longer exists", apperr.ErrUnauthorized)
		}
		return u, err
	}
	return m.repo.FindUser(ctx, ref)
}
