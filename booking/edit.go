package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"Gin_postgres_redis_tool_booking/db"
	"Gin_postgres_redis_tool_booking/models"
)

// EditInput holds the fields to change. Nil leaves a field alone.
type EditInput struct {
	Tool  *string // id or code
	Start *string
	End   *string
	Note  *string
}

// Edit changes a reservation's window, tool or note. Both the old and the
// new tool get their status refreshed.
func (m *Manager) Edit(ctx context.Context, c *Caller, id string, in EditInput) (*models.Reservation, error) {
	v, err := m.gate(ctx, c, models.PermEditReservations)
	if err != nil {
		return nil, err
	}

	var patch db.ReservationPatch
	if in.Tool != nil {
		tool, err := m.repo.FindTool(ctx, strings.TrimSpace(*in.Tool))
		if err != nil {
			return nil, err
		}
		patch.ToolID = &tool.ID
	}
	if in.Start != nil {
		t, err := m.parseTime("start", *in.Start)
		if err != nil {
			return nil, err
		}
		patch.Start = &t
	}
	if in.End != nil {
		t, err := m.parseTime("end", *in.End)
		if err != nil {
			return nil, err
		}
		patch.End = &t
	}
	patch.Note = in.Note

	var before, after *models.Reservation
	err = m.repo.Transaction(ctx, func(tx *db.Repo) error {
		cur, err := tx.GetReservation(ctx, id)
		if err != nil {
			return err
		}
		if err := requireOwner(v, c, cur.UserID); err != nil {
			return err
		}
		if patch.Empty() {
			before, after = cur, cur
			return nil
		}
		before, after, err = tx.UpdateReservation(ctx, id, patch)
		if err != nil {
			return err
		}
		return refresh(ctx, tx, m.now(), before.ToolID, after.ToolID)
	})
	if err != nil {
		return nil, err
	}

	if after != before {
		m.audit(ctx, c.UserID, models.ActionReservationEdited,
			fmt.Sprintf("reservation=%s tool=%s start=%s end=%s", after.ID, after.ToolID, fmtTime(after.StartTime), fmtTime(after.EndTime)))
	}
	return after, nil
}

// Delete removes a reservation by id. A missing id is NotFound.
func (m *Manager) Delete(ctx context.Context, c *Caller, id string) (*models.Reservation, error) {
	v, err := m.gate(ctx, c, models.PermEditReservations)
	if err != nil {
		return nil, err
	}

	var deleted *models.Reservation
	err = m.repo.Transaction(ctx, func(tx *db.Repo) error {
		cur, err := tx.GetReservation(ctx, id)
		if err != nil {
			return err
		}
		if err := requireOwner(v, c, cur.UserID); err != nil {
			return err
		}
		deleted, err = tx.DeleteReservation(ctx, id)
		if err != nil {
			return err
		}
		return refresh(ctx, tx, m.now(), deleted.ToolID)
	})
	if err != nil {
		return nil, err
	}

	m.audit(ctx, c.UserID, models.ActionReservationDeleted,
		fmt.Sprintf("reservation=%s tool=%s start=%s end=%s", deleted.ID, deleted.ToolID, fmtTime(deleted.StartTime), fmtTime(deleted.EndTime)))
	return deleted, nil
}

type ReturnResult struct {
	Tool        models.Tool         `json:"tool"`
	Reservation *models.Reservation `json:"reservation,omitempty"`
	Deleted     bool                `json:"deleted"`
	// Returned is false when nothing was active; that is still a success.
	Returned bool `json:"returned"`
}

// ReturnTool ends the reservation that currently covers the tool by moving
// its end to now. Calling it again finds nothing active and succeeds.
func (m *Manager) ReturnTool(ctx context.Context, c *Caller, toolRef string) (*ReturnResult, error) {
	v, err := m.gate(ctx, c, models.PermEditReservations)
	if err != nil {
		return nil, err
	}
	tool, err := m.repo.FindTool(ctx, strings.TrimSpace(toolRef))
	if err != nil {
		return nil, err
	}

	now := m.now()
	out := &ReturnResult{}
	err = m.repo.Transaction(ctx, func(tx *db.Repo) error {
		res, deleted, err := tx.EndActiveReservation(ctx, tool.ID, now, func(r *models.Reservation) error {
			return requireOwner(v, c, r.UserID)
		})
		if err != nil {
			return err
		}
		out.Reservation, out.Deleted, out.Returned = res, deleted, res != nil
		if err := refresh(ctx, tx, now, tool.ID); err != nil {
			return err
		}
		fresh, err := tx.FindToolByID(ctx, tool.ID)
		if err != nil {
			return err
		}
		out.Tool = *fresh
		return nil
	})
	if err != nil {
		return nil, err
	}

	if out.Returned {
		m.audit(ctx, c.UserID, models.ActionToolReturned,
			fmt.Sprintf("tool=%s reservation=%s deleted=%v", tool.Code, out.Reservation.ID, out.Deleted))
	}
	return out, nil
}

func fmtTime(t time.Time) string { return t.UTC().Format(time.RFC3339) }
