package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"Gin_postgres_redis_tool_booking/apperr"
	"Gin_postgres_redis_tool_booking/db"
	"Gin_postgres_redis_tool_booking/models"
)

// Profile is what a logged-in client needs to render its menus.
type Profile struct {
	UserID      string                            `json:"user_id"`
	Username    string                            `json:"username"`
	Role        string                            `json:"role"`
	Permissions map[string]models.PermissionValue `json:"permissions"`
}

func (m *Manager) Me(ctx context.Context, c *Caller) (*Profile, error) {
	if err := requireCaller(c); err != nil {
		return nil, err
	}
	u, err := m.repo.FindUserByID(ctx, c.UserID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, fmt.Errorf("%w: caller no longer exists", apperr.ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	perms, err := m.repo.PermissionMap(ctx, u.RoleID)
	if err != nil {
		return nil, err
	}
	p := &Profile{UserID: u.ID, Username: u.Username, Permissions: perms}
	if u.Role != nil {
		p.Role = u.Role.Name
	}
	return p, nil
}

// RegisterTool adds a tool ahead of its first scan. Needs manage_tools.
func (m *Manager) RegisterTool(ctx context.Context, c *Caller, code, name string) (*models.Tool, error) {
	if err := m.requireManageTools(ctx, c); err != nil {
		return nil, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("%w: tool code is required", apperr.ErrValidation)
	}
	if _, err := m.repo.FindToolByCode(ctx, code); err == nil {
		return nil, fmt.Errorf("%w: tool %s already exists", apperr.ErrConflict, code)
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	t := &models.Tool{Code: code, Name: strings.TrimSpace(name)}
	if err := m.repo.CreateTool(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// ToolInput holds the tool fields to change. Nil leaves a field alone.
type ToolInput struct {
	Name       *string
	Code       *string
	CategoryID *uint
}

// UpdateTool renames, relabels or recategorises a tool. Needs manage_tools.
func (m *Manager) UpdateTool(ctx context.Context, c *Caller, ref string, in ToolInput) (*models.Tool, error) {
	if err := m.requireManageTools(ctx, c); err != nil {
		return nil, err
	}
	tool, err := m.repo.FindTool(ctx, strings.TrimSpace(ref))
	if err != nil {
		return nil, err
	}
	updated, err := m.repo.UpdateTool(ctx, tool.ID, db.ToolPatch{Name: in.Name, Code: in.Code, CategoryID: in.CategoryID})
	if err != nil {
		return nil, err
	}
	m.audit(ctx, c.UserID, models.ActionToolUpdated,
		fmt.Sprintf("tool=%s code=%s name=%s", updated.ID, updated.Code, updated.Name))
	return updated, nil
}

// DeleteTool removes a tool and its remaining reservations. It refuses
// while the tool is out.
func (m *Manager) DeleteTool(ctx context.Context, c *Caller, ref string) (*models.Tool, error) {
	if err := m.requireManageTools(ctx, c); err != nil {
		return nil, err
	}
	tool, err := m.repo.FindTool(ctx, strings.TrimSpace(ref))
	if err != nil {
		return nil, err
	}
	deleted, dropped, err := m.repo.DeleteTool(ctx, tool.ID, m.now())
	if err != nil {
		return nil, err
	}
	m.audit(ctx, c.UserID, models.ActionToolDeleted,
		fmt.Sprintf("tool=%s code=%s reservations=%d", deleted.ID, deleted.Code, dropped))
	return deleted, nil
}

// manage_tools has no self_only meaning: anything but true is a refusal.
func (m *Manager) requireManageTools(ctx context.Context, c *Caller) error {
	v, err := m.gate(ctx, c, models.PermManageTools)
	if err != nil {
		return err
	}
	if v != models.PermTrue {
		return fmt.Errorf("%w: missing permission %s", apperr.ErrForbidden, models.PermManageTools)
	}
	return nil
}

func requireAdmin(c *Caller) error {
	if err := requireCaller(c); err != nil {
		return err
	}
	if c.Role != models.RoleAdmin {
		return fmt.Errorf("%w: admin only", apperr.ErrForbidden)
	}
	return nil
}

func (m *Manager) ActivityLog(ctx context.Context, c *Caller, limit int) ([]models.ActivityLog, error) {
	if err := requireAdmin(c); err != nil {
		return nil, err
	}
	logs, err := m.repo.ListActivity(ctx, limit)
	if err != nil {
		return nil, err
	}
	if logs == nil {
		logs = []models.ActivityLog{}
	}
	return logs, nil
}

// SetRolePermission changes one cell of the permission matrix.
func (m *Manager) SetRolePermission(ctx context.Context, c *Caller, role, key string, v models.PermissionValue) error {
	if err := requireAdmin(c); err != nil {
		return err
	}
	if !v.Valid() {
		return fmt.Errorf("%w: value must be true, false or self_only", apperr.ErrValidation)
	}
	if role == models.RoleAdmin && v != models.PermTrue {
		return fmt.Errorf("%w: admin permissions cannot be reduced", apperr.ErrValidation)
	}
	if err := m.repo.SetPermission(ctx, role, key, v); err != nil {
		return err
	}
	m.log.Info("role permission changed", "role", role, "key", key, "value", string(v), "by", c.Username)
	return nil
}

// SetUserRole moves a user to another role. The caller is expected to
// revoke the user's sessions so the change takes effect.
func (m *Manager) SetUserRole(ctx context.Context, c *Caller, userID, role string) error {
	if err := requireAdmin(c); err != nil {
		return err
	}
	if userID == c.UserID && role != models.RoleAdmin {
		n, err := m.repo.CountUsersWithRole(ctx, models.RoleAdmin)
		if err != nil {
			return err
		}
		if n <= 1 {
			return fmt.Errorf("%w: cannot demote the last admin", apperr.ErrConflict)
		}
	}
	if err := m.repo.SetUserRole(ctx, userID, role); err != nil {
		return err
	}
	m.log.Info("user role changed", "user_id", userID, "role", role, "by", c.Username)
	return nil
}
