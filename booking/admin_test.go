package booking

import (
	"context"
	"errors"
	"testing"

	"Gin_postgres_redis_tool_booking/apperr"
	"Gin_postgres_redis_tool_booking/models"
)

func TestMeReturnsPermissionMap(t *testing.T) {
	f := newFixture(t, "2025-01-01T09:00:00Z")
	alice := callerOf(f.repo.MustCreateUser(t, "alice", models.RoleUser))

	p, err := f.m.Me(context.Background(), alice)
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	if p.Role != models.RoleUser || p.Username != "alice" {
		t.Errorf("unexpected profile %+v", p)
	}
	if p.Permissions[models.PermCreateReservations] != models.PermSelfOnly {
		t.Errorf("expected self_only create, got %q", p.Permissions[models.PermCreateReservations])
	}
	if _, err := f.m.Me(context.Background(), nil); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("expected unauthorized, got %v", err)
	}
}

func TestRegisterTool(t *testing.T) {
	f := newFixture(t, "2025-01-01T09:00:00Z")
	ctx := context.Background()
	admin := callerOf(f.repo.MustCreateUser(t, "root", models.RoleAdmin))
	super := callerOf(f.repo.MustCreateUser(t, "sue", models.RoleSupervisor))
	alice := callerOf(f.repo.MustCreateUser(t, "alice", models.RoleUser))

	tool, err := f.m.RegisterTool(ctx, admin, " DRILL-7 ", "Cordless drill")
	if err != nil {
		t.Fatalf("RegisterTool: %v", err)
	}
	if tool.Code != "DRILL-7" || tool.Borrowed {
		t.Errorf("unexpected tool %+v", tool)
	}
	if _, err := f.m.RegisterTool(ctx, super, "drill-7", ""); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("duplicate code: expected conflict, got %v", err)
	}
	if _, err := f.m.RegisterTool(ctx, alice, "SAW-1", ""); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("user role: expected forbidden, got %v", err)
	}
}

func TestUpdateTool(t *testing.T) {
	f := newFixture(t, "2025-01-01T09:00:00Z")
	ctx := context.Background()
	admin := callerOf(f.repo.MustCreateUser(t, "root", models.RoleAdmin))
	alice := callerOf(f.repo.MustCreateUser(t, "alice", models.RoleUser))
	f.repo.MustCreateTool(t, "DRILL-1")
	f.repo.MustCreateTool(t, "SAW-1")

	name := "Cordless drill"
	tool, err := f.m.UpdateTool(ctx, admin, "DRILL-1", ToolInput{Name: &name})
	if err != nil {
		t.Fatalf("UpdateTool: %v", err)
	}
	if tool.Name != name || tool.Code != "DRILL-1" {
		t.Errorf("unexpected tool %+v", tool)
	}

	taken := "SAW-1"
	if _, err := f.m.UpdateTool(ctx, admin, tool.ID, ToolInput{Code: &taken}); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("duplicate code: expected conflict, got %v", err)
	}
	if _, err := f.m.UpdateTool(ctx, alice, tool.ID, ToolInput{Name: &name}); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("user role: expected forbidden, got %v", err)
	}
	if _, err := f.m.UpdateTool(ctx, admin, "NOPE", ToolInput{Name: &name}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown tool: expected not found, got %v", err)
	}
}

func TestDeleteTool(t *testing.T) {
	f := newFixture(t, "2025-01-02T10:00:00Z")
	ctx := context.Background()
	admin := callerOf(f.repo.MustCreateUser(t, "root", models.RoleAdmin))
	alice := callerOf(f.repo.MustCreateUser(t, "alice", models.RoleUser))
	f.repo.MustCreateTool(t, "T1")

	if _, err := f.m.Create(ctx, alice, CreateInput{Tool: "T1", Start: "2025-01-02T09:00:00Z", End: "2025-01-02T12:00:00Z"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.m.DeleteTool(ctx, admin, "T1"); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("borrowed tool: expected conflict, got %v", err)
	}
	if _, err := f.m.DeleteTool(ctx, alice, "T1"); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("user role: expected forbidden, got %v", err)
	}

	if _, err := f.m.ReturnTool(ctx, alice, "T1"); err != nil {
		t.Fatalf("ReturnTool: %v", err)
	}
	deleted, err := f.m.DeleteTool(ctx, admin, "T1")
	if err != nil {
		t.Fatalf("DeleteTool after return: %v", err)
	}
	if deleted.Code != "T1" {
		t.Errorf("unexpected deleted tool %+v", deleted)
	}
	if _, err := f.repo.FindToolByCode(ctx, "T1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected tool gone, got %v", err)
	}

	logs, err := f.m.ActivityLog(ctx, admin, 1)
	if err != nil {
		t.Fatalf("ActivityLog: %v", err)
	}
	if len(logs) != 1 || logs[0].Action != models.ActionToolDeleted {
		t.Errorf("expected a tool.deleted entry, got %+v", logs)
	}
}

func TestActivityLogRecordsMutations(t *testing.T) {
	f := newFixture(t, "2025-01-02T10:00:00Z")
	ctx := context.Background()
	admin := callerOf(f.repo.MustCreateUser(t, "root", models.RoleAdmin))
	alice := callerOf(f.repo.MustCreateUser(t, "alice", models.RoleUser))
	f.repo.MustCreateTool(t, "T1")

	res, err := f.m.Create(ctx, alice, CreateInput{Tool: "T1", Start: "2025-01-01T08:00:00Z", End: "2025-01-03T08:00:00Z"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.m.ReturnTool(ctx, alice, "T1"); err != nil {
		t.Fatalf("ReturnTool: %v", err)
	}
	if _, err := f.m.Delete(ctx, alice, res.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	logs, err := f.m.ActivityLog(ctx, admin, 10)
	if err != nil {
		t.Fatalf("ActivityLog: %v", err)
	}
	var actions []string
	for _, l := range logs {
		actions = append(actions, l.Action)
	}
	want := []string{models.ActionReservationDeleted, models.ActionToolReturned, models.ActionReservationCreated}
	if len(actions) != len(want) {
		t.Fatalf("expected %v, got %v", want, actions)
	}
	for i := range want {
		if actions[i] != want[i] {
			t.Errorf("entry %d: expected %s, got %s", i, want[i], actions[i])
		}
	}

	if _, err := f.m.ActivityLog(ctx, alice, 10); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected forbidden for non-admin, got %v", err)
	}
}

func TestSetRolePermissionChangesGate(t *testing.T) {
	f := newFixture(t, "2025-01-01T09:00:00Z")
	ctx := context.Background()
	admin := callerOf(f.repo.MustCreateUser(t, "root", models.RoleAdmin))
	alice := callerOf(f.repo.MustCreateUser(t, "alice", models.RoleUser))
	f.repo.MustCreateTool(t, "T1")

	if err := f.m.SetRolePermission(ctx, admin, models.RoleUser, models.PermCreateReservations, models.PermFalse); err != nil {
		t.Fatalf("SetRolePermission: %v", err)
	}
	_, err := f.m.Create(ctx, alice, CreateInput{Tool: "T1", Start: "2025-01-03T08:00:00Z", End: "2025-01-04T08:00:00Z"})
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected forbidden after revoking create, got %v", err)
	}

	if err := f.m.SetRolePermission(ctx, admin, models.RoleUser, models.PermCreateReservations, "maybe"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
	if err := f.m.SetRolePermission(ctx, admin, models.RoleAdmin, models.PermEditReservations, models.PermSelfOnly); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected admin row to be protected, got %v", err)
	}
	if err := f.m.SetRolePermission(ctx, alice, models.RoleUser, models.PermCreateReservations, models.PermTrue); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected forbidden for non-admin, got %v", err)
	}
}

func TestSetUserRoleKeepsLastAdmin(t *testing.T) {
	f := newFixture(t, "2025-01-01T09:00:00Z")
	ctx := context.Background()
	rootUser := f.repo.MustCreateUser(t, "root", models.RoleAdmin)
	admin := callerOf(rootUser)
	alice := f.repo.MustCreateUser(t, "alice", models.RoleUser)

	if err := f.m.SetUserRole(ctx, admin, admin.UserID, models.RoleUser); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("expected conflict demoting the last admin, got %v", err)
	}
	if err := f.m.SetUserRole(ctx, admin, alice.ID, models.RoleSupervisor); err != nil {
		t.Fatalf("SetUserRole: %v", err)
	}
	u, _ := f.repo.FindUserByID(ctx, alice.ID)
	if u.Role == nil || u.Role.Name != models.RoleSupervisor {
		t.Errorf("expected alice promoted to supervisor")
	}
	if err := f.m.SetUserRole(ctx, admin, alice.ID, "wizard"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown role: expected not found, got %v", err)
	}
}
