package db

import (
	"context"
	"testing"

	"Gin_postgres_redis_tool_booking/models"
)

func TestPermissionValueDefaults(t *testing.T) {
	repo := NewTestRepo(t)
	ctx := context.Background()

	tests := []struct {
		role string
		key  string
		want models.PermissionValue
	}{
		{models.RoleAdmin, models.PermCreateReservations, models.PermTrue},
		{models.RoleSupervisor, models.PermEditReservations, models.PermSelfOnly},
		{models.RoleUser, models.PermCreateReservations, models.PermSelfOnly},
		{models.RoleUser, models.PermViewAllReservations, models.PermFalse},
		{models.RoleGuest, models.PermEditReservations, models.PermFalse},
		{models.RoleAdmin, "no_such_key", models.PermFalse},
	}
	for _, tt := range tests {
		u := repo.MustCreateUser(t, tt.role+"-"+tt.key, tt.role)
		got, err := repo.PermissionValue(ctx, u.ID, tt.key)
		if err != nil {
			t.Fatalf("PermissionValue: %v", err)
		}
		if got != tt.want {
			t.Errorf("%s/%s: expected %s, got %s", tt.role, tt.key, tt.want, got)
		}
	}

	if v, _ := repo.PermissionValue(ctx, "nobody", models.PermCreateReservations); v != models.PermFalse {
		t.Errorf("unknown user: expected false, got %s", v)
	}
}

func TestSeedRBACKeepsOverrides(t *testing.T) {
	repo := NewTestRepo(t)
	ctx := context.Background()

	if err := repo.SetPermission(ctx, models.RoleGuest, models.PermCreateReservations, models.PermSelfOnly); err != nil {
		t.Fatalf("SetPermission: %v", err)
	}
	if err := repo.SeedRBAC(ctx); err != nil {
		t.Fatalf("reseed: %v", err)
	}

	guest, _ := repo.FindRole(ctx, models.RoleGuest)
	perms, err := repo.PermissionMap(ctx, guest.ID)
	if err != nil {
		t.Fatalf("PermissionMap: %v", err)
	}
	if perms[models.PermCreateReservations] != models.PermSelfOnly {
		t.Errorf("expected override to survive reseed, got %v", perms)
	}
	if len(perms) != 4 {
		t.Errorf("expected 4 permissions, got %d", len(perms))
	}
}

func TestFindOrCreateGuest(t *testing.T) {
	repo := NewTestRepo(t)
	ctx := context.Background()

	g1, err := repo.FindOrCreateGuest(ctx, "GUEST001")
	if err != nil {
		t.Fatalf("FindOrCreateGuest: %v", err)
	}
	if g1.Role == nil || g1.Role.Name != models.RoleGuest {
		t.Errorf("expected guest role, got %+v", g1.Role)
	}
	g2, _ := repo.FindOrCreateGuest(ctx, "guest001")
	if g2.ID != g1.ID {
		t.Errorf("expected the same guest for a differently cased code")
	}
	if n, _ := repo.CountUsersWithRole(ctx, models.RoleGuest); n != 1 {
		t.Errorf("expected 1 guest, got %d", n)
	}
}
