// app/bootstrap.go
package app

import (
	"context"
	"fmt"
	"log/slog"

	"Gin_postgres_redis_tool_booking/auth"
	"Gin_postgres_redis_tool_booking/models"

	"github.com/google/uuid"
)

// Bootstrap seeds roles and permissions, then the first admin account when
// ADMIN_USERNAME and ADMIN_PASSWORD are set and no admin exists yet.
func (a *App) Bootstrap(ctx context.Context) error {
	if err := a.Repo.SeedRBAC(ctx); err != nil {
		return fmt.Errorf("seed rbac: %w", err)
	}

	bc := a.Config.Bootstrap
	if bc.AdminUsername == "" || bc.AdminPassword == "" {
		return nil
	}
	n, err := a.Repo.CountUsersWithRole(ctx, models.RoleAdmin)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil // 已经有管理员，跳过
	}

	role, err := a.Repo.FindRole(ctx, models.RoleAdmin)
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(bc.AdminPassword)
	if err != nil {
		return err
	}
	qr := bc.AdminQR
	if qr == "" {
		qr = "ADMIN"
	}
	u := &models.User{
		ID:           uuid.NewString(),
		Username:     bc.AdminUsername,
		QRCode:       qr,
		PasswordHash: hash,
		RoleID:       role.ID,
	}
	if err := a.Repo.CreateUser(ctx, u); err != nil {
		return fmt.Errorf("create bootstrap admin: %w", err)
	}
	slog.Info("bootstrap admin created", "username", u.Username)
	return nil
}
