// db/repo_users_admin.go
package db

import (
	"Gin_postgres_redis_tool_booking/apperr"
	"Gin_postgres_redis_tool_booking/models"
	"context"
	"fmt"
)

func (r *Repo) SetUserRole(ctx context.Context, userID, roleName string) error {
	role, err := r.FindRole(ctx, roleName)
	if err != nil {
		return err
	}
	res := r.DB.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("role_id", role.ID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: user %s", apperr.ErrNotFound, userID)
	}
	return nil
}

func (r *Repo) CountUsersWithRole(ctx context.Context, roleName string) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).
		Model(&models.User{}).
		Joins("JOIN roles ON roles.id = users.role_id").
		Where("roles.name = ?", roleName).
		Count(&n).Error
	return n, err
}
