package db

import (
	"Gin_postgres_redis_tool_booking/models"
	"context"
	"fmt"
)

func (r *Repo) LogActivity(ctx context.Context, userID *string, action, details string) (*models.ActivityLog, error) {
	log := &models.ActivityLog{
		UserID:  userID,
		Action:  action,
		Details: details,
	}
	if err := r.DB.WithContext(ctx).Create(log).Error; err != nil {
		return nil, fmt.Errorf("insert activity log: %w", err)
	}
	return log, nil
}

// 最新的在前
func (r *Repo) ListActivity(ctx context.Context, limit int) ([]models.ActivityLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var out []models.ActivityLog
	err := r.DB.WithContext(ctx).Order("created_at DESC, id DESC").Limit(limit).Find(&out).Error
	return out, err
}
