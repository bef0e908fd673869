package db

import (
	"context"

	"Gin_postgres_redis_tool_booking/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultPermissionMatrix is seeded for roles that have no assignment yet.
// Existing assignments are never overwritten.
var DefaultPermissionMatrix = map[string]map[string]models.PermissionValue{
	models.RoleAdmin: {
		models.PermCreateReservations:  models.PermTrue,
		models.PermEditReservations:    models.PermTrue,
		models.PermViewAllReservations: models.PermTrue,
		models.PermManageTools:         models.PermTrue,
	},
	models.RoleSupervisor: {
		models.PermCreateReservations:  models.PermTrue,
		models.PermEditReservations:    models.PermSelfOnly,
		models.PermViewAllReservations: models.PermTrue,
		models.PermManageTools:         models.PermTrue,
	},
	models.RoleUser: {
		models.PermCreateReservations:  models.PermSelfOnly,
		models.PermEditReservations:    models.PermSelfOnly,
		models.PermViewAllReservations: models.PermFalse,
		models.PermManageTools:         models.PermFalse,
	},
	models.RoleGuest: {
		models.PermCreateReservations:  models.PermFalse,
		models.PermEditReservations:    models.PermFalse,
		models.PermViewAllReservations: models.PermFalse,
		models.PermManageTools:         models.PermFalse,
	},
}

var seededRoles = []string{models.RoleAdmin, models.RoleSupervisor, models.RoleUser, models.RoleGuest}

var seededPermissions = []string{
	models.PermCreateReservations,
	models.PermEditReservations,
	models.PermViewAllReservations,
	models.PermManageTools,
}

// SeedRBAC creates the roles, permission keys and default matrix. Safe to
// run on every start.
func (r *Repo) SeedRBAC(ctx context.Context) error {
	return r.Transaction(ctx, func(tx *Repo) error {
		roles := map[string]uint{}
		for _, name := range seededRoles {
			role := models.Role{Name: name}
			if err := tx.DB.WithContext(ctx).Where(models.Role{Name: name}).FirstOrCreate(&role).Error; err != nil {
				return err
			}
			roles[name] = role.ID
		}
		perms := map[string]uint{}
		for _, key := range seededPermissions {
			p := models.Permission{Key: key}
			if err := tx.DB.WithContext(ctx).Where(models.Permission{Key: key}).FirstOrCreate(&p).Error; err != nil {
				return err
			}
			perms[key] = p.ID
		}

		var rows []models.RolePermission
		for _, roleName := range seededRoles {
			for _, key := range seededPermissions {
				rows = append(rows, models.RolePermission{
					RoleID:       roles[roleName],
					PermissionID: perms[key],
					Value:        DefaultPermissionMatrix[roleName][key],
				})
			}
		}
		return tx.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
	})
}

func (r *Repo) permissionQuery(ctx context.Context) *gorm.DB {
	return r.DB.WithContext(ctx).
		Table("role_permissions rp").
		Joins("JOIN permissions p ON p.id = rp.permission_id")
}

// PermissionValue resolves the scope the user's role holds for key. A
// missing user, a missing assignment or an unknown stored value all
// resolve to false.
func (r *Repo) PermissionValue(ctx context.Context, userID, key string) (models.PermissionValue, error) {
	var values []string
	err := r.permissionQuery(ctx).
		Joins("JOIN users u ON u.role_id = rp.role_id").
		Where("u.id = ? AND p.key = ?", userID, key).
		Pluck("rp.value", &values).Error
	if err != nil {
		return models.PermFalse, err
	}
	if len(values) == 0 {
		return models.PermFalse, nil
	}
	v := models.PermissionValue(values[0])
	if !v.Valid() {
		return models.PermFalse, nil
	}
	return v, nil
}

// PermissionMap lists every assignment of a role, keyed by permission.
func (r *Repo) PermissionMap(ctx context.Context, roleID uint) (map[string]models.PermissionValue, error) {
	var rows []struct {
		PermKey   string
		PermValue string
	}
	err := r.permissionQuery(ctx).
		Select("p.key AS perm_key, rp.value AS perm_value").
		Where("rp.role_id = ?", roleID).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]models.PermissionValue, len(rows))
	for _, row := range rows {
		out[row.PermKey] = models.PermissionValue(row.PermValue)
	}
	return out, nil
}

func (r *Repo) SetPermission(ctx context.Context, roleName, key string, v models.PermissionValue) error {
	role, err := r.FindRole(ctx, roleName)
	if err != nil {
		return err
	}
	var p models.Permission
	if err := r.DB.WithContext(ctx).Where(models.Permission{Key: key}).First(&p).Error; err != nil {
		return translate(err)
	}
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "role_id"}, {Name: "permission_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&models.RolePermission{RoleID: role.ID, PermissionID: p.ID, Value: v}).Error
}
