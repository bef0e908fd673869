package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"Gin_postgres_redis_tool_booking/apperr"
	"Gin_postgres_redis_tool_booking/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repo struct{ DB *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{DB: db} }

// Transaction runs fn against a Repo bound to a single database
// transaction. Calling it on a Repo that is already inside a transaction
// opens a savepoint. A deadlock or serialization abort surfaces as
// ErrConflict.
func (r *Repo) Transaction(ctx context.Context, fn func(tx *Repo) error) error {
	return translate(r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repo{DB: tx})
	}))
}

// forUpdate adds SELECT ... FOR UPDATE where the engine has row locks.
// SQLite takes a database-wide write lock instead.
func (r *Repo) forUpdate(q *gorm.DB) *gorm.DB {
	if r.DB.Dialector.Name() == "postgres" {
		return q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return q
}

// Users

// 按 ID 查
func (r *Repo) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := r.DB.WithContext(ctx).Preload("Role").First(&u, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %s", apperr.ErrNotFound, id)
		}
		return nil, err
	}
	return &u, nil
}

func (r *Repo) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	if err := r.DB.WithContext(ctx).Preload("Role").Where("username = ?", username).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %s", apperr.ErrNotFound, username)
		}
		return nil, err
	}
	return &u, nil
}

// QR codes are matched case-insensitively, scanners differ in what they emit.
func (r *Repo) FindUserByQRCode(ctx context.Context, code string) (*models.User, error) {
	var u models.User
	err := r.DB.WithContext(ctx).Preload("Role").
		Where("LOWER(qr_code) = ?", strings.ToLower(strings.TrimSpace(code))).
		First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %s", apperr.ErrNotFound, code)
		}
		return nil, err
	}
	return &u, nil
}

// FindUser resolves an id or a QR code.
func (r *Repo) FindUser(ctx context.Context, idOrCode string) (*models.User, error) {
	if _, err := uuid.Parse(idOrCode); err == nil {
		if u, err := r.FindUserByID(ctx, idOrCode); err == nil {
			return u, nil
		} else if !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
	}
	return r.FindUserByQRCode(ctx, idOrCode)
}

func (r *Repo) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return r.DB.WithContext(ctx).Create(u).Error
}

// FindOrCreateGuest returns the user behind a guest self-service code,
// creating it with the guest role on first use.
func (r *Repo) FindOrCreateGuest(ctx context.Context, code string) (*models.User, error) {
	code = strings.TrimSpace(code)
	u, err := r.FindUserByQRCode(ctx, code)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	role, err := r.FindRole(ctx, models.RoleGuest)
	if err != nil {
		return nil, err
	}
	nu := models.User{
		ID:       uuid.NewString(),
		Username: code,
		QRCode:   code,
		RoleID:   role.ID,
	}
	// a concurrent scan may have created it in the meantime
	if err := r.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&nu).Error; err != nil {
		return nil, err
	}
	return r.FindUserByQRCode(ctx, code)
}

func (r *Repo) FindRole(ctx context.Context, name string) (*models.Role, error) {
	var role models.Role
	if err := r.DB.WithContext(ctx).Where("name = ?", name).First(&role).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: role %s", apperr.ErrNotFound, name)
		}
		return nil, err
	}
	return &role, nil
}
