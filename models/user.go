package models

import (
	"time"
)

const UserTable = "users"

// User only matters to the booking core as an owner id and a role. The
// QR code is what terminals scan.
type User struct {
	ID           string `gorm:"primaryKey;size:36" json:"id"`
	Username     string `gorm:"uniqueIndex;size:50;not null" json:"username"`
	FirstName    string `gorm:"size:50" json:"firstName,omitempty"`
	LastName     string `gorm:"size:50" json:"lastName,omitempty"`
	QRCode       string `gorm:"uniqueIndex;size:20;not null" json:"qrCode"`
	PasswordHash string `gorm:"size:255;not null;default:''" json:"-"`
	RoleID       uint   `gorm:"index;not null" json:"roleId"`

	CreatedAt time.Time `json:"createdAt"`

	Role *Role `gorm:"foreignKey:RoleID" json:"role,omitempty"`
}

func (User) TableName() string { return UserTable }

// Role names seeded at bootstrap.
const (
	RoleAdmin      = "admin"
	RoleSupervisor = "supervisor"
	RoleUser       = "user"
	RoleGuest      = "guest"
)

type Role struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"uniqueIndex;size:50;not null" json:"name"`
}

// Permission keys consulted by the reservation lifecycle.
const (
	PermCreateReservations  = "create_reservations"
	PermEditReservations    = "edit_reservations"
	PermViewAllReservations = "view_all_reservations"
	PermManageTools         = "manage_tools"
)

type Permission struct {
	ID  uint   `gorm:"primaryKey" json:"id"`
	Key string `gorm:"uniqueIndex;size:50;not null" json:"key"`
}

// PermissionValue is the scope a role holds for a permission key.
type PermissionValue string

const (
	PermTrue     PermissionValue = "true"
	PermFalse    PermissionValue = "false"
	PermSelfOnly PermissionValue = "self_only"
)

func (v PermissionValue) Valid() bool {
	return v == PermTrue || v == PermFalse || v == PermSelfOnly
}

type RolePermission struct {
	RoleID       uint            `gorm:"primaryKey" json:"roleId"`
	PermissionID uint            `gorm:"primaryKey" json:"permissionId"`
	Value        PermissionValue `gorm:"size:20;not null" json:"value"`
}
