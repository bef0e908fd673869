package models

import "time"

// ActivityLog is the audit trail of reservation and tool mutations.
type ActivityLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    *string   `gorm:"size:36;index" json:"userId,omitempty"` // nil for guest self-service
	Action    string    `gorm:"size:100;not null" json:"action"`
	Details   string    `gorm:"type:text" json:"details,omitempty"`
	CreatedAt time.Time `gorm:"index" json:"timestamp"`
}

func (ActivityLog) TableName() string { return "activity_logs" }

const (
	ActionReservationCreated = "reservation.created"
	ActionReservationQuick   = "reservation.quick"
	ActionReservationEdited  = "reservation.edited"
	ActionReservationDeleted = "reservation.deleted"
	ActionToolReturned       = "tool.returned"
	ActionToolUpdated        = "tool.updated"
	ActionToolDeleted        = "tool.deleted"
)
