package models

import "time"

const ReservationTable = "reservations"

// Reservation is a claim by a user on a tool for the half-open window
// [StartTime, EndTime). Both instants are stored in UTC.
type Reservation struct {
	ID        string    `gorm:"size:36;primaryKey" json:"id"`
	UserID    string    `gorm:"size:36;index;not null" json:"userId"`
	ToolID    string    `gorm:"size:36;not null;index:idx_reservations_tool_window,priority:1" json:"toolId"`
	StartTime time.Time `gorm:"not null;index:idx_reservations_tool_window,priority:2" json:"start"`
	EndTime   time.Time `gorm:"not null;index:idx_reservations_tool_window,priority:3;index" json:"end"`
	Note      *string   `gorm:"type:text" json:"note,omitempty"`
	Confirmed bool      `gorm:"not null;default:false" json:"confirmed"`
	CreatedAt time.Time `json:"createdAt"`
}

func (Reservation) TableName() string { return ReservationTable }
