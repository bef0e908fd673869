// models/tool.go
package models

import "time"

const ToolTable = "tools"
const CategoryTable = "tool_categories"

// Tool is a borrowable item identified by the code printed on its QR label.
type Tool struct {
	ID         string    `gorm:"size:36;primaryKey" json:"id"`
	Name       string    `gorm:"size:100;not null;default:''" json:"name"`
	Code       string    `gorm:"size:20;uniqueIndex;not null" json:"qrCode"`
	CategoryID *uint     `gorm:"index" json:"categoryId,omitempty"`
	Borrowed   bool      `gorm:"not null;default:false" json:"borrowed"` // projection of the reservations table, see db.RefreshTool
	CreatedAt  time.Time `json:"createdAt"`

	Category *ToolCategory `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}

type ToolCategory struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:100;uniqueIndex;not null" json:"name"`
}

func (Tool) TableName() string         { return ToolTable }
func (ToolCategory) TableName() string { return CategoryTable }
