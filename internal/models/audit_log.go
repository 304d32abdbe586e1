package models

import "time"

type AuditLog struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time

	UserID uint
	User   User

	Entity    string `gorm:"size:50;not null"` // "lead", "project", "customer", "product", "user"
	EntityID  uint
	Action    string `gorm:"size:50;not null"` // "create", "approve", "convert", ...
	Details   string `gorm:"type:text"`
	RequestID string `gorm:"size:36"`
}
