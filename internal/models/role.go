package models

import "time"

type Role struct {
	ID          int64  `gorm:"primaryKey"`
	RoleKey     string `gorm:"size:64;uniqueIndex;not null"`
	Name        string `gorm:"size:200;not null"`
	Description string
	IsSystem    bool `gorm:"default:false"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Grants []RoleGrant `gorm:"foreignKey:RoleID"`
}
