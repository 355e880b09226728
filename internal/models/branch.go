package models

import "time"

type Branch struct {
	ID        int64  `gorm:"primaryKey"`
	Name      string `gorm:"size:200;not null"`
	Code      string `gorm:"size:64;uniqueIndex;not null"`
	IsActive  bool   `gorm:"default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Users []User `gorm:"foreignKey:BranchID"`
}
