package models

import "time"

type User struct {
	ID           int64      `gorm:"primaryKey"`
	BranchID     *int64     `gorm:"index"` // nil only for branch-less admins
	RoleID       int64      `gorm:"index;not null"`
	Email        string     `gorm:"uniqueIndex;size:255;not null"`
	Name         string     `gorm:"size:200"`
	PasswordHash string     `gorm:"size:255" json:"-"`
	IsAdmin      bool       `gorm:"default:false"`
	Status       UserStatus `gorm:"size:16;default:active"`
	CreatedAt    time.Time
	UpdatedAt    time.Time

	Branch    *Branch        `gorm:"foreignKey:BranchID"`
	Role      *Role          `gorm:"foreignKey:RoleID"`
	Overrides []UserOverride `gorm:"foreignKey:UserID"`
}
